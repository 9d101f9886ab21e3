package config

import (
	"fmt"
	"os"
	"time"

	"github.com/SkylerRankin/netquality/internal/constants"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration accepts either a number of seconds or a time.ParseDuration string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MonitorConfig configures the monitor daemon.
type MonitorConfig struct {
	ListenAddr     string             `yaml:"listen_addr"`
	JobInterval    Duration           `yaml:"job_interval"`
	SpeedTestEvery int                `yaml:"speed_test_every"`
	MaxHistory     int                `yaml:"max_history"`
	PingHosts      []types.PingConfig `yaml:"ping_hosts"`
	SpeedTest      SpeedTestConfig    `yaml:"speed_test"`

	// UnprivilegedPing sends UDP echo requests instead of raw ICMP.
	UnprivilegedPing bool `yaml:"unprivileged_ping"`
}

// SpeedTestConfig overrides engine defaults. Zero values keep the default.
type SpeedTestConfig struct {
	DownloadURL       string   `yaml:"download_url"`
	UploadURL         string   `yaml:"upload_url"`
	LatencyURL        string   `yaml:"latency_url"`
	Connections       int      `yaml:"connections"`
	DownloadSizes     []int64  `yaml:"download_sizes"`
	UploadSize        int64    `yaml:"upload_size"`
	LatencySamples    int      `yaml:"latency_samples"`
	LatencyWarmup     *int     `yaml:"latency_warmup"`
	Timeout           Duration `yaml:"timeout"`
	PacketLossCount   int      `yaml:"packet_loss_count"`
	PacketLossTimeout Duration `yaml:"packet_loss_timeout"`
	SkipDownload      bool     `yaml:"skip_download"`
	SkipUpload        bool     `yaml:"skip_upload"`
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ListenAddr:     constants.ListenAddr,
		JobInterval:    Duration(constants.JobInterval),
		SpeedTestEvery: constants.SpeedTestEvery,
		MaxHistory:     constants.MaxHistory,
		PingHosts:      append([]types.PingConfig(nil), constants.PingConfigs...),
	}
}

// LoadMonitorConfig reads a YAML file and fills missing values with defaults.
// An empty path returns the defaults.
func LoadMonitorConfig(path string) (MonitorConfig, error) {
	cfg := DefaultMonitorConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return MonitorConfig{}, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MonitorConfig{}, errors.Wrap(err, "failed to parse config file")
	}
	cfg.mergeWithDefaults()

	if err := cfg.Validate(); err != nil {
		return MonitorConfig{}, err
	}
	return cfg, nil
}

func (c *MonitorConfig) mergeWithDefaults() {
	defaults := DefaultMonitorConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	if c.JobInterval <= 0 {
		c.JobInterval = defaults.JobInterval
	}
	if c.SpeedTestEvery <= 0 {
		c.SpeedTestEvery = defaults.SpeedTestEvery
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = defaults.MaxHistory
	}
	if len(c.PingHosts) == 0 {
		c.PingHosts = defaults.PingHosts
	}
	for i := range c.PingHosts {
		if c.PingHosts[i].Count <= 0 {
			c.PingHosts[i].Count = 1
		}
		if c.PingHosts[i].Name == "" {
			c.PingHosts[i].Name = c.PingHosts[i].URL
		}
	}
}

func (c MonitorConfig) Validate() error {
	for _, host := range c.PingHosts {
		if host.URL == "" {
			return errors.New("ping host url must not be empty")
		}
	}
	if err := c.Engine().Validate(); err != nil {
		return errors.Wrap(err, "invalid speed_test section")
	}
	return nil
}

// Engine returns the speed test configuration with overrides applied.
func (c MonitorConfig) Engine() Config {
	cfg := Default()
	s := c.SpeedTest
	if s.DownloadURL != "" {
		cfg.DownloadURL = s.DownloadURL
	}
	if s.UploadURL != "" {
		cfg.UploadURL = s.UploadURL
	}
	if s.LatencyURL != "" {
		cfg.LatencyURL = s.LatencyURL
	}
	if s.Connections != 0 {
		cfg.ParallelConnections = s.Connections
	}
	if len(s.DownloadSizes) > 0 {
		cfg.DownloadSizes = append([]int64(nil), s.DownloadSizes...)
	}
	if s.UploadSize != 0 {
		cfg.UploadSize = s.UploadSize
	}
	if s.LatencySamples != 0 {
		cfg.LatencySamples = s.LatencySamples
	}
	if s.LatencyWarmup != nil {
		cfg.LatencyWarmup = *s.LatencyWarmup
	}
	if s.Timeout != 0 {
		cfg.Timeout = s.Timeout.Duration()
	}
	if s.PacketLossCount != 0 {
		cfg.PacketLossCount = s.PacketLossCount
	}
	if s.PacketLossTimeout != 0 {
		cfg.PacketLossTimeout = s.PacketLossTimeout.Duration()
	}
	cfg.SkipDownload = s.SkipDownload
	cfg.SkipUpload = s.SkipUpload
	return cfg
}
