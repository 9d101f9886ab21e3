package config

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	MinParallelConnections = 1
	MaxParallelConnections = 32

	defaultDownloadURL         = "https://speed.cloudflare.com/__down"
	defaultUploadURL           = "https://speed.cloudflare.com/__up"
	defaultParallelConnections = 6
	defaultUploadSize          = 10_000_000
	defaultLatencySamples      = 20
	defaultLatencyWarmup       = 3
	defaultTimeout             = 30 * time.Second
	defaultPacketLossCount     = 20
	defaultPacketLossTimeout   = 2 * time.Second
)

// Config holds the parameters of a single speed test run. It is built once
// and treated as read-only while the run is in progress.
type Config struct {
	// DownloadURL serves `?bytes=N` bodies of N bytes.
	DownloadURL string
	// UploadURL accepts POST bodies of any size.
	UploadURL string
	// LatencyURL is requested with `?bytes=0` for latency and packet loss probes.
	LatencyURL string
	// ParallelConnections is the number of concurrent transfers, 1 to 32.
	ParallelConnections int
	// DownloadSizes are candidate download sizes in bytes, ascending. The
	// first entry is the warmup size.
	DownloadSizes []int64
	// UploadSize is the per-connection upload payload in bytes.
	UploadSize int64
	// LatencySamples is the total number of latency requests, including warmup.
	LatencySamples int
	// LatencyWarmup is the number of leading latency samples to discard.
	LatencyWarmup int
	// Timeout bounds every HTTP request.
	Timeout time.Duration
	// PacketLossCount is the number of packet loss probes.
	PacketLossCount int
	// PacketLossTimeout bounds each packet loss probe.
	PacketLossTimeout time.Duration
	SkipDownload      bool
	SkipUpload        bool
}

func Default() Config {
	return Config{
		DownloadURL:         defaultDownloadURL,
		UploadURL:           defaultUploadURL,
		LatencyURL:          defaultDownloadURL,
		ParallelConnections: defaultParallelConnections,
		DownloadSizes: []int64{
			100_000,
			1_000_000,
			10_000_000,
			25_000_000,
		},
		UploadSize:        defaultUploadSize,
		LatencySamples:    defaultLatencySamples,
		LatencyWarmup:     defaultLatencyWarmup,
		Timeout:           defaultTimeout,
		PacketLossCount:   defaultPacketLossCount,
		PacketLossTimeout: defaultPacketLossTimeout,
	}
}

// WarmupSize is the download size used to estimate link speed.
func (c Config) WarmupSize() int64 {
	return c.DownloadSizes[0]
}

func ValidateConnections(n int) error {
	if n < MinParallelConnections || n > MaxParallelConnections {
		return errors.Errorf("connections must be between %d and %d, got %d", MinParallelConnections, MaxParallelConnections, n)
	}
	return nil
}

func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"download url": c.DownloadURL,
		"upload url":   c.UploadURL,
		"latency url":  c.LatencyURL,
	} {
		if err := validateURL(raw); err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
	}

	if err := ValidateConnections(c.ParallelConnections); err != nil {
		return err
	}

	if len(c.DownloadSizes) == 0 {
		return errors.New("download sizes must not be empty")
	}
	if c.DownloadSizes[0] <= 0 {
		return errors.New("warmup download size must be positive")
	}
	for i := 1; i < len(c.DownloadSizes); i++ {
		if c.DownloadSizes[i] <= c.DownloadSizes[i-1] {
			return errors.Errorf("download sizes must be strictly ascending, index %d is %d after %d", i, c.DownloadSizes[i], c.DownloadSizes[i-1])
		}
	}

	if c.UploadSize <= 0 {
		return errors.New("upload size must be positive")
	}
	if c.LatencySamples <= 0 {
		return errors.New("latency samples must be positive")
	}
	if c.LatencyWarmup < 0 || c.LatencyWarmup >= c.LatencySamples {
		return errors.Errorf("latency warmup (%d) must be less than latency samples (%d)", c.LatencyWarmup, c.LatencySamples)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.PacketLossCount <= 0 {
		return errors.New("packet loss count must be positive")
	}
	if c.PacketLossTimeout <= 0 {
		return errors.New("packet loss timeout must be positive")
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
