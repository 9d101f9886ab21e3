// Package speedtest measures latency, jitter, download and upload throughput
// and packet loss against an HTTP speed test endpoint.
//
// A run goes through its phases in a fixed order: latency, download, upload,
// packet loss. Download and upload may be skipped through the config. The
// first failing phase aborts the run and no partial result is returned.
package speedtest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// ProgressFunc receives progress updates. It may be called from goroutines
// other than the one that called Run.
type ProgressFunc func(update types.ProgressUpdate)

func (f ProgressFunc) emit(update types.ProgressUpdate) {
	if f != nil {
		f(update)
	}
}

type Runner interface {
	Run(ctx context.Context, progress ProgressFunc) (*types.SpeedTestResult, error)
}

var _ Runner = &runner{}

type runner struct {
	log    *slog.Logger
	cfg    config.Config
	client *http.Client
	clock  clockwork.Clock
}

type Option func(*runner)

// WithHTTPClient replaces the client built from the config.
func WithHTTPClient(client *http.Client) Option {
	return func(r *runner) {
		r.client = client
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *runner) {
		r.clock = clock
	}
}

func NewRunner(log *slog.Logger, cfg config.Config, opts ...Option) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid speed test config")
	}
	cfg.DownloadSizes = append([]int64(nil), cfg.DownloadSizes...)

	r := &runner{
		log:   log,
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	if r.client == nil {
		r.client = newHTTPClient(cfg)
	}
	return r, nil
}

// Run is a convenience wrapper around NewRunner without logging.
func Run(ctx context.Context, cfg config.Config, progress ProgressFunc) (*types.SpeedTestResult, error) {
	r, err := NewRunner(nil, cfg)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, progress)
}

func (r *runner) Run(ctx context.Context, progress ProgressFunc) (*types.SpeedTestResult, error) {
	s := &session{
		log:    r.log,
		cfg:    r.cfg,
		client: r.client,
		clock:  r.clock,
	}

	result := types.NewSpeedTestResult(r.clock.Now())
	r.log.Info("speed test started", "connections", r.cfg.ParallelConnections, "skip_download", r.cfg.SkipDownload, "skip_upload", r.cfg.SkipUpload)

	latency, location, err := s.measureLatency(ctx, progress)
	if err != nil {
		return nil, err
	}
	result.Latency = optional.New(latency)
	result.ServerLocation = location

	if !r.cfg.SkipDownload {
		download, err := s.measureDownload(ctx, progress)
		if err != nil {
			return nil, err
		}
		result.Download = optional.New(download)
		r.log.Debug("download measured", "mbps", download.Mbps, "bytes", download.BytesTransferred)
	}

	if !r.cfg.SkipUpload {
		upload, err := s.measureUpload(ctx, progress)
		if err != nil {
			return nil, err
		}
		result.Upload = optional.New(upload)
		r.log.Debug("upload measured", "mbps", upload.Mbps, "bytes", upload.BytesTransferred)
	}

	loss, err := s.measurePacketLoss(ctx, progress)
	if err != nil {
		return nil, err
	}
	result.PacketLoss = optional.New(loss)

	progress.emit(types.ProgressUpdate{
		Phase:    types.PhaseDone,
		Progress: 1.0,
	})

	r.log.Info("speed test finished", "location", result.ServerLocation.String(), "packet_loss", loss)
	return &result, nil
}

// session holds what the phases of one run share.
type session struct {
	log    *slog.Logger
	cfg    config.Config
	client *http.Client
	clock  clockwork.Clock
}
