package speedtest

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/pkg/errors"
)

const (
	fastLinkBps = 100_000_000
	slowLinkBps = 10_000_000

	defaultLargeSize  = 25_000_000
	defaultMediumSize = 10_000_000
	defaultSmallSize  = 1_000_000
)

// SelectDownloadSize picks the per-connection download size from a warmup
// speed estimate. Above 100 Mbps the largest candidate is used, above
// 10 Mbps the third, and otherwise the second. Both thresholds are strict.
func SelectDownloadSize(warmupBps float64, sizes []int64) int64 {
	switch {
	case warmupBps > fastLinkBps:
		if len(sizes) == 0 {
			return defaultLargeSize
		}
		return sizes[len(sizes)-1]
	case warmupBps > slowLinkBps:
		if len(sizes) > 2 {
			return sizes[2]
		}
		return defaultMediumSize
	default:
		if len(sizes) > 1 {
			return sizes[1]
		}
		return defaultSmallSize
	}
}

func (s *session) measureDownload(ctx context.Context, progress ProgressFunc) (types.ThroughputResult, error) {
	warmupBps, err := s.downloadWarmup(ctx)
	if err != nil {
		return types.ThroughputResult{}, err
	}

	size := SelectDownloadSize(warmupBps, s.cfg.DownloadSizes)
	s.log.Debug("download size selected", "warmup_mbps", types.BitsToMbps(warmupBps), "size", size, "connections", s.cfg.ParallelConnections)

	target, err := withBytes(s.cfg.DownloadURL, size)
	if err != nil {
		return types.ThroughputResult{}, newError(KindOther, "download", err)
	}

	expected := size * int64(s.cfg.ParallelConnections)
	return s.runParallel(ctx, types.PhaseDownload, "download", expected, progress, func(ctx context.Context, counter *atomic.Int64) error {
		_, err := s.download(ctx, "download", target, counterWriter{counter: counter})
		return err
	})
}

// downloadWarmup fetches the smallest candidate size once and returns the
// observed speed in bits per second.
func (s *session) downloadWarmup(ctx context.Context) (float64, error) {
	if len(s.cfg.DownloadSizes) == 0 {
		return 0, newError(KindOther, "download warmup", errors.New("no download sizes configured"))
	}
	target, err := withBytes(s.cfg.DownloadURL, s.cfg.WarmupSize())
	if err != nil {
		return 0, newError(KindOther, "download warmup", err)
	}

	start := s.clock.Now()
	n, err := s.download(ctx, "download warmup", target, io.Discard)
	if err != nil {
		return 0, err
	}
	return types.BitsPerSecond(n, s.clock.Since(start).Seconds()), nil
}

// download streams the body of a GET to w and returns the number of bytes read.
func (s *session) download(ctx context.Context, op string, target string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, newError(KindOther, op, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, requestError(ctx, op, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return 0, statusError(op, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, requestError(ctx, op, err)
	}
	return n, nil
}
