package speedtest

import (
	"context"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/pkg/errors"
)

// locationHeader carries "<hex>-<LOCATION>" on Cloudflare responses.
const locationHeader = "cf-ray"

// measureLatency issues LatencySamples sequential zero-byte requests. The
// first LatencyWarmup samples are dropped before computing statistics.
func (s *session) measureLatency(ctx context.Context, progress ProgressFunc) (types.LatencyResult, optional.Opt[string], error) {
	const op = "latency"
	location := optional.Empty[string]()

	target, err := withBytes(s.cfg.LatencyURL, 0)
	if err != nil {
		return types.LatencyResult{}, location, newError(KindOther, op, err)
	}

	total := s.cfg.LatencySamples
	all := make([]float64, 0, max(total, 0))
	for i := 0; i < total; i++ {
		rtt, header, err := s.timedGet(ctx, target)
		if err != nil {
			return types.LatencyResult{}, location, requestError(ctx, op, err)
		}
		if i == 0 {
			location = parseLocation(header.Get(locationHeader))
		}
		all = append(all, rtt)

		progress.emit(types.ProgressUpdate{
			Phase:     types.PhaseLatency,
			Progress:  float64(i+1) / float64(total),
			LatencyMs: optional.New(rtt),
		})
	}

	warmup := min(max(s.cfg.LatencyWarmup, 0), len(all))
	samples := all[warmup:]
	if len(samples) == 0 {
		return types.LatencyResult{}, location, newError(KindInvalidResponse, op,
			errors.Errorf("no latency samples left after discarding %d warmup samples of %d", s.cfg.LatencyWarmup, total))
	}

	result := summarizeLatency(samples)
	s.log.Debug("latency measured", "avg_ms", result.AvgMs, "jitter_ms", result.JitterMs, "samples", len(samples), "location", location.String())
	return result, location, nil
}

// timedGet returns the time in milliseconds from sending the request until
// the body has been fully read.
func (s *session) timedGet(ctx context.Context, target string) (float64, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}

	start := s.clock.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, nil, err
	}
	elapsed := s.clock.Since(start)

	return float64(elapsed) / float64(time.Millisecond), resp.Header, nil
}

func summarizeLatency(samples []float64) types.LatencyResult {
	minMs, maxMs := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range samples {
		minMs = math.Min(minMs, v)
		maxMs = math.Max(maxMs, v)
		sum += v
	}
	return types.LatencyResult{
		MinMs:    minMs,
		AvgMs:    sum / float64(len(samples)),
		MaxMs:    maxMs,
		JitterMs: Jitter(samples),
		Samples:  samples,
	}
}

// parseLocation takes the segment after the last dash, e.g. "SFO" from
// "8a1b2c3d4e5f6789-SFO".
func parseLocation(header string) optional.Opt[string] {
	header = strings.TrimSpace(header)
	if header == "" {
		return optional.Empty[string]()
	}
	loc := header[strings.LastIndex(header, "-")+1:]
	if loc == "" {
		return optional.Empty[string]()
	}
	return optional.New(loc)
}
