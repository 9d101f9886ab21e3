package speedtest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/SkylerRankin/netquality/internal/types"
	"golang.org/x/sync/errgroup"
)

const reportInterval = 250 * time.Millisecond

// transferFunc moves one connection's worth of data, adding transferred
// bytes to counter as it goes.
type transferFunc func(ctx context.Context, counter *atomic.Int64) error

// counterWriter adds everything written to it to a shared counter.
type counterWriter struct {
	counter *atomic.Int64
}

func (w counterWriter) Write(p []byte) (int, error) {
	w.counter.Add(int64(len(p)))
	return len(p), nil
}

// runParallel starts ParallelConnections transfers, reports aggregate
// throughput every reportInterval while they run, and returns the exact
// throughput once all of them finish. The first failing transfer cancels
// the others and its error is returned; bytes moved by the rest are dropped.
func (s *session) runParallel(ctx context.Context, phase types.Phase, op string, expected int64, progress ProgressFunc, transfer transferFunc) (types.ThroughputResult, error) {
	var total atomic.Int64
	start := s.clock.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.ParallelConnections; i++ {
		group.Go(func() error {
			return transfer(groupCtx, &total)
		})
	}

	var rep *reporter
	if progress != nil {
		rep = startReporter(s.clock, reportInterval, func() {
			elapsed := s.clock.Since(start).Seconds()
			if elapsed <= 0 {
				return
			}
			bytes := total.Load()
			progress(speedUpdate(phase, types.BitsPerSecond(bytes, elapsed), fraction(bytes, expected)))
		})
	}

	err := group.Wait()
	if rep != nil {
		rep.Stop()
	}
	if err != nil {
		if e, ok := err.(*Error); ok {
			return types.ThroughputResult{}, e
		}
		return types.ThroughputResult{}, newError(KindOther, op, err)
	}

	elapsed := s.clock.Since(start).Seconds()
	result := types.NewThroughputResult(total.Load(), elapsed)
	progress.emit(speedUpdate(phase, result.BPS, 1.0))
	return result, nil
}

func speedUpdate(phase types.Phase, bps float64, progress float64) types.ProgressUpdate {
	return types.ProgressUpdate{
		Phase:     phase,
		SpeedMbps: optional.New(types.BitsToMbps(bps)),
		Progress:  progress,
		LatencyMs: optional.Empty[float64](),
	}
}

func fraction(done, expected int64) float64 {
	if expected <= 0 {
		return 1.0
	}
	return min(float64(done)/float64(expected), 1.0)
}
