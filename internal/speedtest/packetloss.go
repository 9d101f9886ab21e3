package speedtest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/pkg/errors"
)

// packetLossPause separates probes so they do not arrive as a burst.
const packetLossPause = 50 * time.Millisecond

// measurePacketLoss sends PacketLossCount sequential probes and returns the
// percentage that timed out, failed or got a non-success status. Probes are
// sequential so that one lost probe cannot affect another.
func (s *session) measurePacketLoss(ctx context.Context, progress ProgressFunc) (float64, error) {
	const op = "packet loss"

	count := s.cfg.PacketLossCount
	if count <= 0 {
		return 0, newError(KindInvalidResponse, op, errors.Errorf("packet loss count must be positive, got %d", count))
	}

	target, err := withBytes(s.cfg.LatencyURL, 0)
	if err != nil {
		return 0, newError(KindOther, op, err)
	}

	lost := 0
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := s.sleep(ctx, packetLossPause); err != nil {
				return 0, requestError(ctx, op, err)
			}
		}

		if !s.probe(ctx, target) {
			lost++
		}
		if err := ctx.Err(); err != nil {
			return 0, requestError(ctx, op, err)
		}

		progress.emit(types.ProgressUpdate{
			Phase:    types.PhasePacketLoss,
			Progress: float64(i+1) / float64(count),
		})
	}

	loss := float64(lost) / float64(count) * 100
	s.log.Debug("packet loss measured", "lost", lost, "count", count, "loss_percent", loss)
	return loss, nil
}

// probe reports whether a single zero-byte request succeeded within
// PacketLossTimeout.
func (s *session) probe(ctx context.Context, target string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.PacketLossTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return false
	}
	return isSuccess(resp.StatusCode)
}

func (s *session) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
