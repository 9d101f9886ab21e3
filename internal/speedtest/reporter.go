package speedtest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// reporter calls tick on a fixed interval until stopped. Once Stop returns,
// tick is never called again.
type reporter struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func startReporter(clock clockwork.Clock, interval time.Duration, tick func()) *reporter {
	r := &reporter{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	ticker := clock.NewTicker(interval)
	go func() {
		defer close(r.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.Chan():
				// A tick and a stop can be ready together; stop wins.
				select {
				case <-r.stopCh:
					return
				default:
				}
				tick()
			}
		}
	}()

	return r
}

// Stop ends reporting and waits for an in-flight tick to finish.
func (r *reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}
