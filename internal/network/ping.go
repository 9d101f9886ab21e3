package network

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	probing "github.com/prometheus-community/pro-bing"
)

// pingGrace is added on top of one second per echo request.
const pingGrace = 2 * time.Second

type Pinger interface {
	// Ping sends ICMP echo requests to the next configured host.
	Ping(ctx context.Context) (types.PingResult, error)
}

// pingFunc runs one ping and returns its statistics.
type pingFunc func(ctx context.Context, host types.PingConfig, privileged bool) (*probing.Statistics, error)

var _ Pinger = &pinger{}

type pinger struct {
	log        *slog.Logger
	hosts      []types.PingConfig
	privileged bool
	clock      clockwork.Clock
	run        pingFunc

	mu   sync.Mutex
	next int
}

func NewPinger(log *slog.Logger, hosts []types.PingConfig, privileged bool, clock clockwork.Clock) (Pinger, error) {
	if len(hosts) == 0 {
		return nil, errors.New("at least one ping host is required")
	}
	return &pinger{
		log:        log,
		hosts:      append([]types.PingConfig(nil), hosts...),
		privileged: privileged,
		clock:      clock,
		run:        runProbe,
	}, nil
}

func (p *pinger) nextHost() types.PingConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.hosts[p.next]
	p.next = (p.next + 1) % len(p.hosts)
	return c
}

func (p *pinger) Ping(ctx context.Context) (types.PingResult, error) {
	c := p.nextHost()
	startTime := p.clock.Now().UnixMilli()

	result := types.PingResult{
		Host:       c.Name,
		HostName:   c.URL,
		Timestamp:  startTime,
		PacketLoss: 100,
	}

	stats, err := p.run(ctx, c, p.privileged)
	if err != nil {
		return result, errors.Wrapf(err, "failed to ping %s", c.URL)
	}

	result.Successful = stats.PacketsRecv > 0
	result.PacketLoss = stats.PacketLoss
	result.RTTMS = int(stats.AvgRtt.Milliseconds())
	p.log.Debug("ping finished", "host", c.Name, "addr", c.URL, "loss", stats.PacketLoss, "rtt", stats.AvgRtt)
	return result, nil
}

func runProbe(ctx context.Context, host types.PingConfig, privileged bool) (*probing.Statistics, error) {
	pinger, err := probing.NewPinger(host.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pinger")
	}

	pinger.SetPrivileged(privileged)
	pinger.Count = host.Count
	pinger.Timeout = time.Duration(host.Count)*time.Second + pingGrace
	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to run pinger")
	}

	return pinger.Statistics(), nil
}
