package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/SkylerRankin/netquality/internal/database"
	"github.com/SkylerRankin/netquality/internal/network"
	"github.com/SkylerRankin/netquality/internal/speedtest"
	"github.com/SkylerRankin/netquality/internal/types"
	websocket_client "github.com/SkylerRankin/netquality/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

type networkInfoJob struct {
	ctx            context.Context
	log            *slog.Logger
	clock          clockwork.Clock
	speedTestEvery int
	runs           int
	runsMutex      sync.Mutex
	pinger         network.Pinger
	runner         speedtest.Runner
	database       database.Database
	websocket      websocket_client.WebsocketClient
}

// NewNetworkInfoJob returns a job that pings on every run and additionally
// runs a speed test on the first run and every speedTestEvery runs after it.
func NewNetworkInfoJob(
	ctx context.Context,
	log *slog.Logger,
	clock clockwork.Clock,
	speedTestEvery int,
	pinger network.Pinger,
	runner speedtest.Runner,
	database database.Database,
	websocket websocket_client.WebsocketClient,
) (SchedulerJob, error) {
	if speedTestEvery <= 0 {
		return nil, errors.Errorf("speed test interval must be positive, got %d", speedTestEvery)
	}
	return &networkInfoJob{
		ctx:            ctx,
		log:            log,
		clock:          clock,
		speedTestEvery: speedTestEvery,
		pinger:         pinger,
		runner:         runner,
		database:       database,
		websocket:      websocket,
	}, nil
}

func (j *networkInfoJob) Run() error {
	// Multiple running jobs may attempt to update the run counter. Lock to
	// prevent repeated intervals.
	j.runsMutex.Lock()
	runSpeedTest := j.runs%j.speedTestEvery == 0
	j.runs++
	j.runsMutex.Unlock()

	networkInfo := types.NetworkInfo{
		Timestamp: j.clock.Now().UnixMilli(),
	}

	ping, err := j.pinger.Ping(j.ctx)
	if err != nil {
		j.log.Warn("ping failed", "host", ping.HostName, "err", err)
	}
	networkInfo.PingSuccessful = ping.Successful
	networkInfo.PingHost = ping.Host
	networkInfo.PingHostName = ping.HostName
	networkInfo.PingLoss = ping.PacketLoss
	networkInfo.RTTMS = ping.RTTMS

	if runSpeedTest {
		result, err := j.runner.Run(j.ctx, j.broadcastProgress)
		if err != nil {
			j.log.Warn("speed test failed", "err", err)
		} else {
			networkInfo.ApplySpeedTest(result)
		}
	}

	err = j.database.InsertNetworkInfo(j.ctx, &networkInfo)
	if err != nil {
		return errors.Wrap(err, "failed to insert network info")
	}

	message, err := json.Marshal(types.RecordMessage{
		Type:   types.MessageTypeRecord,
		Record: networkInfo,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal network info")
	}
	j.websocket.Broadcast(message)

	return nil
}

func (j *networkInfoJob) broadcastProgress(update types.ProgressUpdate) {
	message, err := json.Marshal(types.ProgressMessage{
		Type:           types.MessageTypeProgress,
		ProgressUpdate: update,
	})
	if err != nil {
		j.log.Warn("failed to marshal progress update", "err", err)
		return
	}
	j.websocket.Broadcast(message)
}
