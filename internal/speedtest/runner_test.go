package speedtest

import (
	"context"
	"net/http"
	"testing"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerFullRun(t *testing.T) {
	f := newFakeEndpoint(t)
	cfg := testConfig(f.server.URL)

	r, err := NewRunner(testLogger(), cfg)
	require.NoError(t, err)

	var rec recorder
	result, err := r.Run(context.Background(), rec.fn())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Timestamp.IsZero())
	assert.Equal(t, "SFO", result.ServerLocation.Else(""))
	assert.True(t, result.Latency.Has())
	assert.True(t, result.Download.Has())
	assert.True(t, result.Upload.Has())
	assert.Equal(t, 0.0, result.PacketLoss.Else(-1))

	updates := rec.all()
	require.NotEmpty(t, updates)

	last := updates[len(updates)-1]
	assert.Equal(t, types.PhaseDone, last.Phase)
	assert.Equal(t, 1.0, last.Progress)
	assert.False(t, last.SpeedMbps.Has())
	assert.False(t, last.LatencyMs.Has())
	assert.Len(t, rec.phase(types.PhaseDone), 1)

	// Phases never interleave and appear in order.
	order := map[types.Phase]int{
		types.PhaseLatency:    0,
		types.PhaseDownload:   1,
		types.PhaseUpload:     2,
		types.PhasePacketLoss: 3,
		types.PhaseDone:       4,
	}
	for i := 1; i < len(updates); i++ {
		assert.LessOrEqual(t, order[updates[i-1].Phase], order[updates[i].Phase])
	}
}

func TestRunnerSkipsTransfers(t *testing.T) {
	f := newFakeEndpoint(t)
	cfg := testConfig(f.server.URL)
	cfg.SkipDownload = true
	cfg.SkipUpload = true

	var rec recorder
	result, err := Run(context.Background(), cfg, rec.fn())
	require.NoError(t, err)

	assert.True(t, result.Latency.Has())
	assert.False(t, result.Download.Has())
	assert.False(t, result.Upload.Has())
	assert.True(t, result.PacketLoss.Has())

	assert.Empty(t, rec.phase(types.PhaseDownload))
	assert.Empty(t, rec.phase(types.PhaseUpload))
	assert.Len(t, rec.phase(types.PhaseDone), 1)
	assert.Zero(t, f.upRequests.Load())
	// Latency and packet loss only ever ask for zero bytes.
	for _, size := range f.sizes() {
		assert.Zero(t, size)
	}
}

func TestRunnerFailsFast(t *testing.T) {
	f := newFakeEndpoint(t, func(f *fakeEndpoint) {
		f.upStatus = http.StatusInternalServerError
	})

	var rec recorder
	result, err := Run(context.Background(), testConfig(f.server.URL), rec.fn())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsKind(err, KindTransport), err.Error())

	assert.Empty(t, rec.phase(types.PhasePacketLoss))
	assert.Empty(t, rec.phase(types.PhaseDone))
}

func TestRunnerCancelled(t *testing.T) {
	f := newFakeEndpoint(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, testConfig(f.server.URL), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsKind(err, KindCancelled), err.Error())
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ParallelConnections = 0

	_, err := NewRunner(testLogger(), cfg)
	assert.Error(t, err)
}

func TestNewRunnerCopiesDownloadSizes(t *testing.T) {
	f := newFakeEndpoint(t)
	cfg := testConfig(f.server.URL)
	cfg.SkipUpload = true

	r, err := NewRunner(testLogger(), cfg, WithHTTPClient(f.server.Client()))
	require.NoError(t, err)

	cfg.DownloadSizes[0] = 999_999
	_, err = r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Contains(t, f.sizes(), int64(testWarmupSize))
	assert.NotContains(t, f.sizes(), int64(999_999))
}
