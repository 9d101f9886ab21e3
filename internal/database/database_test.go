package database

import (
	"context"
	"testing"

	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T, maxHistory int) Database {
	db, err := NewDatabase(context.Background(), t.TempDir(), maxHistory)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pingRecord(ts int64) *types.NetworkInfo {
	return &types.NetworkInfo{
		Timestamp:      ts,
		PingSuccessful: true,
		PingHost:       "Cloudflare",
		PingHostName:   "1.1.1.1",
		PingLoss:       0,
		RTTMS:          14,
	}
}

func speedRecord(ts int64, download float64) *types.NetworkInfo {
	info := pingRecord(ts)
	info.ServerLocation = optional.New("SFO")
	info.LatencyMs = optional.New(11.5)
	info.JitterMs = optional.New(0.75)
	info.DownloadMbps = optional.New(download)
	info.UploadMbps = optional.New(20.25)
	info.PacketLoss = optional.New(5.0)
	return info
}

func TestInsertAssignsID(t *testing.T) {
	db := newTestDatabase(t, 10)

	info := pingRecord(1000)
	require.NoError(t, db.InsertNetworkInfo(context.Background(), info))
	assert.NotEmpty(t, info.ID)

	withID := pingRecord(2000)
	withID.ID = "fixed"
	require.NoError(t, db.InsertNetworkInfo(context.Background(), withID))
	assert.Equal(t, "fixed", withID.ID)
}

func TestGetNetworkInfoBatch(t *testing.T) {
	db := newTestDatabase(t, 10)
	ctx := context.Background()

	require.NoError(t, db.InsertNetworkInfo(ctx, pingRecord(3000)))
	require.NoError(t, db.InsertNetworkInfo(ctx, speedRecord(2000, 95.5)))
	require.NoError(t, db.InsertNetworkInfo(ctx, pingRecord(1000)))

	batch, err := db.GetNetworkInfoBatch(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)

	speed := batch.Records[0]
	assert.Equal(t, int64(2000), speed.Timestamp)
	assert.True(t, speed.PingSuccessful)
	assert.Equal(t, "Cloudflare", speed.PingHost)
	assert.Equal(t, 14, speed.RTTMS)
	assert.Equal(t, "SFO", speed.ServerLocation.Else(""))
	assert.Equal(t, 95.5, speed.DownloadMbps.Else(0))
	assert.Equal(t, 20.25, speed.UploadMbps.Else(0))
	assert.Equal(t, 5.0, speed.PacketLoss.Else(0))
	assert.True(t, speed.HasSpeedTest())

	ping := batch.Records[1]
	assert.Equal(t, int64(3000), ping.Timestamp)
	assert.False(t, ping.HasSpeedTest())
	assert.False(t, ping.ServerLocation.Has())
}

func TestGetNetworkInfoBatchEmpty(t *testing.T) {
	db := newTestDatabase(t, 10)

	batch, err := db.GetNetworkInfoBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, batch.Records)
	assert.Empty(t, batch.Records)
}

func TestGetLatestSpeedTest(t *testing.T) {
	db := newTestDatabase(t, 10)
	ctx := context.Background()

	latest, err := db.GetLatestSpeedTest(ctx)
	require.NoError(t, err)
	assert.False(t, latest.Has())

	require.NoError(t, db.InsertNetworkInfo(ctx, speedRecord(1000, 10)))
	require.NoError(t, db.InsertNetworkInfo(ctx, speedRecord(2000, 20)))
	require.NoError(t, db.InsertNetworkInfo(ctx, pingRecord(3000)))

	latest, err = db.GetLatestSpeedTest(ctx)
	require.NoError(t, err)
	info, err := latest.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(2000), info.Timestamp)
	assert.Equal(t, 20.0, info.DownloadMbps.Else(0))
}

func TestSpeedTestHistoryIsCapped(t *testing.T) {
	db := newTestDatabase(t, 3)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, db.InsertNetworkInfo(ctx, speedRecord(i*1000, float64(i))))
		require.NoError(t, db.InsertNetworkInfo(ctx, pingRecord(i*1000+500)))
	}

	batch, err := db.GetNetworkInfoBatch(ctx, 0)
	require.NoError(t, err)

	var speeds []float64
	pings := 0
	for _, r := range batch.Records {
		if r.HasSpeedTest() {
			speeds = append(speeds, r.DownloadMbps.Else(0))
		} else {
			pings++
		}
	}
	assert.Equal(t, []float64{3, 4, 5}, speeds)
	assert.Equal(t, 5, pings)
}
