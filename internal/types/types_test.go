package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThroughputResult(t *testing.T) {
	r := NewThroughputResult(1_000_000, 1.0)
	assert.InDelta(t, 8_000_000.0, r.BPS, 0.01)
	assert.InDelta(t, 8.0, r.Mbps, 0.01)
	assert.Equal(t, int64(1_000_000), r.BytesTransferred)

	r = NewThroughputResult(0, 1.0)
	assert.Zero(t, r.BPS)
	assert.Zero(t, r.Mbps)
}

func TestThroughputResultNonPositiveDuration(t *testing.T) {
	for _, d := range []float64{0, -1, -0.001} {
		r := NewThroughputResult(1000, d)
		assert.Zero(t, r.BPS, "duration %v", d)
		assert.Zero(t, r.Mbps, "duration %v", d)
		assert.Equal(t, d, r.DurationSecs)
	}
}

func TestSpeedTestResultRoundTrip(t *testing.T) {
	result := NewSpeedTestResult(time.Date(2026, 10, 15, 8, 30, 0, 123456789, time.UTC))
	result.ServerLocation = optional.New("SFO")
	result.Latency = optional.New(LatencyResult{
		MinMs:    5,
		AvgMs:    10,
		MaxMs:    15,
		JitterMs: 2,
		Samples:  []float64{5, 10, 15},
	})
	result.Download = optional.New(NewThroughputResult(10_000_000, 2.0))
	result.Upload = optional.New(NewThroughputResult(5_000_000, 2.0))
	result.PacketLoss = optional.New(5.0)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded SpeedTestResult
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, result.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, "SFO", decoded.ServerLocation.Else(""))

	latency, err := decoded.Latency.Get()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 10, 15}, latency.Samples)
	assert.InDelta(t, 2.0, latency.JitterMs, 1e-9)
	assert.InDelta(t, 10.0, latency.AvgMs, 1e-9)

	download, err := decoded.Download.Get()
	require.NoError(t, err)
	assert.InDelta(t, 40.0, download.Mbps, 0.01)
	assert.Equal(t, int64(10_000_000), download.BytesTransferred)

	upload, err := decoded.Upload.Get()
	require.NoError(t, err)
	assert.InDelta(t, 20.0, upload.Mbps, 0.01)
	assert.InDelta(t, 2.0, upload.DurationSecs, 1e-9)

	assert.InDelta(t, 5.0, decoded.PacketLoss.Else(-1), 1e-9)
}

func TestSpeedTestResultEmptyFieldsAreNull(t *testing.T) {
	result := NewSpeedTestResult(time.Now())

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"server_location", "latency", "download", "upload", "packet_loss"} {
		v, ok := raw[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}

func TestProgressUpdateJSON(t *testing.T) {
	update := ProgressUpdate{
		Phase:     PhaseDownload,
		SpeedMbps: optional.New(12.5),
		Progress:  0.5,
		LatencyMs: optional.Empty[float64](),
	}

	data, err := json.Marshal(update)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"download","speed_mbps":12.5,"progress":0.5,"latency_ms":null}`, string(data))
}

func TestApplySpeedTest(t *testing.T) {
	result := NewSpeedTestResult(time.Now())
	result.Latency = optional.New(LatencyResult{AvgMs: 12, JitterMs: 1.5})
	result.Download = optional.New(NewThroughputResult(1_000_000, 1))
	result.PacketLoss = optional.New(0.0)

	var info NetworkInfo
	assert.False(t, info.HasSpeedTest())
	info.ApplySpeedTest(&result)

	assert.True(t, info.HasSpeedTest())
	assert.Equal(t, 12.0, info.LatencyMs.Else(0))
	assert.Equal(t, 1.5, info.JitterMs.Else(0))
	assert.InDelta(t, 8.0, info.DownloadMbps.Else(0), 0.01)
	assert.False(t, info.UploadMbps.Has())
	assert.True(t, info.PacketLoss.Has())
}
