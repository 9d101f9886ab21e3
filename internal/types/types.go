package types

import (
	"time"

	"github.com/SkylerRankin/netquality/internal/optional"
)

const bitsPerMegabit = 1_000_000.0

// Phase identifies which part of a speed test a progress update belongs to.
type Phase string

const (
	PhaseLatency    Phase = "latency"
	PhaseDownload   Phase = "download"
	PhaseUpload     Phase = "upload"
	PhasePacketLoss Phase = "packet_loss"
	PhaseDone       Phase = "done"
)

// ProgressUpdate is emitted while a test runs. SpeedMbps is set during the
// download and upload phases, LatencyMs during the latency phase.
type ProgressUpdate struct {
	Phase     Phase                 `json:"phase"`
	SpeedMbps optional.Opt[float64] `json:"speed_mbps"`
	Progress  float64               `json:"progress"`
	LatencyMs optional.Opt[float64] `json:"latency_ms"`
}

type LatencyResult struct {
	MinMs    float64   `json:"min_ms"`
	AvgMs    float64   `json:"avg_ms"`
	MaxMs    float64   `json:"max_ms"`
	JitterMs float64   `json:"jitter_ms"`
	Samples  []float64 `json:"samples"`
}

type ThroughputResult struct {
	BPS              float64 `json:"bps"`
	Mbps             float64 `json:"mbps"`
	BytesTransferred int64   `json:"bytes_transferred"`
	DurationSecs     float64 `json:"duration_secs"`
}

// NewThroughputResult derives the rate from a byte count and a duration in
// seconds. Non-positive durations yield a zero rate.
func NewThroughputResult(bytes int64, durationSecs float64) ThroughputResult {
	bps := BitsPerSecond(bytes, durationSecs)
	return ThroughputResult{
		BPS:              bps,
		Mbps:             bps / bitsPerMegabit,
		BytesTransferred: bytes,
		DurationSecs:     durationSecs,
	}
}

func BitsPerSecond(bytes int64, durationSecs float64) float64 {
	if durationSecs <= 0 {
		return 0
	}
	return float64(bytes) * 8 / durationSecs
}

func BitsToMbps(bps float64) float64 {
	return bps / bitsPerMegabit
}

type SpeedTestResult struct {
	Timestamp      time.Time                      `json:"timestamp"`
	ServerLocation optional.Opt[string]           `json:"server_location"`
	Latency        optional.Opt[LatencyResult]    `json:"latency"`
	Download       optional.Opt[ThroughputResult] `json:"download"`
	Upload         optional.Opt[ThroughputResult] `json:"upload"`
	PacketLoss     optional.Opt[float64]          `json:"packet_loss"`
}

func NewSpeedTestResult(now time.Time) SpeedTestResult {
	return SpeedTestResult{
		Timestamp:      now.UTC(),
		ServerLocation: optional.Empty[string](),
		Latency:        optional.Empty[LatencyResult](),
		Download:       optional.Empty[ThroughputResult](),
		Upload:         optional.Empty[ThroughputResult](),
		PacketLoss:     optional.Empty[float64](),
	}
}

type PingResult struct {
	Successful bool
	Host       string
	HostName   string
	Timestamp  int64
	PacketLoss float64
	RTTMS      int
}

// NetworkInfo is one row recorded by the monitor: an ICMP ping and, on some
// runs, a full speed test.
type NetworkInfo struct {
	ID             string                `json:"id"`
	Timestamp      int64                 `json:"timestamp"`
	PingSuccessful bool                  `json:"ping"`
	PingHost       string                `json:"ping_host"`
	PingHostName   string                `json:"ping_host_name"`
	PingLoss       float64               `json:"ping_loss"`
	RTTMS          int                   `json:"rtt_ms"`
	ServerLocation optional.Opt[string]  `json:"server_location"`
	LatencyMs      optional.Opt[float64] `json:"latency_ms"`
	JitterMs       optional.Opt[float64] `json:"jitter_ms"`
	DownloadMbps   optional.Opt[float64] `json:"download_mbps"`
	UploadMbps     optional.Opt[float64] `json:"upload_mbps"`
	PacketLoss     optional.Opt[float64] `json:"packet_loss"`
}

// HasSpeedTest reports whether the record carries speed test values.
func (n *NetworkInfo) HasSpeedTest() bool {
	return n.LatencyMs.Has() || n.DownloadMbps.Has() || n.UploadMbps.Has() || n.PacketLoss.Has()
}

// ApplySpeedTest copies the scalar values of a speed test result into the record.
func (n *NetworkInfo) ApplySpeedTest(result *SpeedTestResult) {
	n.ServerLocation = result.ServerLocation
	if latency, err := result.Latency.Get(); err == nil {
		n.LatencyMs = optional.New(latency.AvgMs)
		n.JitterMs = optional.New(latency.JitterMs)
	}
	if download, err := result.Download.Get(); err == nil {
		n.DownloadMbps = optional.New(download.Mbps)
	}
	if upload, err := result.Upload.Get(); err == nil {
		n.UploadMbps = optional.New(upload.Mbps)
	}
	n.PacketLoss = result.PacketLoss
}

type NetworkInfoBatch struct {
	Records []NetworkInfo `json:"records"`
}

type PingConfig struct {
	URL   string `yaml:"url"`
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

const (
	MessageTypeProgress = "progress"
	MessageTypeRecord   = "record"
)

// ProgressMessage is a progress update as pushed to websocket clients.
type ProgressMessage struct {
	Type string `json:"type"`
	ProgressUpdate
}

// RecordMessage carries a newly stored record to websocket clients.
type RecordMessage struct {
	Type   string      `json:"type"`
	Record NetworkInfo `json:"record"`
}
