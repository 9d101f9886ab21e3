package speedtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/jonboulle/clockwork"
)

// fakeEndpoint emulates the download and upload endpoints of a speed test
// server.
type fakeEndpoint struct {
	server *httptest.Server

	// downStatus, when set, decides the status of a download request by its
	// 1-based request number.
	downStatus func(n int64) int
	// downDelay is slept before writing download bodies larger than the
	// warmup size.
	downDelay time.Duration
	upStatus  int

	downRequests  atomic.Int64
	upRequests    atomic.Int64
	uploadedBytes atomic.Int64

	mu         sync.Mutex
	downSizes  []int64
	uploadType string
}

const testWarmupSize = 1_000

// newFakeEndpoint starts the server after applying opts so that handlers
// only ever read the options.
func newFakeEndpoint(t *testing.T, opts ...func(*fakeEndpoint)) *fakeEndpoint {
	f := &fakeEndpoint{upStatus: http.StatusOK}
	for _, opt := range opts {
		opt(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/__down", f.handleDown)
	mux.HandleFunc("/__up", f.handleUp)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEndpoint) handleDown(w http.ResponseWriter, r *http.Request) {
	n := f.downRequests.Add(1)
	size, _ := strconv.ParseInt(r.URL.Query().Get("bytes"), 10, 64)

	f.mu.Lock()
	f.downSizes = append(f.downSizes, size)
	f.mu.Unlock()

	w.Header().Set("cf-ray", "8a1b2c3d4e5f6789-SFO")
	if f.downStatus != nil {
		if status := f.downStatus(n); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
	}

	if f.downDelay > 0 && size > testWarmupSize {
		select {
		case <-time.After(f.downDelay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(make([]byte, size))
}

func (f *fakeEndpoint) handleUp(w http.ResponseWriter, r *http.Request) {
	f.upRequests.Add(1)
	n, _ := io.Copy(io.Discard, r.Body)
	f.uploadedBytes.Add(n)

	f.mu.Lock()
	f.uploadType = r.Header.Get("Content-Type")
	f.mu.Unlock()

	w.WriteHeader(f.upStatus)
}

func (f *fakeEndpoint) contentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadType
}

func (f *fakeEndpoint) sizes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.downSizes...)
}

// testConfig returns a small, fast configuration pointed at base.
func testConfig(base string) config.Config {
	cfg := config.Default()
	cfg.DownloadURL = base + "/__down"
	cfg.LatencyURL = base + "/__down"
	cfg.UploadURL = base + "/__up"
	cfg.ParallelConnections = 3
	cfg.DownloadSizes = []int64{testWarmupSize, 2_000, 3_000, 4_000}
	cfg.UploadSize = 10_000
	cfg.LatencySamples = 5
	cfg.LatencyWarmup = 2
	cfg.Timeout = 5 * time.Second
	cfg.PacketLossCount = 4
	cfg.PacketLossTimeout = time.Second
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession(cfg config.Config) *session {
	return &session{
		log:    testLogger(),
		cfg:    cfg,
		client: newHTTPClient(cfg),
		clock:  clockwork.NewRealClock(),
	}
}

// recorder collects progress updates from any goroutine.
type recorder struct {
	mu      sync.Mutex
	updates []types.ProgressUpdate
}

func (r *recorder) fn() ProgressFunc {
	return func(update types.ProgressUpdate) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.updates = append(r.updates, update)
	}
}

func (r *recorder) all() []types.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressUpdate(nil), r.updates...)
}

func (r *recorder) phase(p types.Phase) []types.ProgressUpdate {
	var out []types.ProgressUpdate
	for _, u := range r.all() {
		if u.Phase == p {
			out = append(out, u)
		}
	}
	return out
}
