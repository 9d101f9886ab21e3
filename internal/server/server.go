package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/SkylerRankin/netquality/internal/database"
	websocket_client "github.com/SkylerRankin/netquality/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

const (
	// resultsWindow is how far back GET /results reaches.
	resultsWindow   = 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

type Server interface {
	Handler() http.Handler
	Listen()
	Shutdown() error
}

var _ Server = &server{}

type server struct {
	ctx             context.Context
	log             *slog.Logger
	clock           clockwork.Clock
	server          *http.Server
	database        database.Database
	websocketClient websocket_client.WebsocketClient
}

func NewServer(ctx context.Context, log *slog.Logger, addr string, clock clockwork.Clock, database database.Database, websocketClient websocket_client.WebsocketClient) Server {
	s := &server{
		ctx:             ctx,
		log:             log,
		clock:           clock,
		database:        database,
		websocketClient: websocketClient,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("GET /latest", s.handleLatest)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

func (s *server) Listen() {
	s.log.Info("http server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("http server exited with error", "err", err)
	} else {
		s.log.Info("http server exited")
	}
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	startTime := s.clock.Now().Add(-resultsWindow).UnixMilli()
	batch, err := s.database.GetNetworkInfoBatch(r.Context(), startTime)
	if err != nil {
		s.log.Error("failed to get batch from database", "err", err)
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, batch)
}

func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.database.GetLatestSpeedTest(r.Context())
	if err != nil {
		s.log.Error("failed to get latest speed test", "err", err)
		http.Error(w, "failed to load latest speed test", http.StatusInternalServerError)
		return
	}

	info, err := latest.Get()
	if err != nil {
		http.Error(w, "no speed test recorded yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, info)
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	// The upgrader has already written an error response when this fails.
	if err := s.websocketClient.HandleConnection(w, r); err != nil {
		s.log.Error("failed to handle websocket connection", "err", err)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to marshal response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Info("failed to write response", "err", err)
	}
}
