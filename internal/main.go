package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/SkylerRankin/netquality/internal/constants"
	"github.com/SkylerRankin/netquality/internal/database"
	"github.com/SkylerRankin/netquality/internal/jobs"
	"github.com/SkylerRankin/netquality/internal/network"
	"github.com/SkylerRankin/netquality/internal/server"
	"github.com/SkylerRankin/netquality/internal/speedtest"
	websocket_client "github.com/SkylerRankin/netquality/internal/websocket"
	"github.com/jonboulle/clockwork"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	configPath = kingpin.Flag("config", "Path to the YAML monitor config.").Short('f').String()
	dataDir    = kingpin.Flag("data-dir", "Directory holding the results database.").Default(".").String()
)

func main() {
	kingpin.Version(constants.Commit)
	kingpin.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadMonitorConfig(*configPath)
	if err != nil {
		log.Error("failed to load config", "path", *configPath, "err", err)
		return
	}

	dataPath, err := filepath.Abs(*dataDir)
	if err != nil {
		log.Error("failed to get data directory absolute path", "path", *dataDir, "err", err)
		return
	}

	if _, err := os.Stat(dataPath); errors.Is(err, os.ErrNotExist) {
		log.Error("data directory does not exist", "path", dataPath, "err", err)
		return
	}

	database, err := database.NewDatabase(ctx, dataPath, cfg.MaxHistory)
	if err != nil {
		log.Error("failed to create database", "path", dataPath, "err", err)
		return
	}
	defer database.Close()

	clock := clockwork.NewRealClock()

	pinger, err := network.NewPinger(log, cfg.PingHosts, !cfg.UnprivilegedPing, clock)
	if err != nil {
		log.Error("failed to create pinger", "err", err)
		return
	}

	runner, err := speedtest.NewRunner(log, cfg.Engine(), speedtest.WithClock(clock))
	if err != nil {
		log.Error("failed to create speed test runner", "err", err)
		return
	}

	websocketClient := websocket_client.NewWebsocketClient(log)

	networkInfoJob, err := jobs.NewNetworkInfoJob(ctx, log, clock, cfg.SpeedTestEvery, pinger, runner, database, websocketClient)
	if err != nil {
		log.Error("failed to create network info job", "err", err)
		return
	}

	scheduler, err := jobs.NewScheduler(log, clock, cfg.JobInterval.Duration(), networkInfoJob)
	if err != nil {
		log.Error("failed to create job scheduler", "err", err)
		return
	}

	server := server.NewServer(ctx, log, cfg.ListenAddr, clock, database, websocketClient)

	log.Info("starting network quality monitor", "data_dir", dataPath, "commit", constants.Commit,
		"job_interval", cfg.JobInterval.Duration(), "speed_test_every", cfg.SpeedTestEvery)

	go websocketClient.Listen(ctx)
	go server.Listen()
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("received signal", "signal", sig)

	// Cancelling first aborts an in-flight speed test so the scheduler can stop.
	cancel()
	if err := scheduler.Shutdown(); err != nil {
		log.Error("failed to shut down scheduler", "err", err)
	}
	if err := server.Shutdown(); err != nil {
		log.Error("failed to shut down http server", "err", err)
	}
	websocketClient.Shutdown()

	log.Info("exiting network quality monitor")
}
