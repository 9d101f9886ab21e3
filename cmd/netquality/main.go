package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/SkylerRankin/netquality/internal/config"
	"github.com/SkylerRankin/netquality/internal/constants"
	"github.com/SkylerRankin/netquality/internal/history"
	"github.com/SkylerRankin/netquality/internal/speedtest"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/chelnak/ysmrr"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("netquality", "Network quality test against the Cloudflare speed test endpoints.")

	format      = app.Flag("format", "Output format.").Default("text").Enum("text", "json")
	connections = app.Flag("connections", "Number of parallel connections (1-32).").Short('c').Default(strconv.Itoa(config.Default().ParallelConnections)).Int()
	noDownload  = app.Flag("no-download", "Skip the download test.").Bool()
	noUpload    = app.Flag("no-upload", "Skip the upload test.").Bool()
	historyPath = app.Flag("history", "Append the result to this JSON history file.").String()
	logLevel    = app.Flag("log-level", "Log level written to stderr.").Default("warn").Enum("debug", "info", "warn", "error")
)

func main() {
	app.Version(constants.Commit)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := newLogger(*logLevel)

	if err := config.ValidateConnections(*connections); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.ParallelConnections = *connections
	cfg.SkipDownload = *noDownload
	cfg.SkipUpload = *noUpload

	runner, err := speedtest.NewRunner(log, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *types.SpeedTestResult
	if *format == "json" {
		result, err = runner.Run(ctx, nil)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode result")
		}
		fmt.Println(string(data))
	} else {
		fmt.Println("netquality speed test")
		fmt.Printf("Testing with %d parallel connections...\n\n", cfg.ParallelConnections)

		result, err = runWithSpinner(ctx, runner)
		if err != nil {
			return err
		}
		if err := printResults(os.Stdout, result); err != nil {
			return errors.Wrap(err, "failed to print results")
		}
	}

	if *historyPath != "" {
		if err := history.NewHistory(log, *historyPath).Append(*result); err != nil {
			return err
		}
	}
	return nil
}

func runWithSpinner(ctx context.Context, runner speedtest.Runner) (*types.SpeedTestResult, error) {
	sm := ysmrr.NewSpinnerManager()
	spinner := sm.AddSpinner("Starting...")
	sm.Start()

	result, err := runner.Run(ctx, func(update types.ProgressUpdate) {
		spinner.UpdateMessage(progressMessage(update))
	})
	if err != nil {
		spinner.ErrorWithMessage("Speed test failed")
	} else {
		spinner.CompleteWithMessage("Done!")
	}
	sm.Stop()

	return result, err
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
