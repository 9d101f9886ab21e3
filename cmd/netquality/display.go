package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

type row struct {
	metric string
	value  string
}

// progressMessage is the spinner text for an update.
func progressMessage(update types.ProgressUpdate) string {
	switch update.Phase {
	case types.PhaseLatency:
		if ms, err := update.LatencyMs.Get(); err == nil {
			return fmt.Sprintf("Measuring latency... %.1f ms", ms)
		}
		return "Measuring latency..."
	case types.PhaseDownload:
		if speed, err := update.SpeedMbps.Get(); err == nil {
			return fmt.Sprintf("Download: %.2f Mbps (%d%%)", speed, percent(update.Progress))
		}
		return "Measuring download..."
	case types.PhaseUpload:
		if speed, err := update.SpeedMbps.Get(); err == nil {
			return fmt.Sprintf("Upload: %.2f Mbps (%d%%)", speed, percent(update.Progress))
		}
		return "Measuring upload..."
	case types.PhasePacketLoss:
		return fmt.Sprintf("Measuring packet loss... (%d%%)", percent(update.Progress))
	case types.PhaseDone:
		return "Done!"
	}
	return string(update.Phase)
}

func percent(progress float64) int {
	return int(progress * 100)
}

// resultRows lists the populated fields of result in display order.
func resultRows(result *types.SpeedTestResult) []row {
	var rows []row

	if loc, err := result.ServerLocation.Get(); err == nil {
		rows = append(rows, row{"Server", loc})
	}

	if latency, err := result.Latency.Get(); err == nil {
		rows = append(rows,
			row{"Latency (avg)", fmt.Sprintf("%.1f ms", latency.AvgMs)},
			row{"Latency (min/max)", fmt.Sprintf("%.1f / %.1f ms", latency.MinMs, latency.MaxMs)},
			row{"Jitter", fmt.Sprintf("%.1f ms", latency.JitterMs)},
		)
	}

	var transferred uint64
	if download, err := result.Download.Get(); err == nil {
		rows = append(rows, row{"Download", fmt.Sprintf("%.2f Mbps", download.Mbps)})
		transferred += uint64(download.BytesTransferred)
	}
	if upload, err := result.Upload.Get(); err == nil {
		rows = append(rows, row{"Upload", fmt.Sprintf("%.2f Mbps", upload.Mbps)})
		transferred += uint64(upload.BytesTransferred)
	}
	if result.Download.Has() || result.Upload.Has() {
		rows = append(rows, row{"Data transferred", humanize.Bytes(transferred)})
	}

	if loss, err := result.PacketLoss.Get(); err == nil {
		rows = append(rows, row{"Packet Loss", fmt.Sprintf("%.1f%%", loss)})
	}

	return rows
}

func printResults(w io.Writer, result *types.SpeedTestResult) error {
	header := color.New(color.FgCyan, color.Bold)
	metric := color.New(color.FgWhite)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "%s\t%s\n", header.Sprint("Metric"), header.Sprint("Value"))
	for _, r := range resultRows(result) {
		fmt.Fprintf(tw, "%s\t%s\n", metric.Sprint(r.metric), r.value)
	}
	return tw.Flush()
}
