// Command logmon analyzes, tails and health-checks the bankops log files.
//
//	logmon analyze [--days 7] [--format text|json]
//	logmon monitor [--follow=true]
//	logmon health
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"bankops/internal/cli"
	"bankops/internal/config"
	"bankops/internal/logmon"
	"bankops/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(cfg, os.Args[2:])
	case "monitor":
		err = runMonitor(cfg, os.Args[2:])
	case "health":
		err = runHealth(cfg)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logmon:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: logmon <analyze|monitor|health> [flags]")
}

func runAnalyze(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	days := fs.Int("days", 7, "number of days to analyze")
	format := fs.String("format", "text", "output format: text or json")
	fs.Parse(args)

	report, err := logmon.NewAnalyzer(cfg.LogDir).Analyze(*days)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	switch *format {
	case "json":
		return logmon.WriteJSON(os.Stdout, report)
	case "text":
		logmon.WriteText(os.Stdout, report)
		return nil
	}
	return fmt.Errorf("unknown format %q", *format)
}

func runMonitor(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	follow := fs.Bool("follow", true, "follow the log file in real time")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	path := logmon.NewAnalyzer(cfg.LogDir).TodayFile()
	if *follow {
		fmt.Printf("Following log file: %s\nPress Ctrl+C to stop...\n", path)
	}
	return logmon.Tail(ctx, os.Stdout, path, *follow, 500*time.Millisecond)
}

func runHealth(cfg *config.Config) error {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	summary := metrics.Open(cfg.MetricsFile, quiet).Summary()
	logmon.WriteHealth(os.Stdout, metrics.CheckSystemHealth(cfg.LogDir), summary)
	return nil
}
