package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/airsense/internal/ctl"
	"github.com/okian/airsense/pkg/logger"
)

func main() {
	var (
		baseURL = flag.String("url", ctl.DefaultBaseURL, "Base URL of the service")
		timeout = flag.Duration("timeout", ctl.DefaultTimeout, "HTTP request timeout")
		count   = flag.Int("n", 0, "Snapshots to read for watch and check; 0 streams until interrupted")
		minConf = flag.Uint("min-confidence", ctl.DefaultMinVendorConfidence, "Vendor confidence the service selects at")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || flag.NArg() != 1 {
		ctl.ShowHelp(os.Stdout)
		if !*help {
			os.Exit(2)
		}
		return
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithLevel(level)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &ctl.Config{
		BaseURL:             *baseURL,
		Timeout:             *timeout,
		Count:               *count,
		MinVendorConfidence: uint8(min(*minConf, 3)), //nolint:gosec // clamped
		Verbose:             *verbose,
	}

	runner := ctl.NewRunner(cfg, os.Stdout, logger.Named("airsensectl"))
	if err := runner.Run(ctx, flag.Arg(0)); err != nil {
		os.Stderr.WriteString("airsensectl: " + err.Error() + "\n")
		os.Exit(1)
	}
}
