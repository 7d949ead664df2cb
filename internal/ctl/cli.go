package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
)

// Runner executes airsensectl commands against one service.
type Runner struct {
	cfg    *Config
	client *Client
	out    io.Writer
	log    logger.Logger
}

// NewRunner builds a Runner that prints results to out.
func NewRunner(cfg *Config, out io.Writer, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{cfg: cfg, client: NewClient(cfg), out: out, log: log}
}

// Run dispatches a single command by name.
func (r *Runner) Run(ctx context.Context, command string) error {
	r.log.Debug(ctx, "running command", logger.String("command", command), logger.String("url", r.cfg.BaseURL))

	switch command {
	case "reading":
		snap, err := r.client.Reading(ctx)
		if err != nil {
			return err
		}
		return r.print(snap)
	case "refresh":
		ack, err := r.client.Refresh(ctx)
		if err != nil {
			return err
		}
		return r.print(ack)
	case "reinit":
		ack, err := r.client.Reinit(ctx)
		if err != nil {
			return err
		}
		return r.print(ack)
	case "stats":
		stats, err := r.client.Stats(ctx)
		if err != nil {
			return err
		}
		return r.print(stats)
	case "watch":
		return r.watch(ctx, false)
	case "check":
		if r.cfg.Count > 0 {
			return r.watch(ctx, true)
		}
		snap, err := r.client.Reading(ctx)
		if err != nil {
			return err
		}
		if err := Verify(snap, r.cfg.MinVendorConfidence); err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.out, "ok %s %s\n", snap.Timestamp.Format("15:04:05"), snap.Metric.Source)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func (r *Runner) watch(ctx context.Context, verify bool) error {
	seen := 0
	var failure error
	err := r.client.Watch(ctx, func(s types.Snapshot) bool {
		seen++
		if verify {
			if err := Verify(s, r.cfg.MinVendorConfidence); err != nil {
				failure = err
				return false
			}
			r.log.Debug(ctx, "snapshot consistent", logger.Int("n", seen), logger.String("source", s.Metric.Source))
		}
		if err := r.line(s); err != nil {
			failure = err
			return false
		}
		return r.cfg.Count <= 0 || seen < r.cfg.Count
	})
	if failure != nil {
		return failure
	}
	return err
}

func (r *Runner) line(s types.Snapshot) error {
	value := "-"
	if s.Metric.Value != nil {
		value = fmt.Sprintf("%.1f", *s.Metric.Value)
	}
	detail := s.Metric.Label
	if s.Metric.Confidence != nil {
		detail = fmt.Sprintf("conf=%d", *s.Metric.Confidence)
	}
	_, err := fmt.Fprintf(r.out, "%s %-11s %6s %-9s T=%.1fC RH=%.1f%% P=%.1fhPa gas=%.1fkOhm\n",
		s.Timestamp.Format("15:04:05"), s.Metric.Source, value, detail,
		s.TemperatureC, s.HumidityPct, s.PressureHPa, s.GasKOhm)
	return err
}

func (r *Runner) print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `airsensectl
===========

Operator client for a running airsense service.

Usage:
  airsensectl [options] <command>

Commands:
  reading   Print the latest snapshot
  refresh   Sample immediately
  reinit    Set the sensor up again and rebuild the baseline
  stats     Print service counters
  watch     Stream snapshots over websocket
  check     Verify snapshot consistency (with -n, over the stream)

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -timeout duration
        HTTP request timeout (default 10s)
  -n int
        Snapshots to read for watch and check; 0 streams until interrupted
  -min-confidence int
        Vendor confidence the service selects at (default 2)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  airsensectl reading
  airsensectl -n 12 check
  airsensectl -url http://sensor.local:9080 watch
`)
}
