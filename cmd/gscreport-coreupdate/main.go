package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshsymonds/gscreport/internal/analysis"
	"github.com/joshsymonds/gscreport/internal/cli"
	"github.com/joshsymonds/gscreport/internal/runtime"
	"github.com/joshsymonds/gscreport/internal/window"
)

type coreUpdateConfig struct {
	common *cli.CommonFlags
	name   string
	start  string
	end    string
	ended  bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger(false).Error("gscreport-coreupdate failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() coreUpdateConfig {
	common := cli.RegisterCommon(flag.CommandLine)
	name := flag.String("name", "", "core update name, e.g. \"June 2025 core update\"")
	start := flag.String("start", "", "update start date (YYYY-MM-DD)")
	end := flag.String("end", "", "update end date (YYYY-MM-DD), required with --ended")
	ended := flag.Bool("ended", false, "the update has finished rolling out")
	flag.Parse()

	return coreUpdateConfig{
		common: common,
		name:   *name,
		start:  *start,
		end:    *end,
		ended:  *ended,
	}
}

func run(cfg coreUpdateConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := cli.Connect(ctx, cfg.common.ConfigFile, cfg.common.Debug)
	if err != nil {
		return err
	}
	common, err := cfg.common.Common(env.Config)
	if err != nil {
		return err
	}
	params := analysis.CoreUpdateParams{Common: common, Name: cfg.name, Ended: cfg.ended}
	if params.Start, err = optionalDate(cfg.start); err != nil {
		return err
	}
	if params.End, err = optionalDate(cfg.end); err != nil {
		return err
	}

	svc := env.AnalysisService(cfg.common.XLSXDir)
	rep, runErr := svc.CoreUpdate(ctx, env.RunContext, params)
	return cli.Finish(rep, runErr, cfg.common.JSONOut, os.Stdout)
}

func optionalDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := window.Parse(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", analysis.ErrInvalidParams, err)
	}
	return t, nil
}
