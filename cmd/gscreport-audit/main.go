package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/gscreport/internal/analysis"
	"github.com/joshsymonds/gscreport/internal/cli"
	"github.com/joshsymonds/gscreport/internal/runtime"
	"github.com/joshsymonds/gscreport/internal/window"
)

type auditConfig struct {
	common      *cli.CommonFlags
	mode        string
	days        int
	periods     int
	topN        int
	ga4Property string
	summarize   bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger(false).Error("gscreport-audit failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() auditConfig {
	common := cli.RegisterCommon(flag.CommandLine)
	mode := flag.String("mode", string(window.ModeWeekly), "period mode: weekly, biweekly, monthly or custom")
	days := flag.Int("days", 0, "period length in days for --mode custom")
	periods := flag.Int("periods", 3, "number of previous periods to compare (1-12)")
	topN := flag.Int("top", 20, "number of top pages to compare")
	ga4 := flag.String("ga4-property", "", "GA4 property id for sessions (default from config)")
	summarize := flag.Bool("summary", false, "add a model written summary tab")
	flag.Parse()

	return auditConfig{
		common:      common,
		mode:        *mode,
		days:        *days,
		periods:     *periods,
		topN:        *topN,
		ga4Property: *ga4,
		summarize:   *summarize,
	}
}

func run(cfg auditConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mode, err := window.ParseMode(cfg.mode)
	if err != nil {
		return err
	}
	env, err := cli.Connect(ctx, cfg.common.ConfigFile, cfg.common.Debug)
	if err != nil {
		return err
	}
	common, err := cfg.common.Common(env.Config)
	if err != nil {
		return err
	}
	property := cfg.ga4Property
	if property == "" {
		property = env.Config.Analytics.PropertyID
	}

	svc := env.AnalysisService(cfg.common.XLSXDir)
	rep, runErr := svc.Audit(ctx, env.RunContext, analysis.AuditParams{
		Common:      common,
		Mode:        mode,
		CustomDays:  cfg.days,
		PeriodsBack: cfg.periods,
		TopN:        cfg.topN,
		GA4Property: property,
		Summarize:   cfg.summarize,
	})
	return cli.Finish(rep, runErr, cfg.common.JSONOut, os.Stdout)
}
