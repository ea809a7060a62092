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
)

func main() {
	common := cli.RegisterCommon(flag.CommandLine)
	flag.Parse()
	if err := run(common); err != nil {
		runtime.DefaultLogger(false).Error("gscreport-evergreen failed", "error", err)
		os.Exit(1)
	}
}

func run(flags *cli.CommonFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := cli.Connect(ctx, flags.ConfigFile, flags.Debug)
	if err != nil {
		return err
	}
	common, err := flags.Common(env.Config)
	if err != nil {
		return err
	}
	svc := env.AnalysisService(flags.XLSXDir)
	rep, runErr := svc.Evergreen(ctx, env.RunContext, analysis.EvergreenParams{Common: common})
	return cli.Finish(rep, runErr, flags.JSONOut, os.Stdout)
}
