package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joshsymonds/gscreport/internal/analytics"
	"github.com/joshsymonds/gscreport/internal/cli"
	"github.com/joshsymonds/gscreport/internal/runtime"
	"github.com/joshsymonds/gscreport/internal/searchconsole"
)

func main() {
	configFile := flag.String("config-file", "", "path to gscreport.yaml (optional)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()
	if err := run(*configFile, *debug); err != nil {
		runtime.DefaultLogger(false).Error("gscreport-sites failed", "error", err)
		os.Exit(1)
	}
}

func run(configFile string, debug bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := cli.Connect(ctx, configFile, debug)
	if err != nil {
		return err
	}
	sites, err := env.Services.SearchConsoleClient().ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list search console sites: %w", err)
	}
	props, err := env.Analytics().Properties(ctx)
	if err != nil {
		env.Logger.WarnContext(ctx, "list ga4 properties failed", slog.Any("error", err))
	}
	return printInventory(os.Stdout, env.RunContext.UserEmail, sites, props)
}

func printInventory(w io.Writer, user string, sites []searchconsole.Site, props []analytics.Property) error {
	sort.Slice(sites, func(i, j int) bool { return sites[i].URL < sites[j].URL })
	if _, err := fmt.Fprintf(w, "Signed in as %s\n\nSearch Console sites:\n", user); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	for _, s := range sites {
		fmt.Fprintf(w, "  %-50s %s\n", s.URL, s.Permission)
	}
	fmt.Fprintln(w, "\nGA4 properties:")
	for _, p := range props {
		fmt.Fprintf(w, "  %-22s %-40s %s\n", p.ID, p.DisplayName, p.Account)
	}
	return nil
}
