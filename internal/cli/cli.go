// Package cli holds the flag parsing and service wiring shared by the
// gscreport binaries.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joshsymonds/gscreport/internal/analysis"
	"github.com/joshsymonds/gscreport/internal/analytics"
	"github.com/joshsymonds/gscreport/internal/config"
	"github.com/joshsymonds/gscreport/internal/rate"
	"github.com/joshsymonds/gscreport/internal/runtime"
	"github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/sheets"
	"github.com/joshsymonds/gscreport/internal/summary"
	"github.com/joshsymonds/gscreport/internal/xlsx"
)

// lagFromConfig marks the lag flag as unset.
const lagFromConfig = -1

// CommonFlags are accepted by every analysis binary.
type CommonFlags struct {
	ConfigFile string
	Site       string
	Types      string
	Country    string
	Section    string
	Subsection string
	Lag        int
	XLSXDir    string
	JSONOut    string
	Debug      bool
}

// RegisterCommon binds the shared flags on fs.
func RegisterCommon(fs *flag.FlagSet) *CommonFlags {
	f := &CommonFlags{}
	fs.StringVar(&f.ConfigFile, "config-file", "", "path to gscreport.yaml (optional)")
	fs.StringVar(&f.Site, "site", "", "Search Console property, e.g. sc-domain:example.com")
	fs.StringVar(&f.Types, "types", "", "comma separated data types: web,discover")
	fs.StringVar(&f.Country, "country", "", "ISO 3166-1 alpha-3 country filter")
	fs.StringVar(&f.Section, "section", "", "URL section filter, e.g. /news")
	fs.StringVar(&f.Subsection, "subsection", "", "URL subsection filter (needs --section)")
	fs.IntVar(&f.Lag, "lag", lagFromConfig, "days of data lag to skip (default from config)")
	fs.StringVar(&f.XLSXDir, "xlsx-dir", "", "write a local .xlsx into this directory instead of Google Sheets")
	fs.StringVar(&f.JSONOut, "json", "", "write JSON run report to path")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	return f
}

// Common merges the flags over the configured defaults.
func (f *CommonFlags) Common(cfg *config.Config) (analysis.Common, error) {
	site := firstNonEmpty(f.Site, cfg.Defaults.Site)
	types, err := analysis.ParseTypes(firstNonEmpty(f.Types, cfg.Defaults.Types))
	if err != nil {
		return analysis.Common{}, err
	}
	lag := f.Lag
	if lag == lagFromConfig {
		lag = cfg.Defaults.LagDays
	}
	return analysis.Common{
		Site:       strings.TrimSpace(site),
		Types:      types,
		LagDays:    lag,
		Country:    strings.TrimSpace(f.Country),
		Section:    strings.TrimSpace(f.Section),
		Subsection: strings.TrimSpace(f.Subsection),
	}, nil
}

// Env is an authenticated session with every Google service ready.
type Env struct {
	Config     *config.Config
	Logger     *slog.Logger
	Services   *runtime.Services
	RunContext analysis.RunContext
}

// Connect loads configuration, signs in and builds the Google services.
func Connect(ctx context.Context, configFile string, debug bool) (*Env, error) {
	logger := runtime.DefaultLogger(debug)
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	auth := runtime.Authenticator{
		CredentialsFile: cfg.Auth.CredentialsFile,
		TokenFile:       cfg.Auth.TokenFile,
	}
	client, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	services, err := runtime.NewServices(ctx, client)
	if err != nil {
		return nil, err
	}
	email, err := runtime.UserEmail(ctx, client)
	if err != nil {
		logger.WarnContext(ctx, "could not resolve signed-in user", slog.Any("error", err))
	}
	return &Env{
		Config:     cfg,
		Logger:     logger,
		Services:   services,
		RunContext: analysis.RunContext{UserEmail: email, GSCAccount: email},
	}, nil
}

// AnalysisService wires the fetcher, destination and optional
// collaborators. xlsxDir selects local output over Google Sheets.
func (e *Env) AnalysisService(xlsxDir string) *analysis.Service {
	cfg := e.Config
	var scClient searchconsole.Client = e.Services.SearchConsoleClient()
	if cfg.SearchConsole.Breaker {
		scClient = searchconsole.NewBreakerClient(scClient, e.Logger)
	}
	fetcher := searchconsole.NewFetcher(scClient, rate.FromRPS(cfg.SearchConsole.RequestsPerSecond), e.Logger)
	fetcher.DataState = cfg.SearchConsole.DataState

	sheetsClient := e.Services.SheetsClient()
	var pub analysis.Publisher
	if dir := firstNonEmpty(xlsxDir, cfg.Output.XLSXDir); dir != "" {
		pub = analysis.XLSXPublisher{Publisher: &xlsx.Publisher{Dir: dir}}
	} else {
		pub = analysis.SheetsPublisher{Publisher: sheets.NewPublisher(
			sheetsClient,
			cfg.Sheets.Templates.Map(),
			cfg.Sheets.FolderID,
			cfg.Sheets.ShareWith,
			e.Logger,
		)}
	}

	svc := analysis.NewService(fetcher, pub, e.Logger)
	svc.Workers = cfg.SearchConsole.Workers
	if cfg.Sheets.ActivitySheetID != "" {
		svc.Activity = &sheets.ActivityLog{
			Client:        sheetsClient,
			SpreadsheetID: cfg.Sheets.ActivitySheetID,
			Tab:           cfg.Sheets.ActivityTab,
		}
	}
	svc.Sessions = e.Analytics()
	if cfg.Summary.APIKey != "" {
		provider := summary.NewGeminiProvider(
			cfg.Summary.APIKey,
			cfg.Summary.Model,
			cfg.Summary.BaseURL,
			cfg.Summary.Temperature,
			cfg.Summary.MaxTokens,
		)
		svc.Summarizer = summary.New(provider, e.Logger)
	}
	return svc
}

// Analytics returns the rate limited GA4 service.
func (e *Env) Analytics() *analytics.Service {
	limiter := rate.FromRPS(e.Config.Analytics.RequestsPerSecond)
	return analytics.NewService(e.Services.AnalyticsClient(), limiter, e.Logger)
}

// Finish prints the run report, writes the JSON copy when asked and turns
// a run without data into an error.
func Finish(rep analysis.RunReport, runErr error, jsonOut string, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	if rep.Run.ID != "" {
		if printErr := analysis.PrintHuman(rep, w); printErr != nil {
			return errors.Join(runErr, fmt.Errorf("print report: %w", printErr))
		}
		if jsonOut != "" {
			written, writeErr := analysis.WriteJSON(rep, jsonOut)
			if writeErr != nil {
				return errors.Join(runErr, fmt.Errorf("write json: %w", writeErr))
			}
			fmt.Fprintf(w, "JSON report: %s\n", written)
		}
	}
	if runErr != nil {
		return runErr
	}
	return rep.Err()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
