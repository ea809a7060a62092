// Package config loads gscreport settings from defaults, an optional YAML
// file and GSCREPORT_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GSCREPORT_"

// PathEnvVar overrides the config file location.
const PathEnvVar = EnvPrefix + "CONFIG"

// DefaultPaths are searched when no config file is named.
var DefaultPaths = []string{"gscreport.yaml", "gscreport.yml"}

// Config is the full gscreport configuration.
type Config struct {
	Auth          AuthConfig          `koanf:"auth"`
	Sheets        SheetsConfig        `koanf:"sheets"`
	SearchConsole SearchConsoleConfig `koanf:"search_console"`
	Analytics     AnalyticsConfig     `koanf:"analytics"`
	Summary       SummaryConfig       `koanf:"summary"`
	Defaults      DefaultsConfig      `koanf:"defaults"`
	Output        OutputConfig        `koanf:"output"`
}

// AuthConfig locates the OAuth client secret and the cached token.
type AuthConfig struct {
	CredentialsFile string `koanf:"credentials_file" validate:"required"`
	// TokenFile defaults to token.json in the user config directory.
	TokenFile string `koanf:"token_file"`
}

// SheetsConfig controls where reports are written.
type SheetsConfig struct {
	FolderID        string          `koanf:"folder_id"`
	Templates       TemplatesConfig `koanf:"templates"`
	ShareWith       []string        `koanf:"share_with"        validate:"dive,email"`
	ActivitySheetID string          `koanf:"activity_sheet_id"`
	ActivityTab     string          `koanf:"activity_tab"`
}

// TemplatesConfig holds one template spreadsheet ID per analysis kind.
type TemplatesConfig struct {
	CoreUpdate string `koanf:"core_update"`
	Evergreen  string `koanf:"evergreen"`
	Audit      string `koanf:"audit"`
}

// Map keys template IDs by analysis kind.
func (t TemplatesConfig) Map() map[string]string {
	return map[string]string{
		"core_update": t.CoreUpdate,
		"evergreen":   t.Evergreen,
		"audit":       t.Audit,
	}
}

// SearchConsoleConfig tunes the search analytics client.
type SearchConsoleConfig struct {
	RequestsPerSecond int    `koanf:"requests_per_second" validate:"gte=0"`
	Breaker           bool   `koanf:"breaker"`
	DataState         string `koanf:"data_state"          validate:"oneof=final all"`
	Workers           int    `koanf:"workers"             validate:"gte=1,lte=16"`
}

// AnalyticsConfig tunes the GA4 client.
type AnalyticsConfig struct {
	PropertyID        string `koanf:"property_id"`
	RequestsPerSecond int    `koanf:"requests_per_second" validate:"gte=0"`
}

// SummaryConfig configures the language model used for audit summaries.
type SummaryConfig struct {
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"    validate:"omitempty,url"`
	Temperature float32 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens"  validate:"gte=0"`
}

// DefaultsConfig supplies per-run values when flags are omitted.
type DefaultsConfig struct {
	Site    string `koanf:"site"`
	Types   string `koanf:"types"`
	LagDays int    `koanf:"lag_days" validate:"gte=0"`
}

// OutputConfig names local output locations.
type OutputConfig struct {
	XLSXDir string `koanf:"xlsx_dir"`
}

func defaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{CredentialsFile: "credentials.json"},
		Sheets: SheetsConfig{
			ActivityTab: "Log",
		},
		SearchConsole: SearchConsoleConfig{
			RequestsPerSecond: 5,
			Breaker:           true,
			DataState:         "final",
			Workers:           4,
		},
		Analytics: AnalyticsConfig{RequestsPerSecond: 2},
		Summary: SummaryConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.4,
			MaxTokens:   1200,
		},
		Defaults: DefaultsConfig{Types: "web", LagDays: 3},
	}
}

// Load reads configuration. path names a config file and may be empty, in
// which case PathEnvVar and DefaultPaths are tried. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if loadErr := k.Load(file.Provider(configPath), yaml.Parser()); loadErr != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, loadErr)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if envPath := os.Getenv(PathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// sections are matched longest first so nested sections win.
var sections = []string{
	"sheets.templates",
	"search_console",
	"analytics",
	"defaults",
	"summary",
	"output",
	"sheets",
	"auth",
}

// envTransform maps GSCREPORT_SHEETS_FOLDER_ID to sheets.folder_id.
// Variables outside a known section are ignored.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, section := range sections {
		prefix := strings.ReplaceAll(section, ".", "_") + "_"
		if rest, ok := strings.CutPrefix(key, prefix); ok && rest != "" {
			return section + "." + rest
		}
	}
	return ""
}

var listPaths = []string{"sheets.share_with"}

// splitLists turns comma separated env values into slices.
func splitLists(k *koanf.Koanf) error {
	for _, path := range listPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
