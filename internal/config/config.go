package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for tripkit.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Documents DocumentsConfig `json:"documents" yaml:"documents"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	Workspace string `json:"workspace" yaml:"workspace"`
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"` // optional log file path
}

// ProvidersConfig holds the credentials and endpoints of the lookup and
// conversion services. An empty API key disables the provider.
type ProvidersConfig struct {
	Weather  WeatherConfig  `json:"weather" yaml:"weather"`
	Places   PlacesConfig   `json:"places" yaml:"places"`
	Currency CurrencyConfig `json:"currency" yaml:"currency"`
}

type WeatherConfig struct {
	APIBase        string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" secret:"true"`
	Units          string `json:"units" yaml:"units"` // "metric" | "imperial" | "standard"
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type PlacesConfig struct {
	APIBase         string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey          string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" secret:"true"`
	FallbackBase    string `json:"fallbackBase,omitempty" yaml:"fallbackBase,omitempty"` // DuckDuckGo HTML endpoint
	DisableFallback bool   `json:"disableFallback,omitempty" yaml:"disableFallback,omitempty"`
	MaxResults      int    `json:"maxResults" yaml:"maxResults"`
	TimeoutSeconds  int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type CurrencyConfig struct {
	APIBase        string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" secret:"true"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type DocumentsConfig struct {
	OutputDir        string `json:"outputDir" yaml:"outputDir"`
	Renderer         string `json:"renderer" yaml:"renderer"` // "pdf" | "chrome"
	Title            string `json:"title,omitempty" yaml:"title,omitempty"`
	ChromeProfileDir string `json:"chromeProfileDir,omitempty" yaml:"chromeProfileDir,omitempty"`
	ChromePath       string `json:"chromePath,omitempty" yaml:"chromePath,omitempty"`
	FontFile         string `json:"fontFile,omitempty" yaml:"fontFile,omitempty"` // TTF for the pdf renderer
	TimeoutSeconds   int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// StoreConfig configures the SQLite document and invocation ledger.
type StoreConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	DBPath        string `json:"dbPath" yaml:"dbPath"`
	RetentionDays int    `json:"retentionDays" yaml:"retentionDays"` // invocation rows; 0 keeps everything
}

// GatewayConfig configures the HTTP capability gateway.
type GatewayConfig struct {
	Host               string  `json:"host" yaml:"host"`
	Port               int     `json:"port" yaml:"port"`
	APIKey             string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty" secret:"true"`
	RateLimitPerMinute float64 `json:"rateLimitPerMinute" yaml:"rateLimitPerMinute"` // invocations; 0 disables
	RateLimitBurst     int     `json:"rateLimitBurst" yaml:"rateLimitBurst"`
}

// MetricsConfig configures the Prometheus endpoint on the gateway.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.tripkit).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tripkit"
	}
	return filepath.Join(home, ".tripkit")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	ApplyEnv(cfg)
	cfg.expandPaths()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (cfg *Config) expandPaths() {
	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Documents.OutputDir = ExpandPath(cfg.Documents.OutputDir)
	cfg.Documents.ChromeProfileDir = ExpandPath(cfg.Documents.ChromeProfileDir)
	cfg.Documents.FontFile = ExpandPath(cfg.Documents.FontFile)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
}

// Environment variables that fill empty provider keys.
const (
	EnvWeatherKey  = "OPENWEATHERMAP_API_KEY"
	EnvPlacesKey   = "GPLACES_API_KEY"
	EnvCurrencyKey = "EXCHANGE_RATE_API_KEY"
)

// ApplyEnv fills provider keys left empty in the file from the process
// environment. Keys set in the file win.
func ApplyEnv(cfg *Config) {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fill(&cfg.Providers.Weather.APIKey, EnvWeatherKey)
	fill(&cfg.Providers.Places.APIKey, EnvPlacesKey)
	fill(&cfg.Providers.Currency.APIKey, EnvCurrencyKey)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes cfg as YAML or JSON depending on the file extension.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	switch cfg.Providers.Weather.Units {
	case "metric", "imperial", "standard":
	default:
		errs = append(errs, "providers.weather.units must be one of: metric, imperial, standard")
	}
	if cfg.Providers.Places.MaxResults < 1 || cfg.Providers.Places.MaxResults > 20 {
		errs = append(errs, "providers.places.maxResults must be between 1 and 20")
	}
	for name, secs := range map[string]int{
		"providers.weather.timeoutSeconds":  cfg.Providers.Weather.TimeoutSeconds,
		"providers.places.timeoutSeconds":   cfg.Providers.Places.TimeoutSeconds,
		"providers.currency.timeoutSeconds": cfg.Providers.Currency.TimeoutSeconds,
		"documents.timeoutSeconds":          cfg.Documents.TimeoutSeconds,
	} {
		if secs < 1 || secs > 300 {
			errs = append(errs, name+" must be between 1 and 300")
		}
	}

	if cfg.Documents.OutputDir == "" {
		errs = append(errs, "documents.outputDir is required")
	}
	switch cfg.Documents.Renderer {
	case "pdf", "chrome":
	default:
		errs = append(errs, "documents.renderer must be one of: pdf, chrome")
	}

	if cfg.Store.Enabled && cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath is required when the store is enabled")
	}
	if cfg.Store.RetentionDays < 0 {
		errs = append(errs, "store.retentionDays must be >= 0")
	}
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 0 and 65535")
	}
	if cfg.Gateway.RateLimitPerMinute < 0 || cfg.Gateway.RateLimitBurst < 0 {
		errs = append(errs, "gateway rate limits must be >= 0")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		sort.Strings(errs) // timeout checks iterate a map
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
