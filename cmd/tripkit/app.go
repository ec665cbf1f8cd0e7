package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tripkit/internal/browser"
	"tripkit/internal/config"
	"tripkit/internal/currency"
	"tripkit/internal/document"
	"tripkit/internal/domain"
	"tripkit/internal/places"
	"tripkit/internal/provider"
	"tripkit/internal/store"
	"tripkit/internal/tool"
	"tripkit/internal/weather"
)

// app is the set of services one command runs against.
type app struct {
	cfg         *config.Config
	registry    *tool.Registry
	synthesizer *document.Synthesizer
	ledger      *store.SQLiteStore // nil when the store is disabled
	bridge      *browser.Bridge    // nil unless documents.renderer is chrome
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist yet.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
			logger.Warn("config not found, using defaults", "path", cfgPath)
			cfg = config.Defaults()
			config.ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the general section. Output goes
// to stderr as text, or to logFile as JSON.
func newLogger(gc config.GeneralConfig) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(gc.LogLevel)}
	if gc.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(gc.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(gc.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newApp constructs the providers, the ledger, the synthesizer and the
// capability registry from cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}

	var ledger domain.Ledger
	if cfg.Store.Enabled {
		st, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		a.ledger = st
		ledger = st
	}

	renderer, err := a.renderer(logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	synth, err := document.NewSynthesizer(document.Config{
		OutputDir: cfg.Documents.OutputDir,
		Title:     cfg.Documents.Title,
		Renderer:  renderer,
		Ledger:    ledger,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	a.synthesizer = synth

	pc := cfg.Providers
	conv := currency.NewConverter(currency.Config{
		APIBase: pc.Currency.APIBase,
		APIKey:  pc.Currency.APIKey,
		Client:  provider.SharedHTTPClient(seconds(pc.Currency.TimeoutSeconds)),
		Logger:  logger,
	})
	wx := weather.NewService(weather.Config{
		APIBase: pc.Weather.APIBase,
		APIKey:  pc.Weather.APIKey,
		Units:   pc.Weather.Units,
		Client:  provider.SharedHTTPClient(seconds(pc.Weather.TimeoutSeconds)),
		Logger:  logger,
	})

	placesClient := provider.SharedHTTPClient(seconds(pc.Places.TimeoutSeconds))
	searchers := []places.Searcher{
		places.NewGooglePlaces(pc.Places.APIBase, pc.Places.APIKey, placesClient),
	}
	if !pc.Places.DisableFallback {
		searchers = append(searchers, places.NewDuckDuckGo(pc.Places.FallbackBase, placesClient))
	}
	ps := places.NewService(places.Config{
		Searchers:  searchers,
		MaxResults: pc.Places.MaxResults,
		Logger:     logger,
	})

	var opts []tool.Option
	if a.ledger != nil {
		opts = append(opts, tool.WithAuditor(a.ledger))
	}
	a.registry = tool.NewRegistry(logger, opts...)
	if err := tool.RegisterDefaults(a.registry, tool.Services{
		Currency:  conv,
		Weather:   wx,
		Places:    ps,
		Documents: synth,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("register capabilities: %w", err)
	}
	return a, nil
}

func (a *app) renderer(logger *slog.Logger) (document.Renderer, error) {
	dc := a.cfg.Documents
	switch dc.Renderer {
	case "", "pdf":
		if dc.FontFile != "" {
			return document.NewPDFRendererWithFont(dc.FontFile)
		}
		return document.NewPDFRenderer(), nil
	case "chrome":
		a.bridge = browser.NewBridge(browser.BridgeConfig{
			ProfileDir: dc.ChromeProfileDir,
			ExecPath:   dc.ChromePath,
			Timeout:    seconds(dc.TimeoutSeconds),
			Logger:     logger,
		})
		if !a.bridge.Available() {
			logger.Warn("chrome not found, documents will fail to render", "path", dc.ChromePath)
		}
		return document.NewChromeRenderer(a.bridge), nil
	default:
		return nil, fmt.Errorf("unknown document renderer %q", dc.Renderer)
	}
}

func (a *app) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}
