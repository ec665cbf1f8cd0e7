package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tripkit/internal/browser"
	"tripkit/internal/config"
	"tripkit/internal/store"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tripkit installation",
		Long: `Verifies that tripkit's configuration, output directory, ledger database,
provider credentials and renderer are correctly set up. Reports pass/fail for
each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tripkit doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'tripkit init' to create a default configuration.\n")
				return fmt.Errorf("config not found")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return fmt.Errorf("invalid config")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Output directory writable
			if err := checkWritableDir(cfg.Documents.OutputDir); err != nil {
				printFail("Output directory", err.Error())
				failed++
			} else {
				printPass("Output directory", cfg.Documents.OutputDir)
				passed++
			}

			// 4. Ledger database
			if cfg.Store.Enabled {
				if err := checkDatabase(cfg.Store.DBPath); err != nil {
					printFail("Ledger", err.Error())
					failed++
				} else {
					printPass("Ledger", cfg.Store.DBPath)
					passed++
				}
			} else {
				printWarn("Ledger", "disabled (documents and invocations are not recorded)")
				warned++
			}

			// 5. Provider credentials
			pc := cfg.Providers
			for _, p := range []struct {
				name, key, env string
			}{
				{"Weather", pc.Weather.APIKey, config.EnvWeatherKey},
				{"Currency", pc.Currency.APIKey, config.EnvCurrencyKey},
			} {
				if p.key == "" {
					printWarn(p.name, fmt.Sprintf("no API key (set %s)", p.env))
					warned++
				} else {
					printPass(p.name, "API key configured")
					passed++
				}
			}
			switch {
			case pc.Places.APIKey != "":
				printPass("Places", "Google Places configured")
				passed++
			case !pc.Places.DisableFallback:
				printWarn("Places", fmt.Sprintf("no API key, using DuckDuckGo fallback (set %s)", config.EnvPlacesKey))
				warned++
			default:
				printFail("Places", "no API key and fallback disabled")
				failed++
			}

			// 6. Renderer
			if cfg.Documents.Renderer == "chrome" {
				bridge := browser.NewBridge(browser.BridgeConfig{
					ProfileDir: cfg.Documents.ChromeProfileDir,
					ExecPath:   cfg.Documents.ChromePath,
				})
				if bridge.Available() {
					printPass("Renderer", "chrome")
					passed++
				} else {
					printFail("Renderer", "chrome selected but no Chrome binary found")
					failed++
				}
			} else {
				printPass("Renderer", "pdf")
				passed++
			}

			// 7. Gateway port
			if err := checkPort(cfg.Gateway.Host, cfg.Gateway.Port); err != nil {
				printWarn("Gateway port", fmt.Sprintf("port %d may be in use: %v", cfg.Gateway.Port, err))
				warned++
			} else {
				printPass("Gateway port", fmt.Sprintf("%s:%d available", cfg.Gateway.Host, cfg.Gateway.Port))
				passed++
			}
			if cfg.Gateway.APIKey == "" {
				printWarn("Gateway auth", "no API key, requests are not authenticated")
				warned++
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running tripkit.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ntripkit should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! tripkit is ready to run.\n")
			}
			return nil
		},
	}
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", store.DSN(dbPath))
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
