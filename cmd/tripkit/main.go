package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"tripkit/internal/config"
	"tripkit/internal/document"
	"tripkit/internal/domain"
	"tripkit/internal/gateway"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:           "tripkit",
		Short:         "tripkit: travel planning capabilities and itinerary documents",
		Long:          "tripkit exposes weather, place, currency and expense capabilities to a planning agent and renders the final itinerary to PDF.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.tripkit/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(invokeCmd())
	root.AddCommand(saveCmd())
	root.AddCommand(showCmd())
	root.AddCommand(documentsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(archiveCmd())

	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err with its stable code when it carries one.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	if code := domain.ErrorCode(err); code != domain.CodeInternal {
		red.Fprintf(w, "error [%s]: ", code)
	} else {
		red.Fprint(w, "error: ")
	}
	fmt.Fprintln(w, err)
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// setup loads the config, replaces the bootstrap logger and builds the app.
// The returned cleanup closes the ledger and the log file.
func setup() (*app, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	l, logCloser, err := newLogger(cfg.General)
	if err != nil {
		return nil, nil, err
	}
	logger = l
	a, err := newApp(cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		logCloser.Close()
	}, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{cfg.General.Workspace, cfg.Documents.OutputDir} {
				if err := os.MkdirAll(config.ExpandPath(dir), 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "output", cfg.Documents.OutputDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. documents.renderer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. documents.renderer chrome)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, paths[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the capability set over HTTP",
		Long:  "Starts the HTTP gateway used by planning agents to list and invoke capabilities. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gc := gateway.Config{
		Host:         a.cfg.Gateway.Host,
		Port:         a.cfg.Gateway.Port,
		APIKey:       a.cfg.Gateway.APIKey,
		Capabilities: a.registry,
		DocumentDir:  a.synthesizer.Dir(),
		Logger:       logger,
	}
	if a.ledger != nil {
		gc.Documents = a.ledger
		if days := a.cfg.Store.RetentionDays; days > 0 {
			go pruneLoop(ctx, a, time.Duration(days)*24*time.Hour)
		}
	}
	if a.cfg.Metrics.Enabled {
		gc.MetricsPath = a.cfg.Metrics.Endpoint
	}
	if rpm := a.cfg.Gateway.RateLimitPerMinute; rpm > 0 {
		gc.Limiter = gateway.NewRateLimiter(a.cfg.Gateway.RateLimitBurst, rpm)
	}
	if gc.APIKey == "" {
		logger.Warn("gateway has no API key, every request is accepted", "host", gc.Host)
	}

	gw := gateway.New(gc)
	logger.Info("serving capabilities", "count", len(a.registry.Names()), "output", a.synthesizer.Dir())
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// pruneLoop drops invocation rows older than keep, once at startup and then
// every hour until ctx is done.
func pruneLoop(ctx context.Context, a *app, keep time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := a.ledger.PruneInvocations(ctx, time.Now().Add(-keep))
		if err != nil {
			logger.Warn("prune invocations failed", "err", err)
		} else if n > 0 {
			logger.Info("pruned invocations", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and verify the capability set",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			defs := a.registry.Definitions()
			if asJSON {
				data, _ := json.MarshalIndent(defs, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, d := range defs {
				fmt.Fprintf(tw, "%s\t%s\n", color.CyanString(d.Name), d.Description)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print definitions with their input schemas")
	cmd.AddCommand(list)

	var withDocument bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Invoke each capability family with sample inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Println("Verifying capabilities...")
			res := runVerify(cmd.Context(), a.registry, verifyChecks(withDocument))
			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", res.passed, res.warned, res.failed)
			if res.failed > 0 {
				return fmt.Errorf("%d check(s) failed", res.failed)
			}
			return nil
		},
	}
	verify.Flags().BoolVar(&withDocument, "document", false, "also render a sample itinerary")
	cmd.AddCommand(verify)

	return cmd
}

func invokeCmd() *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "invoke NAME [key=value...]",
		Short: "Invoke one capability",
		Long: `Invokes a capability by name. Arguments come from --args as a JSON object
and/or from key=value pairs; values that parse as JSON (numbers, arrays) are
passed as such, anything else as a string.`,
		Example: `  tripkit invoke estimate_total_hotel_cost price_per_night=100 total_days=5
  tripkit invoke calculate_total_expense --args '{"costs":[100,200,50.5]}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := parseInvokeArgs(rawArgs, args[1:])
			if err != nil {
				return err
			}
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := a.registry.Invoke(cmd.Context(), args[0], callArgs)
			if err != nil {
				return err
			}
			return printResult(os.Stdout, out)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "arguments as a JSON object")
	return cmd
}

// parseInvokeArgs merges a JSON object with key=value pairs; pairs win.
func parseInvokeArgs(raw string, pairs []string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("--args is not a JSON object: %w", domain.ErrInvalidRequest)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value: %w", p, domain.ErrInvalidRequest)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			parsed = v
		}
		args[k] = parsed
	}
	return args, nil
}

func printResult(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [FILE]",
		Short: "Render a markdown itinerary to PDF",
		Long:  "Renders the markdown in FILE (or standard input when FILE is omitted or '-') and prints the absolute path of the document.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(args)
			if err != nil {
				return err
			}
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := a.synthesizer.Save(cmd.Context(), body)
			if err != nil {
				return err
			}
			color.Green("Itinerary saved")
			fmt.Println(doc.Path)
			return nil
		},
	}
}

func readBody(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 4<<20))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show PATH|ID",
		Short: "Print the text of a rendered itinerary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				a, cleanup, err := setup()
				if err != nil {
					return err
				}
				defer cleanup()
				resolved, err := a.resolveDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path = resolved
			}
			text, err := document.ExtractText(path)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

// resolveDocument maps a document id to its path through the ledger, or
// the output directory when the ledger is off.
func (a *app) resolveDocument(ctx context.Context, id string) (string, error) {
	if a.ledger != nil {
		doc, err := a.ledger.GetDocument(ctx, id)
		if err != nil {
			return "", err
		}
		if doc != nil {
			return doc.Path, nil
		}
	}
	path := filepath.Join(a.synthesizer.Dir(), strings.TrimSuffix(id, ".pdf")+".pdf")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("document %q not found", id)
	}
	return path, nil
}

func documentsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List rendered itineraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()
			if a.ledger == nil {
				return errors.New("the ledger is disabled (store.enabled is false)")
			}
			docs, err := a.ledger.ListDocuments(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tSIZE\tRENDERER\tPATH")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					d.CreatedAt.Local().Format(time.DateTime), humanSize(d.Bytes), d.Renderer, d.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of documents to list")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent capability invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()
			if a.ledger == nil {
				return errors.New("the ledger is disabled (store.enabled is false)")
			}
			recs, err := a.ledger.RecentInvocations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCAPABILITY\tOUTCOME\tDURATION\tARGUMENTS")
			for _, r := range recs {
				outcome := color.GreenString(r.Outcome)
				if r.Outcome != "ok" {
					outcome = color.RedString(r.ErrorCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Capability, outcome, r.DurationMs, r.Arguments)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of invocations to show")
	return cmd
}
