package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Bridge manages headless Chrome instances used to print HTML to PDF.
type Bridge struct {
	profileDir string
	execPath   string
	timeout    time.Duration
	logger     *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir string        // Chrome user data directory
	ExecPath   string        // optional Chrome binary; found on PATH when empty
	Timeout    time.Duration // per print job
	Logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = filepath.Join(os.TempDir(), "tripkit-chrome")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		execPath:   cfg.ExecPath,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

var chromeNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// Available reports whether a Chrome binary can be found.
func (b *Bridge) Available() bool {
	if b.execPath != "" {
		_, err := os.Stat(b.execPath)
		return err == nil
	}
	for _, name := range chromeNames {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// NewContext creates a new headless chromedp context with the bridge's
// profile. The caller MUST call cancel() when done.
func (b *Bridge) NewContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("no-first-run", true),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	cancelAll := func() {
		taskCancel()
		allocCancel()
	}

	return taskCtx, cancelAll
}

// PrintOptions controls PrintPDF page geometry. Sizes are in inches.
type PrintOptions struct {
	PaperWidth     float64
	PaperHeight    float64
	FooterTemplate string
}

// A4 is the default paper size.
var A4 = PrintOptions{PaperWidth: 8.27, PaperHeight: 11.69}

// PrintPDF loads html into a blank page and prints it.
func (b *Bridge) PrintPDF(ctx context.Context, html string, opts PrintOptions) ([]byte, error) {
	if opts.PaperWidth <= 0 || opts.PaperHeight <= 0 {
		opts.PaperWidth, opts.PaperHeight = A4.PaperWidth, A4.PaperHeight
	}

	taskCtx, cancel := b.NewContext(ctx)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	var out []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(opts.PaperWidth).
				WithPaperHeight(opts.PaperHeight)
			if opts.FooterTemplate != "" {
				params = params.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate("<span></span>").
					WithFooterTemplate(opts.FooterTemplate)
			}
			buf, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			out = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	b.logger.Debug("printed pdf", "bytes", len(out))
	return out, nil
}
