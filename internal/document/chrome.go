package document

import (
	"context"
	"fmt"
	"io"

	"tripkit/internal/browser"
)

const chromeFooter = `<div style="font-size:8px;width:100%;text-align:center;color:#888">` +
	`Page <span class="pageNumber"></span>/<span class="totalPages"></span></div>`

// ChromeRenderer prints the HTML rendition through headless Chrome.
type ChromeRenderer struct {
	bridge *browser.Bridge
}

func NewChromeRenderer(bridge *browser.Bridge) *ChromeRenderer {
	return &ChromeRenderer{bridge: bridge}
}

func (r *ChromeRenderer) Name() string { return "chrome" }

func (r *ChromeRenderer) Render(ctx context.Context, page Page, w io.Writer) error {
	html, err := HTML(page)
	if err != nil {
		return err
	}
	opts := browser.A4
	opts.FooterTemplate = chromeFooter
	out, err := r.bridge.PrintPDF(ctx, html, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
