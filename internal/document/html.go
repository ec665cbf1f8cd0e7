package document

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; line-height: 1.45; margin: 18mm; color: #111; }
header { background: #215ea0; color: #fff; text-align: center; padding: 8px 0; }
header h1 { margin: 0; font-size: 20pt; }
.generated { text-align: center; color: #666; font-style: italic; font-size: 9pt; margin: 4px 0 16px; }
h1, h2 { color: #215ea0; }
pre { background: #f2f2f2; padding: 6px; font-size: 9pt; white-space: pre-wrap; }
blockquote { color: #505050; font-style: italic; margin-left: 6mm; }
table { border-collapse: collapse; } td, th { border: 1px solid #bbb; padding: 3px 6px; }
.disclaimer { margin-top: 24px; color: #777; font-style: italic; font-size: 8pt; }
</style></head>
<body>
<header><h1>{{.Title}}</h1></header>
<p class="generated">Generated {{.Generated}}</p>
{{.Content}}
<p class="disclaimer">{{.Disclaimer}}</p>
</body></html>`))

// HTML renders the page as a standalone HTML document.
func HTML(page Page) (string, error) {
	var content bytes.Buffer
	if err := markdown.Convert([]byte(Dedent(page.Body)), &content); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	var out bytes.Buffer
	err := pageTemplate.Execute(&out, map[string]any{
		"Title":      page.Title,
		"Generated":  page.Generated.Format("2006-01-02 15:04 MST"),
		"Content":    template.HTML(content.String()),
		"Disclaimer": Disclaimer,
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return out.String(), nil
}
