package places

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tripkit/internal/provider"
)

const DefaultDuckDuckGoBase = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the keyless HTML results page.
type DuckDuckGo struct {
	base   string
	client *http.Client
}

func NewDuckDuckGo(base string, client *http.Client) *DuckDuckGo {
	if base == "" {
		base = DefaultDuckDuckGoBase
	}
	if client == nil {
		client = provider.SharedHTTPClient(15 * time.Second)
	}
	return &DuckDuckGo{base: strings.TrimRight(base, "/"), client: client}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	body, err := provider.Fetch(ctx, d.client, d.base+"/html/?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var out []Place
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		title := collapse(s.Find(".result__title").Text())
		if title == "" {
			return true
		}
		out = append(out, Place{Name: title, Descriptor: collapse(s.Find(".result__snippet").Text())})
		return len(out) < limit
	})
	return out, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
