// Package places searches for attractions, restaurants, activities and
// transport options. Like weather, it never surfaces an error to the
// orchestrator: failures become the NotFound sentinel.
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotConfigured is returned by a Searcher that lacks its credential.
var ErrNotConfigured = errors.New("place search is not configured")

// Place is one normalised search hit.
type Place struct {
	Name       string
	Descriptor string // address, snippet or rating line
}

// Searcher is a place-search backend.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// Category selects a query template.
type Category string

const (
	Attractions    Category = "attractions"
	Restaurants    Category = "restaurants"
	Activities     Category = "activities"
	Transportation Category = "transportation"
)

var categoryQuery = map[Category]string{
	Attractions:    "top attractions in %s",
	Restaurants:    "best restaurants in %s",
	Activities:     "things to do in %s",
	Transportation: "public transportation in %s",
}

// NotFound is the sentinel text for an empty or failed search.
func NotFound(query string) string {
	return fmt.Sprintf("No places found for %s.", query)
}

// Service runs a query against an ordered chain of searchers and returns
// the first non-empty answer.
type Service struct {
	searchers  []Searcher
	maxResults int
	logger     *slog.Logger
}

type Config struct {
	Searchers  []Searcher
	MaxResults int
	Logger     *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		searchers:  cfg.Searchers,
		maxResults: cfg.MaxResults,
		logger:     cfg.Logger,
	}
}

// Lookup returns a numbered list of places matching query, or the NotFound
// sentinel.
func (s *Service) Lookup(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return NotFound(query)
	}
	for _, src := range s.searchers {
		found, err := src.Search(ctx, query, s.maxResults)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				s.logger.Debug("place searcher skipped", "searcher", src.Name())
			} else {
				s.logger.Warn("place search failed", "searcher", src.Name(), "query", query, "err", err)
			}
			continue
		}
		if len(found) == 0 {
			continue
		}
		return format(found, s.maxResults)
	}
	return NotFound(query)
}

// ByCategory looks up a category of places around a destination.
func (s *Service) ByCategory(ctx context.Context, cat Category, place string) string {
	place = strings.TrimSpace(place)
	tmpl, ok := categoryQuery[cat]
	if !ok || place == "" {
		return NotFound(place)
	}
	out := s.Lookup(ctx, fmt.Sprintf(tmpl, place))
	if strings.HasPrefix(out, "No places found") {
		return NotFound(fmt.Sprintf("%s in %s", cat, place))
	}
	return out
}

func format(found []Place, limit int) string {
	if len(found) > limit {
		found = found[:limit]
	}
	var sb strings.Builder
	for i, p := range found {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if p.Descriptor != "" {
			fmt.Fprintf(&sb, "%d. %s - %s", i+1, p.Name, p.Descriptor)
		} else {
			fmt.Fprintf(&sb, "%d. %s", i+1, p.Name)
		}
	}
	return sb.String()
}
