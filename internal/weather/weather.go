// Package weather answers current-conditions and forecast questions from
// OpenWeatherMap. Lookups never fail: any problem degrades to a sentinel
// sentence that the orchestrator can pass through.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"tripkit/internal/provider"
)

const DefaultAPIBase = "https://api.openweathermap.org"

// ErrNotConfigured is returned by the typed fetchers when no API key is set.
var ErrNotConfigured = errors.New("weather API key is not configured")

// Service queries OpenWeatherMap.
type Service struct {
	apiBase string
	apiKey  string
	units   string
	client  *http.Client
	logger  *slog.Logger
}

type Config struct {
	APIBase string
	APIKey  string
	Units   string // metric | imperial | standard
	Client  *http.Client
	Logger  *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Client == nil {
		cfg.Client = provider.SharedHTTPClient(10 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		apiKey:  cfg.APIKey,
		units:   cfg.Units,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

// Configured reports whether a credential is present.
func (s *Service) Configured() bool { return s.apiKey != "" }

// Unavailable is the sentinel text returned when no data can be produced.
func Unavailable(city string) string {
	return fmt.Sprintf("Weather information not available for %s.", city)
}

// Conditions is a normalised current-weather observation.
type Conditions struct {
	City        string
	Temp        float64
	FeelsLike   float64
	Humidity    int
	Description string
}

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
}

// FetchCurrent returns the current conditions for city.
func (s *Service) FetchCurrent(ctx context.Context, city string) (*Conditions, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}
	var resp currentResponse
	if err := provider.FetchJSON(ctx, s.client, s.endpoint("/data/2.5/weather", city), &resp, s.apiKey); err != nil {
		return nil, err
	}
	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("no conditions reported for %q", city)
	}
	name := resp.Name
	if name == "" {
		name = city
	}
	return &Conditions{
		City:        name,
		Temp:        resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Humidity:    resp.Main.Humidity,
		Description: resp.Weather[0].Description,
	}, nil
}

// Current returns a one-sentence description of the current weather in
// city, or the Unavailable sentinel.
func (s *Service) Current(ctx context.Context, city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return Unavailable(city)
	}
	c, err := s.FetchCurrent(ctx, city)
	if err != nil {
		s.logger.Warn("current weather lookup failed", "city", city, "err", err)
		return Unavailable(city)
	}
	unit := s.unitSymbol()
	return fmt.Sprintf("Current weather in %s: %.1f%s, %s (feels like %.1f%s, humidity %d%%).",
		c.City, c.Temp, unit, c.Description, c.FeelsLike, unit, c.Humidity)
}

// DaySummary aggregates the 3-hourly forecast entries of one day.
type DaySummary struct {
	Date        string
	Min         float64
	Max         float64
	Description string
}

type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// FetchForecast returns up to days daily summaries for city.
func (s *Service) FetchForecast(ctx context.Context, city string, days int) (string, []DaySummary, error) {
	if s.apiKey == "" {
		return "", nil, ErrNotConfigured
	}
	var resp forecastResponse
	if err := provider.FetchJSON(ctx, s.client, s.endpoint("/data/2.5/forecast", city), &resp, s.apiKey); err != nil {
		return "", nil, err
	}

	byDate := make(map[string]*DaySummary)
	descCount := make(map[string]map[string]int)
	var order []string
	for _, e := range resp.List {
		if len(e.DtTxt) < 10 {
			continue
		}
		date := e.DtTxt[:10]
		d, ok := byDate[date]
		if !ok {
			d = &DaySummary{Date: date, Min: e.Main.TempMin, Max: e.Main.TempMax}
			byDate[date] = d
			descCount[date] = make(map[string]int)
			order = append(order, date)
		}
		d.Min = min(d.Min, e.Main.TempMin)
		d.Max = max(d.Max, e.Main.TempMax)
		for _, w := range e.Weather {
			descCount[date][w.Description]++
		}
	}
	if len(order) == 0 {
		return "", nil, fmt.Errorf("empty forecast for %q", city)
	}

	sort.Strings(order)
	if days > 0 && len(order) > days {
		order = order[:days]
	}
	out := make([]DaySummary, 0, len(order))
	for _, date := range order {
		d := byDate[date]
		d.Description = mostFrequent(descCount[date])
		out = append(out, *d)
	}

	name := resp.City.Name
	if name == "" {
		name = city
	}
	return name, out, nil
}

// Forecast returns a multi-line daily forecast for city, or the
// Unavailable sentinel.
func (s *Service) Forecast(ctx context.Context, city string, days int) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return Unavailable(city)
	}
	name, summary, err := s.FetchForecast(ctx, city, days)
	if err != nil {
		s.logger.Warn("weather forecast lookup failed", "city", city, "err", err)
		return Unavailable(city)
	}
	unit := s.unitSymbol()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather forecast for %s:", name)
	for _, d := range summary {
		fmt.Fprintf(&sb, "\n- %s: %.1f%s to %.1f%s, %s", d.Date, d.Min, unit, d.Max, unit, d.Description)
	}
	return sb.String()
}

func (s *Service) endpoint(path, city string) string {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", s.apiKey)
	q.Set("units", s.units)
	return s.apiBase + path + "?" + q.Encode()
}

func (s *Service) unitSymbol() string {
	switch s.units {
	case "imperial":
		return "°F"
	case "standard":
		return " K"
	default:
		return "°C"
	}
}

func mostFrequent(counts map[string]int) string {
	best, bestN := "", 0
	for desc, n := range counts {
		if n > bestN || (n == bestN && desc < best) {
			best, bestN = desc, n
		}
	}
	return best
}
