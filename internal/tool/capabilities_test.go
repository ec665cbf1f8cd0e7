package tool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tripkit/internal/currency"
	"tripkit/internal/document"
	"tripkit/internal/domain"
	"tripkit/internal/places"
	"tripkit/internal/weather"
)

type stubWeather struct{ days int }

func (s *stubWeather) Current(ctx context.Context, city string) string {
	return "Current weather in " + city + ": 20.0°C, clear sky."
}

func (s *stubWeather) Forecast(ctx context.Context, city string, days int) string {
	s.days = days
	return "Weather forecast for " + city + ":"
}

type stubPlaces struct {
	cat   places.Category
	place string
}

func (s *stubPlaces) Lookup(ctx context.Context, query string) string {
	return "1. " + query
}

func (s *stubPlaces) ByCategory(ctx context.Context, cat places.Category, place string) string {
	s.cat, s.place = cat, place
	return "1. Louvre - museum"
}

// newDefaultRegistry wires real services behind a stub rate provider.
func newDefaultRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/latest/USD") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
			return
		}
		w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"EUR":0.5}}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	synth, err := document.NewSynthesizer(document.Config{OutputDir: dir, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	reg := NewRegistry(testLogger())
	err = RegisterDefaults(reg, Services{
		Currency:  currency.NewConverter(currency.Config{APIBase: srv.URL, APIKey: "k", Logger: testLogger()}),
		Weather:   weather.NewService(weather.Config{Logger: testLogger()}),
		Places:    &stubPlaces{},
		Documents: synth,
	})
	if err != nil {
		t.Fatalf("register defaults: %v", err)
	}
	return reg, dir
}

func TestRegisterDefaults_Names(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	want := []string{
		"calculate_daily_expense_budget",
		"calculate_total_expense",
		"convert_currency",
		"estimate_total_hotel_cost",
		"evaluate_cost_expression",
		"get_current_weather",
		"get_weather_forecast",
		"save_itinerary",
		"search_activities",
		"search_attractions",
		"search_places",
		"search_restaurants",
		"search_transportation",
	}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names:\n got %v\nwant %v", got, want)
	}
}

func TestRegisterDefaults_SkipsMissingServices(t *testing.T) {
	reg := NewRegistry(testLogger())
	if err := RegisterDefaults(reg, Services{}); err != nil {
		t.Fatalf("register defaults: %v", err)
	}
	if len(reg.List()) != 4 {
		t.Fatalf("expected only the 4 calculator capabilities, got %v", reg.Names())
	}
	if err := RegisterDefaults(reg, Services{}); !errors.Is(err, domain.ErrDuplicateCapability) {
		t.Fatalf("second registration should collide, got %v", err)
	}
}

func TestCapabilities_Schemas(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	c, _ := reg.Get("convert_currency")
	props, ok := c.InputSchema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", c.InputSchema)
	}
	for _, name := range []string{"amount", "from_currency", "to_currency"} {
		if _, ok := props[name]; !ok {
			t.Errorf("missing property %q", name)
		}
	}
	if _, ok := c.InputSchema["$schema"]; ok {
		t.Error("$schema should be stripped")
	}
	required, _ := c.InputSchema["required"].([]any)
	if len(required) != 3 {
		t.Errorf("expected 3 required fields, got %v", c.InputSchema["required"])
	}

	f, _ := reg.Get("get_weather_forecast")
	required, _ = f.InputSchema["required"].([]any)
	if len(required) != 1 || required[0] != "city" {
		t.Errorf("days should be optional, required = %v", f.InputSchema["required"])
	}
}

func TestScenario_HotelCost(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "estimate_total_hotel_cost",
		map[string]any{"price_per_night": 100.0, "total_days": 5.0})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 500.0 {
		t.Fatalf("expected 500, got %v", out)
	}
}

func TestScenario_TotalExpense(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "calculate_total_expense",
		map[string]any{"costs": []any{100.0, 200.0, 50.5}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 350.5 {
		t.Fatalf("expected 350.5, got %v", out)
	}
}

func TestScenario_DailyBudget(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "calculate_daily_expense_budget",
		map[string]any{"total_cost": 1000.0, "days": 4.0})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 250.0 {
		t.Fatalf("expected 250, got %v", out)
	}

	_, err = reg.Invoke(context.Background(), "calculate_daily_expense_budget",
		map[string]any{"total_cost": 1000.0, "days": 0})
	if !errors.Is(err, domain.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestCalculator_BadArguments(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	cases := []struct {
		name string
		args map[string]any
	}{
		{"estimate_total_hotel_cost", map[string]any{"price_per_night": "abc", "total_days": 2.0}},
		{"estimate_total_hotel_cost", map[string]any{"price_per_night": 10.0}},
		{"calculate_total_expense", map[string]any{"costs": []any{1.0, "x"}}},
		{"calculate_daily_expense_budget", map[string]any{"total_cost": 10.0, "days": 2.5}},
		{"evaluate_cost_expression", map[string]any{}},
	}
	for _, tc := range cases {
		_, err := reg.Invoke(context.Background(), tc.name, tc.args)
		if !errors.Is(err, domain.ErrInvalidOperand) {
			t.Errorf("%s(%v): expected ErrInvalidOperand, got %v", tc.name, tc.args, err)
		}
	}
}

func TestCalculator_QuotedNumbers(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "estimate_total_hotel_cost",
		map[string]any{"price_per_night": "120.5", "total_days": 2})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 241.0 {
		t.Fatalf("expected 241, got %v", out)
	}
}

func TestCalculator_Expression(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "evaluate_cost_expression", map[string]any{
		"expression": "price * nights + fees",
		"params":     map[string]any{"price": 80.0, "nights": 3.0, "fees": 25.0},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 265.0 {
		t.Fatalf("expected 265, got %v", out)
	}
}

func TestScenario_CurrencyIdentity(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "convert_currency",
		map[string]any{"amount": 100.0, "from_currency": "USD", "to_currency": "USD"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 100.00 {
		t.Fatalf("expected 100.00, got %v", out)
	}

	out, err = reg.Invoke(context.Background(), "convert_currency",
		map[string]any{"amount": 100.0, "from_currency": "usd", "to_currency": "EUR"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != 50.0 {
		t.Fatalf("expected 50, got %v", out)
	}
}

func TestCurrency_Errors(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	_, err := reg.Invoke(context.Background(), "convert_currency",
		map[string]any{"amount": 1.0, "from_currency": "USD", "to_currency": "XYZ"})
	if !errors.Is(err, domain.ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
	_, err = reg.Invoke(context.Background(), "convert_currency",
		map[string]any{"from_currency": "USD", "to_currency": "EUR"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing amount, got %v", err)
	}
	_, err = reg.Invoke(context.Background(), "convert_currency",
		map[string]any{"amount": 1.0, "from_currency": "USD"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing code, got %v", err)
	}
}

func TestLookups_NeverFail(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "get_current_weather", map[string]any{"city": "Paris"})
	if err != nil {
		t.Fatalf("weather lookups must not fail: %v", err)
	}
	if out != weather.Unavailable("Paris") {
		t.Fatalf("expected sentinel, got %v", out)
	}
}

func TestLookups_Arguments(t *testing.T) {
	w := &stubWeather{}
	p := &stubPlaces{}
	reg := NewRegistry(testLogger())
	if err := RegisterDefaults(reg, Services{Weather: w, Places: p}); err != nil {
		t.Fatalf("register defaults: %v", err)
	}

	reg.Invoke(context.Background(), "get_weather_forecast", map[string]any{"city": "Rome"})
	if w.days != defaultForecastDays {
		t.Fatalf("expected default of %d days, got %d", defaultForecastDays, w.days)
	}
	reg.Invoke(context.Background(), "get_weather_forecast", map[string]any{"city": "Rome", "days": 2})
	if w.days != 2 {
		t.Fatalf("expected 2 days, got %d", w.days)
	}

	out, err := reg.Invoke(context.Background(), "search_restaurants", map[string]any{"place": "Paris"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if p.cat != places.Restaurants || p.place != "Paris" || out != "1. Louvre - museum" {
		t.Fatalf("unexpected dispatch: %s %s %v", p.cat, p.place, out)
	}
}

func TestScenario_SaveDocument(t *testing.T) {
	reg, dir := newDefaultRegistry(t)
	out, err := reg.Invoke(context.Background(), "save_itinerary",
		map[string]any{"body": "# Day 1\nVisit the museum."})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	path, ok := out.(string)
	if !ok {
		t.Fatalf("expected a path string, got %T", out)
	}
	if !filepath.IsAbs(path) || filepath.Ext(path) != ".pdf" {
		t.Fatalf("expected an absolute .pdf path, got %q", path)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("document written outside the output dir: %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	text, err := document.ExtractText(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "Day 1") {
		t.Fatalf("expected 'Day 1' in document text, got %q", text)
	}
}

func TestSaveDocument_EmptyBody(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	_, err := reg.Invoke(context.Background(), "save_itinerary", map[string]any{"body": "  "})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestScenario_UnknownCapability(t *testing.T) {
	reg, _ := newDefaultRegistry(t)
	_, err := reg.Invoke(context.Background(), "book_flight", nil)
	if !errors.Is(err, domain.ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}
