// Package currency converts amounts between currencies using a live rate
// table fetched from ExchangeRate-API on every request.
package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tripkit/internal/domain"
	"tripkit/internal/provider"
)

// DefaultAPIBase is the public ExchangeRate-API endpoint.
const DefaultAPIBase = "https://v6.exchangerate-api.com"

// Converter performs currency conversions. It holds no rate cache.
type Converter struct {
	apiBase  string
	apiKey   string
	client   *http.Client
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// Config holds the converter's dependencies.
type Config struct {
	APIBase string
	APIKey  string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewConverter(cfg Config) *Converter {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Client == nil {
		cfg.Client = provider.SharedHTTPClient(10 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Converter{
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		apiKey:   cfg.APIKey,
		client:   cfg.Client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Configured reports whether a credential is present.
func (c *Converter) Configured() bool { return c.apiKey != "" }

func (c *Converter) requireKey() error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: exchange rate API key is not configured", domain.ErrProviderUnavailable)
	}
	return nil
}

// Convert returns req.Amount expressed in req.To, rounded to 2 decimals.
// Without an API key every conversion fails with ErrProviderUnavailable.
// Identical codes then convert at rate 1 without a network round trip.
func (c *Converter) Convert(ctx context.Context, req domain.ConversionRequest) (float64, error) {
	req.From = strings.ToUpper(strings.TrimSpace(req.From))
	req.To = strings.ToUpper(strings.TrimSpace(req.To))
	if err := c.check(req); err != nil {
		return 0, err
	}
	if err := c.requireKey(); err != nil {
		return 0, err
	}
	if req.From == req.To {
		return Round2(req.Amount), nil
	}

	table, err := c.Rates(ctx, req.From)
	if err != nil {
		return 0, err
	}
	rate, ok := table.Rates[req.To]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not quoted against %s", domain.ErrUnknownCurrency, req.To, req.From)
	}

	converted := Round2(req.Amount * rate)
	c.logger.Debug("converted currency",
		"amount", req.Amount, "from", req.From, "to", req.To, "rate", rate, "result", converted)
	return converted, nil
}

func (c *Converter) check(req domain.ConversionRequest) error {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", domain.ErrInvalidRequest)
	}
	if err := c.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// latestResponse is the ExchangeRate-API v6 "latest" payload.
type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Rates fetches the current rate table for base. Exactly one request is
// made; failures are not retried.
func (c *Converter) Rates(ctx context.Context, base string) (*domain.RateTable, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v6/%s/latest/%s", c.apiBase, url.PathEscape(c.apiKey), url.PathEscape(base))

	var payload latestResponse
	err := provider.FetchJSON(ctx, c.client, endpoint, &payload, c.apiKey)
	if payload.ErrorType == "unsupported-code" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, base)
	}
	if err != nil {
		var se *provider.StatusError
		if errors.As(err, &se) {
			c.logger.Warn("exchange rate provider error", "status", se.StatusCode, "error_type", payload.ErrorType)
			return nil, fmt.Errorf("%w: exchange rate provider returned HTTP %d", domain.ErrProviderUnavailable, se.StatusCode)
		}
		c.logger.Warn("exchange rate request failed", "base", base, "err", err)
		return nil, fmt.Errorf("%w: exchange rate request failed", domain.ErrProviderUnavailable)
	}
	if payload.Result != "success" {
		return nil, fmt.Errorf("%w: provider result %q (%s)", domain.ErrProviderUnavailable, payload.Result, payload.ErrorType)
	}
	if len(payload.ConversionRates) == 0 {
		return nil, fmt.Errorf("%w: empty rate table", domain.ErrProviderUnavailable)
	}

	return &domain.RateTable{
		Base:      base,
		Rates:     payload.ConversionRates,
		FetchedAt: c.now(),
	}, nil
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
