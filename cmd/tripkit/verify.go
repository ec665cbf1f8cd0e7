package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tripkit/internal/domain"

	"github.com/fatih/color"
)

type verdict int

const (
	verdictPass verdict = iota
	verdictWarn
	verdictFail
)

// invoker is the part of the registry the verifier needs.
type invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// verifyCheck invokes one capability with a sample input and judges the
// outcome. judge returns a detail line for the report.
type verifyCheck struct {
	label      string
	capability string
	args       map[string]any
	judge      func(out any, err error) (verdict, string)
}

type verifyResult struct {
	passed, warned, failed int
}

func verifyChecks(withDocument bool) []verifyCheck {
	checks := []verifyCheck{
		{
			label:      "Weather",
			capability: "get_current_weather",
			args:       map[string]any{"city": "London"},
			judge: func(out any, err error) (verdict, string) {
				if err != nil {
					return verdictFail, err.Error()
				}
				s, _ := out.(string)
				if strings.HasPrefix(s, "Weather information not available") {
					return verdictWarn, "no data, check the OpenWeatherMap API key"
				}
				return verdictPass, s
			},
		},
		{
			label:      "Place search",
			capability: "search_attractions",
			args:       map[string]any{"place": "Eiffel Tower"},
			judge: func(out any, err error) (verdict, string) {
				if err != nil {
					return verdictFail, err.Error()
				}
				s, _ := out.(string)
				if strings.HasPrefix(s, "No places found") {
					return verdictWarn, s
				}
				return verdictPass, firstLine(s)
			},
		},
		{
			label:      "Calculator",
			capability: "estimate_total_hotel_cost",
			args:       map[string]any{"price_per_night": 100, "total_days": 5},
			judge: func(out any, err error) (verdict, string) {
				if err != nil {
					return verdictFail, err.Error()
				}
				if v, ok := out.(float64); !ok || v != 500 {
					return verdictFail, fmt.Sprintf("expected 500, got %v", out)
				}
				return verdictPass, "100 x 5 = 500"
			},
		},
		{
			label:      "Currency",
			capability: "convert_currency",
			args:       map[string]any{"amount": 100, "from_currency": "USD", "to_currency": "EUR"},
			judge: func(out any, err error) (verdict, string) {
				switch {
				case errors.Is(err, domain.ErrProviderUnavailable):
					return verdictWarn, "provider unavailable, check the ExchangeRate-API key"
				case err != nil:
					return verdictFail, err.Error()
				}
				if v, ok := out.(float64); !ok || v <= 0 {
					return verdictFail, fmt.Sprintf("unexpected result %v", out)
				}
				return verdictPass, fmt.Sprintf("100 USD = %.2f EUR", out)
			},
		},
	}
	if withDocument {
		checks = append(checks, verifyCheck{
			label:      "Itinerary",
			capability: "save_itinerary",
			args: map[string]any{"body": "# Day 1: London\n\n## Morning\nVisit the British Museum.\n\n" +
				"## Afternoon\nWalk around Covent Garden.\n"},
			judge: func(out any, err error) (verdict, string) {
				if err != nil {
					return verdictFail, err.Error()
				}
				s, _ := out.(string)
				if !strings.HasSuffix(s, ".pdf") {
					return verdictFail, fmt.Sprintf("unexpected path %q", s)
				}
				return verdictPass, s
			},
		})
	}
	return checks
}

// runVerify runs every check and prints one line per check.
func runVerify(ctx context.Context, inv invoker, checks []verifyCheck) verifyResult {
	var res verifyResult
	for _, c := range checks {
		out, err := inv.Invoke(ctx, c.capability, c.args)
		v, detail := c.judge(out, err)
		switch v {
		case verdictPass:
			printPass(c.label, detail)
			res.passed++
		case verdictWarn:
			printWarn(c.label, detail)
			res.warned++
		default:
			printFail(c.label, detail)
			res.failed++
		}
	}
	return res
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func printPass(check, detail string) {
	fmt.Printf("  [%s] %-20s %s\n", color.GreenString("PASS"), check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [%s] %-20s %s\n", color.RedString("FAIL"), check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [%s] %-20s %s\n", color.YellowString("WARN"), check, detail)
}
