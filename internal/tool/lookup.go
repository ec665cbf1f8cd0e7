package tool

import (
	"context"

	"tripkit/internal/domain"
	"tripkit/internal/places"
)

// WeatherLookup returns human-readable weather text. Failures come back
// as sentinel text, never as errors.
type WeatherLookup interface {
	Current(ctx context.Context, city string) string
	Forecast(ctx context.Context, city string, days int) string
}

// PlaceLookup returns a numbered list of places or sentinel text.
type PlaceLookup interface {
	Lookup(ctx context.Context, query string) string
	ByCategory(ctx context.Context, cat places.Category, place string) string
}

const defaultForecastDays = 5

type cityArgs struct {
	City string `json:"city" jsonschema:"description=City name optionally followed by a country code such as Paris or Paris FR"`
}

type forecastArgs struct {
	City string `json:"city" jsonschema:"description=City name optionally followed by a country code"`
	Days int    `json:"days,omitempty" jsonschema:"description=Number of days to summarise,minimum=1,maximum=5,default=5"`
}

type queryArgs struct {
	Query string `json:"query" jsonschema:"description=Free-form place search"`
}

type placeArgs struct {
	Place string `json:"place" jsonschema:"description=City or region to search in"`
}

func WeatherCapabilities(w WeatherLookup) []domain.Capability {
	return []domain.Capability{
		{
			Name:        "get_current_weather",
			Description: "Get the current weather for a city.",
			InputSchema: SchemaFor(&cityArgs{}),
			Invoke: func(ctx context.Context, args map[string]any) (any, error) {
				return w.Current(ctx, ArgsString(args, "city")), nil
			},
		},
		{
			Name:        "get_weather_forecast",
			Description: "Get a daily weather forecast for a city.",
			InputSchema: SchemaFor(&forecastArgs{}),
			Invoke: func(ctx context.Context, args map[string]any) (any, error) {
				days, err := ArgsOptionalInt(args, "days", defaultForecastDays)
				if err != nil {
					return nil, requestErr(err)
				}
				return w.Forecast(ctx, ArgsString(args, "city"), days), nil
			},
		},
	}
}

func PlaceCapabilities(p PlaceLookup) []domain.Capability {
	caps := []domain.Capability{{
		Name:        "search_places",
		Description: "Search for places matching a free-form query.",
		InputSchema: SchemaFor(&queryArgs{}),
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return p.Lookup(ctx, ArgsString(args, "query")), nil
		},
	}}
	for _, c := range []struct {
		name string
		cat  places.Category
		desc string
	}{
		{"search_attractions", places.Attractions, "Find top attractions in a place."},
		{"search_restaurants", places.Restaurants, "Find restaurants in a place."},
		{"search_activities", places.Activities, "Find things to do in a place."},
		{"search_transportation", places.Transportation, "Find public transportation options in a place."},
	} {
		cat := c.cat
		caps = append(caps, domain.Capability{
			Name:        c.name,
			Description: c.desc,
			InputSchema: SchemaFor(&placeArgs{}),
			Invoke: func(ctx context.Context, args map[string]any) (any, error) {
				return p.ByCategory(ctx, cat, ArgsString(args, "place")), nil
			},
		})
	}
	return caps
}
