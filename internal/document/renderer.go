package document

import (
	"context"
	"io"
	"time"
)

// Disclaimer closes every rendered itinerary.
const Disclaimer = "This travel plan was generated automatically. Please verify prices, " +
	"opening hours and travel requirements before your trip."

// Page is everything a Renderer needs to lay out one itinerary.
type Page struct {
	Title     string
	Generated time.Time
	Body      string
	Blocks    []Block
}

// Renderer turns a Page into a paginated document.
type Renderer interface {
	Name() string
	Render(ctx context.Context, page Page, w io.Writer) error
}
