package domain

import (
	"context"
	"time"
)

// ConversionRequest asks for an amount to be converted between two
// three-letter currency codes. Whether a code is known is decided by the
// rate provider, not here.
type ConversionRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
	From   string  `json:"from_currency" validate:"required,len=3,alpha"`
	To     string  `json:"to_currency" validate:"required,len=3,alpha"`
}

// RateTable maps target currency codes to the multiplier from Base.
type RateTable struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// ItineraryDocument is a rendered, committed itinerary file.
type ItineraryDocument struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Renderer  string    `json:"renderer"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"-"`
}

// InvocationRecord is one row of the capability invocation ledger.
type InvocationRecord struct {
	ID         int64     `json:"id"`
	Capability string    `json:"capability"`
	Arguments  string    `json:"arguments"`
	Outcome    string    `json:"outcome"` // ok | error
	ErrorCode  string    `json:"error_code,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ledger persists committed documents and capability invocations.
type Ledger interface {
	RecordDocument(ctx context.Context, doc ItineraryDocument) error
	ListDocuments(ctx context.Context, limit int) ([]ItineraryDocument, error)
	GetDocument(ctx context.Context, id string) (*ItineraryDocument, error)
	LogInvocation(ctx context.Context, rec InvocationRecord) error
	RecentInvocations(ctx context.Context, limit int) ([]InvocationRecord, error)
	Close() error
}
