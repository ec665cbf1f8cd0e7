package tool

import (
	"context"
	"fmt"

	"tripkit/internal/domain"
)

// Converter is the currency conversion service.
type Converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) (float64, error)
}

type convertArgs struct {
	Amount       float64 `json:"amount" jsonschema:"description=Amount to convert,minimum=0"`
	FromCurrency string  `json:"from_currency" jsonschema:"description=ISO 4217 source currency code,minLength=3,maxLength=3"`
	ToCurrency   string  `json:"to_currency" jsonschema:"description=ISO 4217 target currency code,minLength=3,maxLength=3"`
}

func CurrencyCapability(conv Converter) domain.Capability {
	return domain.Capability{
		Name:        "convert_currency",
		Description: "Convert an amount between currencies using the latest exchange rates. The result is rounded to 2 decimals.",
		InputSchema: SchemaFor(&convertArgs{}),
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			amount, err := ArgsNumber(args, "amount")
			if err != nil {
				return nil, requestErr(err)
			}
			req := domain.ConversionRequest{
				Amount: amount,
				From:   ArgsString(args, "from_currency"),
				To:     ArgsString(args, "to_currency"),
			}
			if req.From == "" || req.To == "" {
				return nil, fmt.Errorf("%w: from_currency and to_currency are required", domain.ErrInvalidRequest)
			}
			return conv.Convert(ctx, req)
		},
	}
}
