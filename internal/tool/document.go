package tool

import (
	"context"

	"tripkit/internal/domain"
)

// DocumentSaver persists an itinerary body and reports where it landed.
type DocumentSaver interface {
	Save(ctx context.Context, body string) (domain.ItineraryDocument, error)
}

type saveArgs struct {
	Body string `json:"body" jsonschema:"description=Complete itinerary in markdown"`
}

// DocumentCapability saves the final itinerary and returns its absolute path.
func DocumentCapability(s DocumentSaver) domain.Capability {
	return domain.Capability{
		Name:        "save_itinerary",
		Description: "Save the final travel plan as a PDF document. Returns the file path.",
		InputSchema: SchemaFor(&saveArgs{}),
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			doc, err := s.Save(ctx, ArgsString(args, "body"))
			if err != nil {
				return nil, err
			}
			return doc.Path, nil
		},
	}
}
