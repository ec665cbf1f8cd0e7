package tool

// Services are the constructed backends behind the default capability set.
// A nil field leaves its capabilities out.
type Services struct {
	Currency  Converter
	Weather   WeatherLookup
	Places    PlaceLookup
	Documents DocumentSaver
}

// RegisterDefaults registers the arithmetic capabilities plus one family
// per configured service.
func RegisterDefaults(reg *Registry, svc Services) error {
	caps := CalculatorCapabilities()
	if svc.Currency != nil {
		caps = append(caps, CurrencyCapability(svc.Currency))
	}
	if svc.Weather != nil {
		caps = append(caps, WeatherCapabilities(svc.Weather)...)
	}
	if svc.Places != nil {
		caps = append(caps, PlaceCapabilities(svc.Places)...)
	}
	if svc.Documents != nil {
		caps = append(caps, DocumentCapability(svc.Documents))
	}
	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
