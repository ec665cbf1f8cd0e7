package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: "~/.tripkit",
			LogLevel:  "info",
		},
		Providers: ProvidersConfig{
			Weather: WeatherConfig{
				Units:          "metric",
				TimeoutSeconds: 10,
			},
			Places: PlacesConfig{
				MaxResults:     5,
				TimeoutSeconds: 15,
			},
			Currency: CurrencyConfig{
				TimeoutSeconds: 10,
			},
		},
		Documents: DocumentsConfig{
			OutputDir:      "~/.tripkit/itineraries",
			Renderer:       "pdf",
			TimeoutSeconds: 60,
		},
		Store: StoreConfig{
			Enabled:       true,
			DBPath:        "~/.tripkit/ledger.db",
			RetentionDays: 90,
		},
		Gateway: GatewayConfig{
			Host:               "127.0.0.1",
			Port:               8088,
			RateLimitPerMinute: 120,
			RateLimitBurst:     20,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
