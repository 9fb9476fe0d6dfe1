package config

import "time"

// BackendConfig contains configuration for the coordination backend REST API.
type BackendConfig struct {
	// BaseURL is the backend API origin, e.g. "https://api.bloodbridge.example.com".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	// Timeout bounds each backend request end to end.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}
