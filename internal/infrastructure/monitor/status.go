package monitor

import "time"

// Status is the cached health snapshot served by /health. Backends not
// configured for the selected storage driver stay nil and are absent from
// the payload.
type Status struct {
	Driver     string    `json:"driver"`
	PostgreSQL *bool     `json:"postgresql,omitempty"`
	Redis      *bool     `json:"redis,omitempty"`
	LastCheck  time.Time `json:"last_check"`
}
