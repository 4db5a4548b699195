package provider

import (
	"context"
	"time"
)

// Query describes a single rates request. A zero Date asks for the latest rates.
type Query struct {
	Date    time.Time
	Base    string
	Symbols []string
}

// RatesProvider defines an interface for fetching exchange rates from external sources.
type RatesProvider interface {
	GetRates(ctx context.Context, q Query) (map[string]float64, error)
}
