package weather

import (
	"context"
	"time"
)

// Provider is an external weather-data source able to report current
// conditions for a location.
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Location) (Reading, error)
}

// HistoricalProvider is implemented by providers that can additionally serve
// past observations over a date range, one reading per day.
type HistoricalProvider interface {
	Provider
	History(ctx context.Context, loc Location, from, to time.Time) ([]Reading, error)
}
