package providers

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/weather"
)

// Simulated is a deterministic offline provider, enabled with
// FLAG_SIMULATED_WEATHER. Values are derived from the location so repeated
// queries for the same place agree, which keeps local development and tests
// stable without real API keys.
type Simulated struct{}

func NewSimulated() *Simulated {
	return &Simulated{}
}

func (p *Simulated) Name() string {
	return "simulated"
}

func (p *Simulated) Current(_ context.Context, loc weather.Location) (weather.Reading, error) {
	return p.reading(loc, time.Now().UTC()), nil
}

// History emits one reading per day across the inclusive range.
func (p *Simulated) History(_ context.Context, loc weather.Location, from, to time.Time) ([]weather.Reading, error) {
	var readings []weather.Reading
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		r := p.reading(loc, day.UTC())
		// Small daily drift so ranges are not perfectly flat.
		r.TemperatureC += float64(day.YearDay()%7) - 3
		readings = append(readings, r)
	}
	return readings, nil
}

func (p *Simulated) reading(loc weather.Location, ts time.Time) weather.Reading {
	h := fnv.New32a()
	h.Write([]byte(loc.City))
	if loc.HasCoordinates() {
		h.Write([]byte{byte(int(*loc.Latitude) & 0xff), byte(int(*loc.Longitude) & 0xff)})
	}
	seed := float64(h.Sum32() % 100)

	return weather.Reading{
		Provider:      p.Name(),
		Timestamp:     ts,
		TemperatureC:  10 + seed*0.25,
		HumidityPct:   40 + seed*0.5,
		PressureHpa:   990 + seed*0.45,
		WindSpeed:     2 + seed*0.1,
		WindDirection: seed * 3.6,
		PrecipMm:      seed * 0.05,
		Description:   "Parcialmente nublado",
	}
}
