package weather

import "time"

// Location identifies the place a query asks about: either a city name or an
// explicit coordinate pair. Validation of "at least one form present" happens
// in the query service, before any provider is called.
type Location struct {
	City      string
	Latitude  *float64
	Longitude *float64
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Reading is one provider's normalized view of the weather at a point in time.
type Reading struct {
	Provider      string    `json:"provider"`
	Timestamp     time.Time `json:"timestamp"` // always UTC
	TemperatureC  float64   `json:"temperatura_c"`
	HumidityPct   float64   `json:"humedad_pct"`
	PressureHpa   float64   `json:"presion_hpa"`
	WindSpeed     float64   `json:"viento_velocidad"`
	WindDirection float64   `json:"viento_direccion"`
	PrecipMm      float64   `json:"precipitacion_mm"`
	Description   string    `json:"descripcion"`
}

// Observation is the aggregate of one or more readings: what gets persisted
// as a query's result snapshot.
type Observation struct {
	TempAvg       float64
	TempMin       float64
	TempMax       float64
	Pressure      float64
	Humidity      float64
	WindSpeed     float64
	WindDirection float64
	Precipitation float64
	Description   string
	Sources       []string
	Readings      []Reading
}
