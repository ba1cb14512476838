package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ParadojaDevs/ClimaGuru/internal/weather"
)

// OpenMeteo implements weather.Provider and weather.HistoricalProvider
// against the Open-Meteo forecast and archive APIs. It needs no API key but
// only works with explicit coordinates.
type OpenMeteo struct {
	name       string
	baseURL    string
	archiveURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewOpenMeteo(client *http.Client) *OpenMeteo {
	return &OpenMeteo{
		name:       "openmeteo",
		baseURL:    "https://api.open-meteo.com/v1/forecast",
		archiveURL: "https://archive-api.open-meteo.com/v1/archive",
		httpCfg:    defaultHTTPConfig(client),
		circuit:    newBreaker("openmeteo"),
	}
}

func (p *OpenMeteo) Name() string {
	return p.name
}

func (p *OpenMeteo) Current(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	if !loc.HasCoordinates() {
		return weather.Reading{}, fmt.Errorf("openmeteo requires latitude and longitude")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(*loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(*loc.Longitude, 'f', -1, 64))
		values.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,wind_direction_10m,precipitation")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time            string  `json:"time"`
			Temperature     float64 `json:"temperature_2m"`
			Humidity        float64 `json:"relative_humidity_2m"`
			SurfacePressure float64 `json:"surface_pressure"`
			WindSpeed       float64 `json:"wind_speed_10m"`
			WindDirection   float64 `json:"wind_direction_10m"`
			Precipitation   float64 `json:"precipitation"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, err
	}

	ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	return weather.Reading{
		Provider:      p.name,
		Timestamp:     ts,
		TemperatureC:  payload.Current.Temperature,
		HumidityPct:   payload.Current.Humidity,
		PressureHpa:   payload.Current.SurfacePressure,
		WindSpeed:     payload.Current.WindSpeed,
		WindDirection: payload.Current.WindDirection,
		PrecipMm:      payload.Current.Precipitation,
	}, nil
}

// History fetches daily aggregates from the archive API, one reading per day
// in the inclusive [from, to] range.
func (p *OpenMeteo) History(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Reading, error) {
	if !loc.HasCoordinates() {
		return nil, fmt.Errorf("openmeteo requires latitude and longitude")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(*loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(*loc.Longitude, 'f', -1, 64))
		values.Set("start_date", from.Format("2006-01-02"))
		values.Set("end_date", to.Format("2006-01-02"))
		values.Set("daily", "temperature_2m_mean,relative_humidity_2m_mean,surface_pressure_mean,wind_speed_10m_max,wind_direction_10m_dominant,precipitation_sum")

		u := fmt.Sprintf("%s?%s", p.archiveURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time          []string  `json:"time"`
			Temperature   []float64 `json:"temperature_2m_mean"`
			Humidity      []float64 `json:"relative_humidity_2m_mean"`
			Pressure      []float64 `json:"surface_pressure_mean"`
			WindSpeed     []float64 `json:"wind_speed_10m_max"`
			WindDirection []float64 `json:"wind_direction_10m_dominant"`
			Precipitation []float64 `json:"precipitation_sum"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	at := func(vals []float64, i int) float64 {
		if i < len(vals) {
			return vals[i]
		}
		return 0
	}

	readings := make([]weather.Reading, 0, len(payload.Daily.Time))
	for i, day := range payload.Daily.Time {
		ts, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		readings = append(readings, weather.Reading{
			Provider:      p.name,
			Timestamp:     ts.UTC(),
			TemperatureC:  at(payload.Daily.Temperature, i),
			HumidityPct:   at(payload.Daily.Humidity, i),
			PressureHpa:   at(payload.Daily.Pressure, i),
			WindSpeed:     at(payload.Daily.WindSpeed, i),
			WindDirection: at(payload.Daily.WindDirection, i),
			PrecipMm:      at(payload.Daily.Precipitation, i),
		})
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("no archive data for requested range")
	}
	return readings, nil
}
