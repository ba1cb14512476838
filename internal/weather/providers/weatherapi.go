package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ParadojaDevs/ClimaGuru/internal/weather"
)

// WeatherAPI implements weather.Provider against weatherapi.com. It requires
// a per-user API key and accepts either a city name or coordinates.
type WeatherAPI struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPI(client *http.Client, apiKey string) *WeatherAPI {
	return &WeatherAPI{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPI) Name() string {
	return p.name
}

func (p *WeatherAPI) Current(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		if loc.HasCoordinates() {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Latitude, *loc.Longitude))
		} else {
			values.Set("q", loc.City)
		}

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
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			Humidity         float64 `json:"humidity"`
			PressureMb       float64 `json:"pressure_mb"`
			WindKph          float64 `json:"wind_kph"`
			WindDegree       float64 `json:"wind_degree"`
			PrecipMm         float64 `json:"precip_mm"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, err
	}

	ts := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		ts = time.Now().UTC()
	}

	// wind_kph -> m/s to match the other providers.
	windMS := payload.Current.WindKph / 3.6

	return weather.Reading{
		Provider:      p.name,
		Timestamp:     ts,
		TemperatureC:  payload.Current.TempC,
		HumidityPct:   payload.Current.Humidity,
		PressureHpa:   payload.Current.PressureMb,
		WindSpeed:     windMS,
		WindDirection: payload.Current.WindDegree,
		PrecipMm:      payload.Current.PrecipMm,
		Description:   payload.Current.Condition.Text,
	}, nil
}
