package weather

import (
	"testing"
	"time"
)

func TestAggregateEmpty(t *testing.T) {
	obs := Aggregate(nil)
	if len(obs.Sources) != 0 || obs.TempAvg != 0 {
		t.Errorf("empty aggregate should be zero valued: %+v", obs)
	}
}

func TestAggregateAveragesAndExtremes(t *testing.T) {
	ts := time.Now().UTC()
	readings := []Reading{
		{Provider: "a", Timestamp: ts, TemperatureC: 10, HumidityPct: 60, PressureHpa: 1000, WindSpeed: 2, Description: "Nublado"},
		{Provider: "b", Timestamp: ts, TemperatureC: 20, HumidityPct: 80, PressureHpa: 1020, WindSpeed: 4, Description: "Soleado"},
		{Provider: "a", Timestamp: ts, TemperatureC: 15, HumidityPct: 70, PressureHpa: 1010, WindSpeed: 3, Description: "Nublado"},
	}

	obs := Aggregate(readings)

	if obs.TempAvg != 15 {
		t.Errorf("TempAvg = %v, want 15", obs.TempAvg)
	}
	if obs.TempMin != 10 || obs.TempMax != 20 {
		t.Errorf("extremes = [%v, %v], want [10, 20]", obs.TempMin, obs.TempMax)
	}
	if obs.Humidity != 70 {
		t.Errorf("Humidity = %v, want 70", obs.Humidity)
	}
	if obs.Description != "Nublado" {
		t.Errorf("majority description = %q, want Nublado", obs.Description)
	}
	if len(obs.Sources) != 2 {
		t.Errorf("sources must be deduped: %v", obs.Sources)
	}
}

func TestAggregateDescriptionTieFirstSeenWins(t *testing.T) {
	readings := []Reading{
		{Provider: "a", TemperatureC: 10, Description: "Lluvia"},
		{Provider: "b", TemperatureC: 10, Description: "Despejado"},
	}
	if obs := Aggregate(readings); obs.Description != "Lluvia" {
		t.Errorf("tie should keep first seen, got %q", obs.Description)
	}
}
