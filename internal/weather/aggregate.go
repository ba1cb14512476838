package weather

// Aggregate combines readings from one or more providers into a single
// observation. Numeric fields are averaged; the temperature min/max span the
// extremes seen across all readings; the description is chosen by majority,
// first seen winning ties.
func Aggregate(readings []Reading) Observation {
	if len(readings) == 0 {
		return Observation{}
	}

	var (
		sumTemp, sumHumidity, sumPressure float64
		sumWind, sumWindDir, sumPrecip    float64
	)
	tempMin := readings[0].TemperatureC
	tempMax := readings[0].TemperatureC

	descCounts := make(map[string]int)
	bestDesc := ""
	bestCount := 0

	seen := make(map[string]bool)
	sources := make([]string, 0, len(readings))

	for _, r := range readings {
		sumTemp += r.TemperatureC
		sumHumidity += r.HumidityPct
		sumPressure += r.PressureHpa
		sumWind += r.WindSpeed
		sumWindDir += r.WindDirection
		sumPrecip += r.PrecipMm

		if r.TemperatureC < tempMin {
			tempMin = r.TemperatureC
		}
		if r.TemperatureC > tempMax {
			tempMax = r.TemperatureC
		}

		if r.Description != "" {
			descCounts[r.Description]++
			if descCounts[r.Description] > bestCount {
				bestCount = descCounts[r.Description]
				bestDesc = r.Description
			}
		}

		if !seen[r.Provider] {
			seen[r.Provider] = true
			sources = append(sources, r.Provider)
		}
	}

	n := float64(len(readings))
	return Observation{
		TempAvg:       sumTemp / n,
		TempMin:       tempMin,
		TempMax:       tempMax,
		Pressure:      sumPressure / n,
		Humidity:      sumHumidity / n,
		WindSpeed:     sumWind / n,
		WindDirection: sumWindDir / n,
		Precipitation: sumPrecip / n,
		Description:   bestDesc,
		Sources:       sources,
		Readings:      readings,
	}
}
