// Package export renders completed query results in the download formats
// offered by the API: json, csv, txt and yaml.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// Document is a rendered export ready to be written to the client.
type Document struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Format renders the result of a completed query. Only queries in completada
// can be exported; anything else returns ErrInvalidState. A completed query
// without a stored result returns ErrNoData.
func Format(q *domain.Query, result *domain.Result, format domain.ExportFormat) (*Document, error) {
	if q.State != domain.StateCompletada {
		return nil, domain.ErrInvalidState
	}
	if result == nil {
		return nil, domain.ErrNoData
	}

	switch format {
	case domain.FormatJSON:
		return formatJSON(q, result)
	case domain.FormatCSV:
		return formatCSV(q, result)
	case domain.FormatTXT:
		return formatTXT(q, result)
	case domain.FormatYAML:
		return formatYAML(q, result)
	default:
		return nil, domain.ErrUnsupportedFormat
	}
}

// envelope is the stable shape shared by the json and yaml renderings.
type envelope struct {
	Consulta  exportQuery  `json:"consulta" yaml:"consulta"`
	Resultado exportResult `json:"resultado" yaml:"resultado"`
}

type exportQuery struct {
	ID        string     `json:"id" yaml:"id"`
	Tipo      string     `json:"tipo_consulta" yaml:"tipo_consulta"`
	Ciudad    string     `json:"ciudad,omitempty" yaml:"ciudad,omitempty"`
	CreadaEn  time.Time  `json:"creada_en" yaml:"creada_en"`
	Completed *time.Time `json:"completada_en,omitempty" yaml:"completada_en,omitempty"`
}

type exportResult struct {
	TempAvg       float64  `json:"temperatura_promedio" yaml:"temperatura_promedio"`
	TempMin       float64  `json:"temperatura_min" yaml:"temperatura_min"`
	TempMax       float64  `json:"temperatura_max" yaml:"temperatura_max"`
	Pressure      float64  `json:"presion_atmosferica" yaml:"presion_atmosferica"`
	Humidity      float64  `json:"humedad_relativa" yaml:"humedad_relativa"`
	WindSpeed     float64  `json:"velocidad_viento" yaml:"velocidad_viento"`
	WindDirection float64  `json:"direccion_viento" yaml:"direccion_viento"`
	Precipitation float64  `json:"precipitacion" yaml:"precipitacion"`
	Description   string   `json:"descripcion_clima,omitempty" yaml:"descripcion_clima,omitempty"`
	Sources       []string `json:"fuentes_utilizadas,omitempty" yaml:"fuentes_utilizadas,omitempty"`
}

func newEnvelope(q *domain.Query, result *domain.Result) envelope {
	return envelope{
		Consulta: exportQuery{
			ID:        q.ID,
			Tipo:      string(q.Type),
			Ciudad:    q.City,
			CreadaEn:  q.CreatedAt,
			Completed: q.CompletedAt,
		},
		Resultado: exportResult{
			TempAvg:       result.TempAvg,
			TempMin:       result.TempMin,
			TempMax:       result.TempMax,
			Pressure:      result.Pressure,
			Humidity:      result.Humidity,
			WindSpeed:     result.WindSpeed,
			WindDirection: result.WindDirection,
			Precipitation: result.Precipitation,
			Description:   result.Description,
			Sources:       result.Sources,
		},
	}
}

func formatJSON(q *domain.Query, result *domain.Result) (*Document, error) {
	data, err := json.MarshalIndent(newEnvelope(q, result), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode json export: %w", err)
	}
	return &Document{
		Data:        data,
		ContentType: "application/json",
		Filename:    "consulta_" + q.ID + ".json",
	}, nil
}

// formatCSV writes a fixed two-column table: one header line plus seven
// metric rows, eight lines total.
func formatCSV(q *domain.Query, result *domain.Result) (*Document, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Parametro", "Valor"},
		{"Temperatura Promedio", formatFloat(result.TempAvg)},
		{"Temperatura Min", formatFloat(result.TempMin)},
		{"Temperatura Max", formatFloat(result.TempMax)},
		{"Presion", formatFloat(result.Pressure)},
		{"Humedad", formatFloat(result.Humidity)},
		{"Viento Velocidad", formatFloat(result.WindSpeed)},
		{"Viento Direccion", formatFloat(result.WindDirection)},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode csv export: %w", err)
	}

	return &Document{
		Data:        buf.Bytes(),
		ContentType: "text/csv; charset=utf-8",
		Filename:    "consulta_" + q.ID + ".csv",
	}, nil
}

func formatTXT(q *domain.Query, result *domain.Result) (*Document, error) {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "CONSULTA CLIMÁTICA - ClimaGuru")
	fmt.Fprintln(&buf, "==============================")
	fmt.Fprintf(&buf, "ID de consulta: %s\n", q.ID)
	fmt.Fprintf(&buf, "Tipo: %s\n", q.Type)
	if q.City != "" {
		fmt.Fprintf(&buf, "Ciudad: %s\n", q.City)
	}
	fmt.Fprintf(&buf, "Fecha: %s\n", q.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "Temperatura promedio: %s °C\n", formatFloat(result.TempAvg))
	fmt.Fprintf(&buf, "Temperatura mínima:   %s °C\n", formatFloat(result.TempMin))
	fmt.Fprintf(&buf, "Temperatura máxima:   %s °C\n", formatFloat(result.TempMax))
	fmt.Fprintf(&buf, "Presión atmosférica:  %s hPa\n", formatFloat(result.Pressure))
	fmt.Fprintf(&buf, "Humedad relativa:     %s %%\n", formatFloat(result.Humidity))
	fmt.Fprintf(&buf, "Viento:               %s m/s (%s°)\n", formatFloat(result.WindSpeed), formatFloat(result.WindDirection))
	fmt.Fprintf(&buf, "Precipitación:        %s mm\n", formatFloat(result.Precipitation))
	if result.Description != "" {
		fmt.Fprintf(&buf, "Condición:            %s\n", result.Description)
	}
	if len(result.Sources) > 0 {
		fmt.Fprintln(&buf)
		fmt.Fprintln(&buf, "Fuentes:")
		for _, src := range result.Sources {
			fmt.Fprintf(&buf, "  - %s\n", src)
		}
	}

	return &Document{
		Data:        buf.Bytes(),
		ContentType: "text/plain; charset=utf-8",
		Filename:    "consulta_" + q.ID + ".txt",
	}, nil
}

func formatYAML(q *domain.Query, result *domain.Result) (*Document, error) {
	data, err := yaml.Marshal(newEnvelope(q, result))
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml export: %w", err)
	}
	return &Document{
		Data:        data,
		ContentType: "application/yaml",
		Filename:    "consulta_" + q.ID + ".yaml",
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
