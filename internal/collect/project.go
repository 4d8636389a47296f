package collect

import (
	"math"
	"time"
)

const topPollutants = 5

// ProjectedIndex is the compact index view served to clients.
type ProjectedIndex struct {
	Code     string             `json:"code,omitempty" bson:"code,omitempty"`
	Name     string             `json:"name,omitempty" bson:"name,omitempty"`
	AQI      *int               `json:"aqi,omitempty" bson:"aqi,omitempty"`
	Category string             `json:"category,omitempty" bson:"category,omitempty"`
	Color    map[string]float64 `json:"color,omitempty" bson:"color,omitempty"`
}

// ProjectedPollutant is one of the top pollutants with a flattened concentration.
type ProjectedPollutant struct {
	Code          string   `json:"code,omitempty" bson:"code,omitempty"`
	Name          string   `json:"name,omitempty" bson:"name,omitempty"`
	Concentration *float64 `json:"concentration,omitempty" bson:"concentration,omitempty"`
	Units         string   `json:"units,omitempty" bson:"units,omitempty"`
}

// ProjectedAirQuality is the simplified air-quality block: the overall AQI
// taken from the first index, plus the top pollutants.
type ProjectedAirQuality struct {
	CollectedAt       time.Time            `json:"collected_at" bson:"collected_at"`
	DataSource        string               `json:"data_source" bson:"data_source"`
	OverallAQI        *int                 `json:"overall_aqi" bson:"overall_aqi"`
	OverallCategory   string               `json:"overall_category,omitempty" bson:"overall_category,omitempty"`
	DominantPollutant string               `json:"dominant_pollutant,omitempty" bson:"dominant_pollutant,omitempty"`
	Indexes           []ProjectedIndex     `json:"indexes,omitempty" bson:"indexes,omitempty"`
	MainPollutants    []ProjectedPollutant `json:"main_pollutants,omitempty" bson:"main_pollutants,omitempty"`
}

// ProjectedCurrent is the current-weather snapshot served to clients.
type ProjectedCurrent struct {
	Temperature float64 `json:"temperature" bson:"temperature"`
	FeelsLike   float64 `json:"feels_like" bson:"feels_like"`
	Humidity    float64 `json:"humidity" bson:"humidity"`
	Pressure    float64 `json:"pressure" bson:"pressure"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
	Icon        string  `json:"icon,omitempty" bson:"icon,omitempty"`
	WindSpeed   float64 `json:"wind_speed" bson:"wind_speed"`
	Clouds      float64 `json:"clouds" bson:"clouds"`
	CityName    string  `json:"city_name,omitempty" bson:"city_name,omitempty"`
	Country     string  `json:"country,omitempty" bson:"country,omitempty"`
	Sunrise     int64   `json:"sunrise,omitempty" bson:"sunrise,omitempty"`
	Sunset      int64   `json:"sunset,omitempty" bson:"sunset,omitempty"`
}

// ProjectedForecastEntry is one entry of the 24h client forecast.
type ProjectedForecastEntry struct {
	Datetime          int64   `json:"datetime" bson:"datetime"`
	Temperature       float64 `json:"temperature" bson:"temperature"`
	Description       string  `json:"description,omitempty" bson:"description,omitempty"`
	Icon              string  `json:"icon,omitempty" bson:"icon,omitempty"`
	PrecipProbability float64 `json:"precipitation_probability" bson:"precipitation_probability"`
	WindSpeed         float64 `json:"wind_speed" bson:"wind_speed"`
}

// TemperatureSummary aggregates the 24h forecast temperatures.
type TemperatureSummary struct {
	TempMin float64 `json:"temp_min" bson:"temp_min"`
	TempMax float64 `json:"temp_max" bson:"temp_max"`
	AvgTemp float64 `json:"avg_temp" bson:"avg_temp"`
}

// ProjectedWeather is the simplified weather block.
type ProjectedWeather struct {
	CollectedAt time.Time                `json:"collected_at" bson:"collected_at"`
	DataSource  string                   `json:"data_source" bson:"data_source"`
	Location    Coordinate               `json:"location" bson:"location"`
	Current     *ProjectedCurrent        `json:"current" bson:"current"`
	Forecast24h []ProjectedForecastEntry `json:"forecast_24h" bson:"forecast_24h"`
	Summary     *TemperatureSummary      `json:"forecast_summary" bson:"forecast_summary"`
}

// ProjectedDocument is the client-facing view derived from a
// CollectionDocument. It is recomputed on every write, never patched.
type ProjectedDocument struct {
	Timestamp        time.Time            `json:"timestamp" bson:"timestamp"`
	RunID            string               `json:"run_id" bson:"run_id"`
	Location         ResolvedLocation     `json:"location" bson:"location"`
	Status           CollectionStatus     `json:"collection_status" bson:"collection_status"`
	AirQuality       *ProjectedAirQuality `json:"air_quality" bson:"air_quality"`
	Weather          *ProjectedWeather    `json:"weather" bson:"weather"`
	RawDataAvailable bool                 `json:"raw_data_available" bson:"raw_data_available"`
}

// Project derives the compact client view from a collection document.
// The derivation is pure and deterministic.
func Project(doc *CollectionDocument) *ProjectedDocument {
	return &ProjectedDocument{
		Timestamp:        doc.Timestamp,
		RunID:            doc.RunID,
		Location:         doc.Location,
		Status:           doc.Status,
		AirQuality:       projectAirQuality(doc.AirQuality),
		Weather:          projectWeather(doc.Weather),
		RawDataAvailable: true,
	}
}

func projectAirQuality(rec *AirQualityRecord) *ProjectedAirQuality {
	if rec == nil {
		return nil
	}

	out := &ProjectedAirQuality{
		CollectedAt:       rec.CollectedAt,
		DataSource:        rec.DataSource,
		DominantPollutant: rec.DominantPollutant,
	}

	for _, idx := range rec.Indexes {
		out.Indexes = append(out.Indexes, ProjectedIndex{
			Code:     idx.Code,
			Name:     idx.DisplayName,
			AQI:      idx.AQI,
			Category: idx.Category,
			Color:    idx.Color,
		})
	}

	// First index is the canonical overall AQI.
	if len(rec.Indexes) > 0 {
		out.OverallAQI = rec.Indexes[0].AQI
		out.OverallCategory = rec.Indexes[0].Category
	}

	// First five pollutants only; entries without a concentration are dropped
	// from the window, never backfilled from later in the list.
	top := rec.Pollutants
	if len(top) > topPollutants {
		top = top[:topPollutants]
	}
	for _, p := range top {
		if p.Concentration == nil {
			continue
		}
		out.MainPollutants = append(out.MainPollutants, ProjectedPollutant{
			Code:          p.Code,
			Name:          p.DisplayName,
			Concentration: p.Concentration.Value,
			Units:         p.Concentration.Units,
		})
	}

	return out
}

func projectWeather(rec *WeatherRecord) *ProjectedWeather {
	if rec == nil {
		return nil
	}

	out := &ProjectedWeather{
		CollectedAt: rec.CollectedAt,
		DataSource:  rec.DataSource,
		Location:    rec.Location,
	}

	if cur := rec.Current; cur != nil && cur.ParseError == "" {
		out.Current = &ProjectedCurrent{
			Temperature: cur.Temperature,
			FeelsLike:   cur.FeelsLike,
			Humidity:    cur.Humidity,
			Pressure:    cur.Pressure,
			Description: cur.Weather.Description,
			Icon:        cur.Weather.Icon,
			WindSpeed:   cur.Wind.Speed,
			Clouds:      cur.Clouds,
			CityName:    cur.Place.Name,
			Country:     cur.Place.Country,
			Sunrise:     cur.Sunrise,
			Sunset:      cur.Sunset,
		}
	}

	if fc := rec.Forecast; fc != nil && fc.ParseError == "" {
		for i, entry := range fc.Entries {
			if i >= forecastHorizon {
				break
			}
			out.Forecast24h = append(out.Forecast24h, ProjectedForecastEntry{
				Datetime:          entry.Datetime,
				Temperature:       entry.Temperature,
				Description:       entry.Weather.Description,
				Icon:              entry.Weather.Icon,
				PrecipProbability: entry.PrecipProbability,
				WindSpeed:         entry.WindSpeed,
			})
		}

		if len(out.Forecast24h) > 0 {
			summary := &TemperatureSummary{
				TempMin: out.Forecast24h[0].Temperature,
				TempMax: out.Forecast24h[0].Temperature,
			}
			var sum float64
			for _, entry := range out.Forecast24h {
				if entry.Temperature < summary.TempMin {
					summary.TempMin = entry.Temperature
				}
				if entry.Temperature > summary.TempMax {
					summary.TempMax = entry.Temperature
				}
				sum += entry.Temperature
			}
			summary.AvgTemp = math.Round(sum/float64(len(out.Forecast24h))*10) / 10
			out.Summary = summary
		}
	}

	return out
}
