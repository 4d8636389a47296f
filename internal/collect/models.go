package collect

import (
	"encoding/json"
	"time"
)

// LocationSource records where the coordinate for a collection cycle came from.
type LocationSource string

const (
	SourceUserProvided  LocationSource = "user_provided"
	SourceDefaultConfig LocationSource = "default_config"
)

// Coordinate is a geographic point. Latitude must be in [-90,90] and
// longitude in [-180,180]; validation happens at the HTTP boundary.
type Coordinate struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// ResolvedLocation is the coordinate actually used for a cycle plus its provenance.
type ResolvedLocation struct {
	Coordinate `bson:",inline"`
	Source     LocationSource `json:"source" bson:"source"`
}

// AQIndex is one air-quality index reported upstream. The first index in a
// record is treated as the canonical overall AQI.
type AQIndex struct {
	Code        string             `json:"code,omitempty" bson:"code,omitempty"`
	DisplayName string             `json:"display_name,omitempty" bson:"display_name,omitempty"`
	AQI         *int               `json:"aqi,omitempty" bson:"aqi,omitempty"`
	Category    string             `json:"category,omitempty" bson:"category,omitempty"`
	Color       map[string]float64 `json:"color,omitempty" bson:"color,omitempty"`
}

// Concentration is a measured pollutant concentration with its units.
type Concentration struct {
	Value *float64 `json:"value,omitempty" bson:"value,omitempty"`
	Units string   `json:"units,omitempty" bson:"units,omitempty"`
}

// Pollutant is one pollutant entry from the air-quality response.
type Pollutant struct {
	Code           string         `json:"code,omitempty" bson:"code,omitempty"`
	DisplayName    string         `json:"display_name,omitempty" bson:"display_name,omitempty"`
	FullName       string         `json:"full_name,omitempty" bson:"full_name,omitempty"`
	Concentration  *Concentration `json:"concentration,omitempty" bson:"concentration,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty" bson:"additional_info,omitempty"`
}

// AirQualityRecord is the normalized air-quality view for one cycle.
// Absent upstream fields stay absent; they are never defaulted.
// A record with ParseError set carries the raw payload for diagnostics and
// still counts as a collected record.
type AirQualityRecord struct {
	CollectedAt           time.Time         `json:"collected_at"`
	DataSource            string            `json:"data_source"`
	Indexes               []AQIndex         `json:"indexes,omitempty"`
	Pollutants            []Pollutant       `json:"pollutants,omitempty"`
	HealthRecommendations map[string]string `json:"health_recommendations,omitempty"`
	DominantPollutant     string            `json:"dominant_pollutant,omitempty"`
	RegionCode            string            `json:"region_code,omitempty"`

	ParseError string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw_data,omitempty"`
}

// WeatherCondition is the textual condition with its icon code.
type WeatherCondition struct {
	Main        string `json:"main,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Wind holds wind measurements; direction and gust are optional upstream.
type Wind struct {
	Speed     float64  `json:"speed"`
	Direction *float64 `json:"direction,omitempty"`
	Gust      *float64 `json:"gust,omitempty"`
}

// Place is the named place attached to a current-conditions response.
type Place struct {
	Name     string `json:"name,omitempty"`
	Country  string `json:"country,omitempty"`
	Timezone int    `json:"timezone,omitempty"`
}

// CurrentWeather is the normalized current-conditions sub-block.
type CurrentWeather struct {
	Temperature float64          `json:"temperature"`
	FeelsLike   float64          `json:"feels_like"`
	Humidity    float64          `json:"humidity"`
	Pressure    float64          `json:"pressure"`
	Visibility  *float64         `json:"visibility,omitempty"`
	Weather     WeatherCondition `json:"weather"`
	Wind        Wind             `json:"wind"`
	Clouds      float64          `json:"clouds"`
	Place       Place            `json:"location"`
	Sunrise     int64            `json:"sunrise,omitempty"`
	Sunset      int64            `json:"sunset,omitempty"`
	Timestamp   int64            `json:"timestamp,omitempty"`

	ParseError string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw_data,omitempty"`
}

// ForecastEntry is one three-hour forecast step.
type ForecastEntry struct {
	Datetime          int64            `json:"datetime"`
	Temperature       float64          `json:"temperature"`
	FeelsLike         float64          `json:"feels_like"`
	Humidity          float64          `json:"humidity"`
	Pressure          float64          `json:"pressure"`
	Weather           WeatherCondition `json:"weather"`
	WindSpeed         float64          `json:"wind_speed"`
	Clouds            float64          `json:"clouds"`
	PrecipProbability float64          `json:"precipitation_probability"`
}

// ForecastCity is the city metadata attached to a forecast response.
type ForecastCity struct {
	Name        string     `json:"name,omitempty"`
	Country     string     `json:"country,omitempty"`
	Coordinates Coordinate `json:"coordinates"`
}

// ForecastBlock holds up to 8 three-hour steps, a 24h horizon.
type ForecastBlock struct {
	City    ForecastCity    `json:"city"`
	Entries []ForecastEntry `json:"forecasts"`

	ParseError string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw_data,omitempty"`
}

// DetailedCurrent is the richer current view from the one-call endpoint.
type DetailedCurrent struct {
	Temperature float64           `json:"temperature"`
	FeelsLike   float64           `json:"feels_like"`
	Pressure    float64           `json:"pressure"`
	Humidity    float64           `json:"humidity"`
	DewPoint    float64           `json:"dew_point"`
	UVIndex     float64           `json:"uvi"`
	Clouds      float64           `json:"clouds"`
	Visibility  *float64          `json:"visibility,omitempty"`
	WindSpeed   float64           `json:"wind_speed"`
	WindDeg     *float64          `json:"wind_deg,omitempty"`
	Weather     *WeatherCondition `json:"weather,omitempty"`
}

// DetailedBlock is the one-call sub-block. Hourly and daily entries are kept
// as raw JSON; clients consume them as-is.
type DetailedBlock struct {
	Timezone       string            `json:"timezone,omitempty"`
	TimezoneOffset int               `json:"timezone_offset"`
	Current        *DetailedCurrent  `json:"current_detailed,omitempty"`
	Hourly         []json.RawMessage `json:"hourly,omitempty"`
	Daily          []json.RawMessage `json:"daily,omitempty"`

	ParseError string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw_data,omitempty"`
}

// WeatherRecord is the merged weather view for one cycle. Each sub-block is
// independently nullable; losing one sub-resource never nulls out the others.
type WeatherRecord struct {
	CollectedAt time.Time       `json:"collected_at"`
	DataSource  string          `json:"data_source"`
	Location    Coordinate      `json:"location"`
	Current     *CurrentWeather `json:"current,omitempty"`
	Forecast    *ForecastBlock  `json:"forecast,omitempty"`
	Detailed    *DetailedBlock  `json:"detailed,omitempty"`
}

// CollectionStatus carries the per-source success flags for one cycle.
// OverallSuccess must equal AirQualitySuccess || WeatherSuccess.
type CollectionStatus struct {
	AirQualitySuccess bool `json:"air_quality_success" bson:"air_quality_success"`
	WeatherSuccess    bool `json:"weather_success" bson:"weather_success"`
	OverallSuccess    bool `json:"overall_success" bson:"overall_success"`
}

// CollectionDocument is the unit of persistence. It is created once per run
// and never mutated afterwards; "latest" is an overwritten pointer, not a
// shared object.
type CollectionDocument struct {
	Timestamp  time.Time         `json:"timestamp"`
	RunID      string            `json:"run_id"`
	Location   ResolvedLocation  `json:"location"`
	AirQuality *AirQualityRecord `json:"air_quality"`
	Weather    *WeatherRecord    `json:"weather"`
	Status     CollectionStatus  `json:"collection_status"`
}

// FileStamp returns the timestamp in the form used to key persisted
// artifacts (local file names, document-store IDs).
func (d *CollectionDocument) FileStamp() string {
	return d.Timestamp.UTC().Format("20060102_150405")
}
