package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// extraComputations is the fixed request profile sent with every air-quality lookup.
var extraComputations = []string{
	"HEALTH_RECOMMENDATIONS",
	"DOMINANT_POLLUTANT_CONCENTRATION",
	"POLLUTANT_CONCENTRATION",
	"LOCAL_AQI",
	"POLLUTANT_ADDITIONAL_INFO",
}

// AirQualityClient fetches current air-quality conditions from the Google
// Air Quality API.
type AirQualityClient struct {
	name      string
	apiKey    string
	projectID string
	baseURL   string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
}

func NewAirQualityClient(client *http.Client, apiKey, projectID string) *AirQualityClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "airquality",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &AirQualityClient{
		name:      "gcp_air_quality_api",
		apiKey:    apiKey,
		projectID: projectID,
		baseURL:   "https://airquality.googleapis.com/v1",
		client:    client,
		circuit:   cb,
	}
}

func (c *AirQualityClient) Name() string {
	return c.name
}

type airQualityRequest struct {
	Location          Coordinate `json:"location"`
	ExtraComputations []string   `json:"extraComputations"`
	LanguageCode      string     `json:"languageCode"`
}

// Fetch looks up current conditions for the coordinate. Upstream failures
// surface as a single error; parse problems never do, they yield a record
// carrying the raw payload instead.
func (c *AirQualityClient) Fetch(ctx context.Context, coord Coordinate) (*AirQualityRecord, error) {
	if c.apiKey == "" || c.projectID == "" {
		return nil, errClientNotConfigured
	}

	payload, err := json.Marshal(airQualityRequest{
		Location:          coord,
		ExtraComputations: extraComputations,
		LanguageCode:      "fr",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/currentConditions:lookup", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-User-Project", c.projectID)

	body, err := doRequest(ctx, c.client, c.circuit, req)
	if err != nil {
		return nil, err
	}

	return c.parseResponse(body), nil
}

func (c *AirQualityClient) parseResponse(raw []byte) *AirQualityRecord {
	rec := &AirQualityRecord{
		CollectedAt: time.Now().UTC(),
		DataSource:  c.name,
	}

	var payload struct {
		Indexes []struct {
			Code        string             `json:"code"`
			DisplayName string             `json:"displayName"`
			AQI         *int               `json:"aqi"`
			Category    string             `json:"category"`
			Color       map[string]float64 `json:"color"`
		} `json:"indexes"`
		Pollutants []struct {
			Code          string `json:"code"`
			DisplayName   string `json:"displayName"`
			FullName      string `json:"fullName"`
			Concentration *struct {
				Value *float64 `json:"value"`
				Units string   `json:"units"`
			} `json:"concentration"`
			AdditionalInfo map[string]any `json:"additionalInfo"`
		} `json:"pollutants"`
		HealthRecommendations map[string]string `json:"healthRecommendations"`
		DominantPollutant     string            `json:"dominantPollutant"`
		RegionCode            string            `json:"regionCode"`
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Printf("ERROR: air quality response parse failed: %v", err)
		rec.ParseError = err.Error()
		rec.Raw = json.RawMessage(raw)
		return rec
	}

	for _, idx := range payload.Indexes {
		rec.Indexes = append(rec.Indexes, AQIndex{
			Code:        idx.Code,
			DisplayName: idx.DisplayName,
			AQI:         idx.AQI,
			Category:    idx.Category,
			Color:       idx.Color,
		})
	}

	for _, p := range payload.Pollutants {
		pollutant := Pollutant{
			Code:           p.Code,
			DisplayName:    p.DisplayName,
			FullName:       p.FullName,
			AdditionalInfo: p.AdditionalInfo,
		}
		if p.Concentration != nil {
			pollutant.Concentration = &Concentration{
				Value: p.Concentration.Value,
				Units: p.Concentration.Units,
			}
		}
		rec.Pollutants = append(rec.Pollutants, pollutant)
	}

	rec.HealthRecommendations = payload.HealthRecommendations
	rec.DominantPollutant = payload.DominantPollutant
	rec.RegionCode = payload.RegionCode

	return rec
}
