package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	forecastHorizon = 8  // three-hour steps, 24h
	hourlyHorizon   = 24 // one-call hourly entries
	dailyHorizon    = 7  // one-call daily entries
)

// WeatherClient fetches weather data from OpenWeather across three
// sub-resources: current conditions, the 5-day/3-hour forecast, and the
// one-call detail endpoint.
type WeatherClient struct {
	name       string
	apiKey     string
	baseURL    string
	oneCallURL string
	client     *http.Client
	circuit    *gobreaker.CircuitBreaker
}

func NewWeatherClient(client *http.Client, apiKey string) *WeatherClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WeatherClient{
		name:       "openweather_api",
		apiKey:     apiKey,
		baseURL:    "https://api.openweathermap.org/data/2.5",
		oneCallURL: "https://api.openweathermap.org/data/3.0/onecall",
		client:     client,
		circuit:    cb,
	}
}

func (c *WeatherClient) Name() string {
	return c.name
}

// Fetch runs the three sub-requests concurrently and merges whatever
// succeeded. A failed sub-resource is logged and left nil; the record is
// still a success as long as the fetch itself could be orchestrated.
func (c *WeatherClient) Fetch(ctx context.Context, coord Coordinate) (*WeatherRecord, error) {
	if c.apiKey == "" {
		return nil, errClientNotConfigured
	}

	var (
		wg       sync.WaitGroup
		current  *CurrentWeather
		forecast *ForecastBlock
		detailed *DetailedBlock
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		block, err := c.fetchCurrent(ctx, coord)
		if err != nil {
			log.Printf("WARN: current conditions fetch failed: %v", err)
			return
		}
		current = block
	}()

	go func() {
		defer wg.Done()
		block, err := c.fetchForecast(ctx, coord)
		if err != nil {
			log.Printf("WARN: forecast fetch failed: %v", err)
			return
		}
		forecast = block
	}()

	go func() {
		defer wg.Done()
		block, err := c.fetchDetailed(ctx, coord)
		if err != nil {
			log.Printf("WARN: one-call detail fetch failed: %v", err)
			return
		}
		detailed = block
	}()

	wg.Wait()

	return &WeatherRecord{
		CollectedAt: time.Now().UTC(),
		DataSource:  c.name,
		Location:    coord,
		Current:     current,
		Forecast:    forecast,
		Detailed:    detailed,
	}, nil
}

func (c *WeatherClient) queryParams(coord Coordinate) url.Values {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", coord.Latitude))
	values.Set("lon", fmt.Sprintf("%f", coord.Longitude))
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")
	values.Set("lang", "fr")
	return values
}

func (c *WeatherClient) get(ctx context.Context, rawURL string, values url.Values) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", rawURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	return doRequest(ctx, c.client, c.circuit, req)
}

func (c *WeatherClient) fetchCurrent(ctx context.Context, coord Coordinate) (*CurrentWeather, error) {
	body, err := c.get(ctx, c.baseURL+"/weather", c.queryParams(coord))
	if err != nil {
		return nil, err
	}
	return parseCurrentWeather(body), nil
}

func (c *WeatherClient) fetchForecast(ctx context.Context, coord Coordinate) (*ForecastBlock, error) {
	body, err := c.get(ctx, c.baseURL+"/forecast", c.queryParams(coord))
	if err != nil {
		return nil, err
	}
	return parseForecast(body), nil
}

func (c *WeatherClient) fetchDetailed(ctx context.Context, coord Coordinate) (*DetailedBlock, error) {
	values := c.queryParams(coord)
	values.Set("exclude", "minutely")
	body, err := c.get(ctx, c.oneCallURL, values)
	if err != nil {
		return nil, err
	}
	return parseDetailed(body), nil
}

// parseCurrentWeather normalizes a current-conditions payload. A payload
// missing its required blocks yields a marker carrying the raw data rather
// than an error.
func parseCurrentWeather(raw []byte) *CurrentWeather {
	var payload struct {
		Main *struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  float64 `json:"humidity"`
			Pressure  float64 `json:"pressure"`
		} `json:"main"`
		Visibility *float64 `json:"visibility"`
		Weather    []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64  `json:"speed"`
			Deg   *float64 `json:"deg"`
			Gust  *float64 `json:"gust"`
		} `json:"wind"`
		Clouds struct {
			All float64 `json:"all"`
		} `json:"clouds"`
		Sys struct {
			Country string `json:"country"`
			Sunrise int64  `json:"sunrise"`
			Sunset  int64  `json:"sunset"`
		} `json:"sys"`
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
		Dt       int64  `json:"dt"`
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return &CurrentWeather{ParseError: err.Error(), Raw: json.RawMessage(raw)}
	}
	if payload.Main == nil || len(payload.Weather) == 0 {
		return &CurrentWeather{ParseError: "missing main or weather block", Raw: json.RawMessage(raw)}
	}

	return &CurrentWeather{
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		Visibility:  payload.Visibility,
		Weather: WeatherCondition{
			Main:        payload.Weather[0].Main,
			Description: payload.Weather[0].Description,
			Icon:        payload.Weather[0].Icon,
		},
		Wind: Wind{
			Speed:     payload.Wind.Speed,
			Direction: payload.Wind.Deg,
			Gust:      payload.Wind.Gust,
		},
		Clouds: payload.Clouds.All,
		Place: Place{
			Name:     payload.Name,
			Country:  payload.Sys.Country,
			Timezone: payload.Timezone,
		},
		Sunrise:   payload.Sys.Sunrise,
		Sunset:    payload.Sys.Sunset,
		Timestamp: payload.Dt,
	}
}

func parseForecast(raw []byte) *ForecastBlock {
	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp      float64 `json:"temp"`
				FeelsLike float64 `json:"feels_like"`
				Humidity  float64 `json:"humidity"`
				Pressure  float64 `json:"pressure"`
			} `json:"main"`
			Weather []struct {
				Main        string `json:"main"`
				Description string `json:"description"`
				Icon        string `json:"icon"`
			} `json:"weather"`
			Wind struct {
				Speed float64 `json:"speed"`
			} `json:"wind"`
			Clouds struct {
				All float64 `json:"all"`
			} `json:"clouds"`
			Pop float64 `json:"pop"`
		} `json:"list"`
		City *struct {
			Name    string `json:"name"`
			Country string `json:"country"`
			Coord   struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"coord"`
		} `json:"city"`
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return &ForecastBlock{ParseError: err.Error(), Raw: json.RawMessage(raw)}
	}
	if payload.List == nil {
		return &ForecastBlock{ParseError: "missing forecast list", Raw: json.RawMessage(raw)}
	}

	block := &ForecastBlock{}
	if payload.City != nil {
		block.City = ForecastCity{
			Name:    payload.City.Name,
			Country: payload.City.Country,
			Coordinates: Coordinate{
				Latitude:  payload.City.Coord.Lat,
				Longitude: payload.City.Coord.Lon,
			},
		}
	}

	for i, item := range payload.List {
		if i >= forecastHorizon {
			break
		}
		entry := ForecastEntry{
			Datetime:          item.Dt,
			Temperature:       item.Main.Temp,
			FeelsLike:         item.Main.FeelsLike,
			Humidity:          item.Main.Humidity,
			Pressure:          item.Main.Pressure,
			WindSpeed:         item.Wind.Speed,
			Clouds:            item.Clouds.All,
			PrecipProbability: item.Pop * 100,
		}
		if len(item.Weather) > 0 {
			entry.Weather = WeatherCondition{
				Main:        item.Weather[0].Main,
				Description: item.Weather[0].Description,
				Icon:        item.Weather[0].Icon,
			}
		}
		block.Entries = append(block.Entries, entry)
	}

	return block
}

func parseDetailed(raw []byte) *DetailedBlock {
	var payload struct {
		Timezone       *string `json:"timezone"`
		TimezoneOffset *int    `json:"timezone_offset"`
		Current        *struct {
			Temp       float64            `json:"temp"`
			FeelsLike  float64            `json:"feels_like"`
			Pressure   float64            `json:"pressure"`
			Humidity   float64            `json:"humidity"`
			DewPoint   float64            `json:"dew_point"`
			UVI        float64            `json:"uvi"`
			Clouds     float64            `json:"clouds"`
			Visibility *float64           `json:"visibility"`
			WindSpeed  float64            `json:"wind_speed"`
			WindDeg    *float64           `json:"wind_deg"`
			Weather    []WeatherCondition `json:"weather"`
		} `json:"current"`
		Hourly []json.RawMessage `json:"hourly"`
		Daily  []json.RawMessage `json:"daily"`
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return &DetailedBlock{ParseError: err.Error(), Raw: json.RawMessage(raw)}
	}
	if payload.Timezone == nil || payload.TimezoneOffset == nil {
		return &DetailedBlock{ParseError: "missing timezone metadata", Raw: json.RawMessage(raw)}
	}

	block := &DetailedBlock{
		Timezone:       *payload.Timezone,
		TimezoneOffset: *payload.TimezoneOffset,
	}

	if payload.Current != nil {
		cur := &DetailedCurrent{
			Temperature: payload.Current.Temp,
			FeelsLike:   payload.Current.FeelsLike,
			Pressure:    payload.Current.Pressure,
			Humidity:    payload.Current.Humidity,
			DewPoint:    payload.Current.DewPoint,
			UVIndex:     payload.Current.UVI,
			Clouds:      payload.Current.Clouds,
			Visibility:  payload.Current.Visibility,
			WindSpeed:   payload.Current.WindSpeed,
			WindDeg:     payload.Current.WindDeg,
		}
		if len(payload.Current.Weather) > 0 {
			w := payload.Current.Weather[0]
			cur.Weather = &w
		}
		block.Current = cur
	}

	if len(payload.Hourly) > hourlyHorizon {
		payload.Hourly = payload.Hourly[:hourlyHorizon]
	}
	if len(payload.Daily) > dailyHorizon {
		payload.Daily = payload.Daily[:dailyHorizon]
	}
	block.Hourly = payload.Hourly
	block.Daily = payload.Daily

	return block
}
