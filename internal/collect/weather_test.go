package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCurrentPayload = `{
	"main": {"temp": 22, "feels_like": 21.3, "humidity": 65, "pressure": 1013},
	"weather": [{"main": "Clear", "description": "ciel dégagé", "icon": "01d"}],
	"wind": {"speed": 3},
	"clouds": {"all": 0},
	"sys": {"country": "FR", "sunrise": 1700000000, "sunset": 1700040000},
	"name": "Paris",
	"timezone": 3600,
	"dt": 1700020000
}`

// newWeatherTestClient routes the three sub-resources to handler functions.
func newWeatherTestClient(t *testing.T, current, forecast, onecall http.HandlerFunc) *WeatherClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", current)
	mux.HandleFunc("/forecast", forecast)
	mux.HandleFunc("/onecall", onecall)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewWeatherClient(&http.Client{Timeout: 5 * time.Second}, "test-key")
	c.baseURL = srv.URL
	c.oneCallURL = srv.URL + "/onecall"
	return c
}

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func serveStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream error", code)
	}
}

func forecastPayload(entries int) string {
	var items []string
	for i := 0; i < entries; i++ {
		items = append(items, fmt.Sprintf(`{
			"dt": %d,
			"main": {"temp": %d, "feels_like": %d, "humidity": 60, "pressure": 1010},
			"weather": [{"main": "Clouds", "description": "nuageux", "icon": "03d"}],
			"wind": {"speed": 4.2},
			"clouds": {"all": 75},
			"pop": 0.35
		}`, 1700000000+i*10800, 10+i, 9+i))
	}
	return fmt.Sprintf(`{
		"list": [%s],
		"city": {"name": "Paris", "country": "FR", "coord": {"lat": 48.8566, "lon": 2.3522}}
	}`, strings.Join(items, ","))
}

func TestWeatherFetchAllSubResources(t *testing.T) {
	c := newWeatherTestClient(t,
		serveJSON(sampleCurrentPayload),
		serveJSON(forecastPayload(3)),
		serveJSON(`{
			"timezone": "Europe/Paris",
			"timezone_offset": 3600,
			"current": {"temp": 22, "feels_like": 21.3, "pressure": 1013, "humidity": 65, "dew_point": 14.2, "uvi": 3.1, "clouds": 0, "wind_speed": 3,
				"weather": [{"main": "Clear", "description": "ciel dégagé", "icon": "01d"}]},
			"hourly": [{"dt": 1}, {"dt": 2}],
			"daily": [{"dt": 1}]
		}`),
	)

	rec, err := c.Fetch(context.Background(), Coordinate{Latitude: 48.8566, Longitude: 2.3522})
	require.NoError(t, err)

	require.NotNil(t, rec.Current)
	assert.InDelta(t, 22, rec.Current.Temperature, 1e-9)
	assert.Equal(t, "ciel dégagé", rec.Current.Weather.Description)
	assert.Equal(t, "Paris", rec.Current.Place.Name)
	assert.Equal(t, "FR", rec.Current.Place.Country)

	require.NotNil(t, rec.Forecast)
	assert.Len(t, rec.Forecast.Entries, 3)
	assert.InDelta(t, 35, rec.Forecast.Entries[0].PrecipProbability, 1e-9)
	assert.Equal(t, "Paris", rec.Forecast.City.Name)

	require.NotNil(t, rec.Detailed)
	assert.Equal(t, "Europe/Paris", rec.Detailed.Timezone)
	require.NotNil(t, rec.Detailed.Current)
	assert.InDelta(t, 14.2, rec.Detailed.Current.DewPoint, 1e-9)
	assert.Len(t, rec.Detailed.Hourly, 2)
}

// A failed forecast sub-request must not touch the other sub-blocks.
func TestWeatherFetchPartialSubResourceFailure(t *testing.T) {
	c := newWeatherTestClient(t,
		serveJSON(sampleCurrentPayload),
		serveStatus(http.StatusInternalServerError),
		serveStatus(http.StatusUnauthorized),
	)

	rec, err := c.Fetch(context.Background(), Coordinate{})
	require.NoError(t, err)

	assert.NotNil(t, rec.Current)
	assert.Nil(t, rec.Forecast)
	assert.Nil(t, rec.Detailed)
}

func TestWeatherFetchQueryParams(t *testing.T) {
	var gotQuery map[string][]string
	c := newWeatherTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			serveJSON(sampleCurrentPayload)(w, r)
		},
		serveStatus(http.StatusNotFound),
		serveStatus(http.StatusNotFound),
	)

	_, err := c.Fetch(context.Background(), Coordinate{Latitude: 48.8566, Longitude: 2.3522})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotQuery["appid"][0])
	assert.Equal(t, "metric", gotQuery["units"][0])
	assert.Equal(t, "fr", gotQuery["lang"][0])
	assert.NotEmpty(t, gotQuery["lat"])
	assert.NotEmpty(t, gotQuery["lon"])
}

func TestWeatherFetchOneCallExcludesMinutely(t *testing.T) {
	var gotExclude string
	c := newWeatherTestClient(t,
		serveStatus(http.StatusNotFound),
		serveStatus(http.StatusNotFound),
		func(w http.ResponseWriter, r *http.Request) {
			gotExclude = r.URL.Query().Get("exclude")
			serveJSON(`{"timezone": "Europe/Paris", "timezone_offset": 3600}`)(w, r)
		},
	)

	_, err := c.Fetch(context.Background(), Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, "minutely", gotExclude)
}

func TestWeatherFetchMissingAPIKey(t *testing.T) {
	c := NewWeatherClient(http.DefaultClient, "")
	_, err := c.Fetch(context.Background(), Coordinate{})
	assert.ErrorIs(t, err, errClientNotConfigured)
}

func TestParseForecastCapsHorizon(t *testing.T) {
	block := parseForecast([]byte(forecastPayload(12)))
	require.Empty(t, block.ParseError)
	assert.Len(t, block.Entries, forecastHorizon)
}

func TestParseCurrentWeatherMarkerOnMissingBlocks(t *testing.T) {
	block := parseCurrentWeather([]byte(`{"wind": {"speed": 2}}`))
	assert.NotEmpty(t, block.ParseError)
	assert.NotEmpty(t, block.Raw)
}

func TestParseDetailedRequiresTimezone(t *testing.T) {
	block := parseDetailed([]byte(`{"current": {"temp": 20}}`))
	assert.NotEmpty(t, block.ParseError)

	block = parseDetailed([]byte(`{"timezone": "UTC", "timezone_offset": 0}`))
	assert.Empty(t, block.ParseError)
	assert.Nil(t, block.Current)
}
