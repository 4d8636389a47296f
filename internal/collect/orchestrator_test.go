package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAirQuality struct {
	rec *AirQualityRecord
	err error
}

func (f *fakeAirQuality) Fetch(ctx context.Context, coord Coordinate) (*AirQualityRecord, error) {
	return f.rec, f.err
}

type fakeWeather struct {
	rec *WeatherRecord
	err error
}

func (f *fakeWeather) Fetch(ctx context.Context, coord Coordinate) (*WeatherRecord, error) {
	return f.rec, f.err
}

type fakePersister struct {
	saved   *CollectionDocument
	results map[string]bool
	err     error
}

func (f *fakePersister) Save(ctx context.Context, doc *CollectionDocument) (map[string]bool, error) {
	f.saved = doc
	if f.results == nil {
		f.results = map[string]bool{"local_json": true}
	}
	return f.results, f.err
}

func intPtr(v int) *int { return &v }

func TestRunBothSourcesSucceed(t *testing.T) {
	aq := &fakeAirQuality{rec: &AirQualityRecord{
		CollectedAt: time.Now().UTC(),
		DataSource:  "gcp_air_quality_api",
		Indexes:     []AQIndex{{Code: "uaqi", AQI: intPtr(42), Category: "Good"}},
	}}
	w := &fakeWeather{rec: &WeatherRecord{
		CollectedAt: time.Now().UTC(),
		DataSource:  "openweather_api",
		Current:     &CurrentWeather{Temperature: 22, Humidity: 65},
	}}
	store := &fakePersister{}

	orch := NewOrchestrator(aq, w, store, Coordinate{Latitude: 48.8566, Longitude: 2.3522})
	doc, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, CollectionStatus{AirQualitySuccess: true, WeatherSuccess: true, OverallSuccess: true}, doc.Status)
	require.NotNil(t, doc.AirQuality)
	assert.Equal(t, 42, *doc.AirQuality.Indexes[0].AQI)
	require.NotNil(t, doc.Weather)
	assert.InDelta(t, 22, doc.Weather.Current.Temperature, 1e-9)
	assert.NotEmpty(t, doc.RunID)
	assert.False(t, doc.Timestamp.IsZero())

	// The persisted document is the returned document.
	assert.Same(t, doc, store.saved)
}

func TestRunStatusInvariant(t *testing.T) {
	cases := []struct {
		name    string
		aqErr   error
		wErr    error
		wantAQ  bool
		wantW   bool
		wantAny bool
	}{
		{"both succeed", nil, nil, true, true, true},
		{"air quality fails", errors.New("boom"), nil, false, true, true},
		{"weather fails", nil, errors.New("boom"), true, false, true},
		{"both fail", errors.New("boom"), errors.New("boom"), false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aq := &fakeAirQuality{rec: &AirQualityRecord{}, err: tc.aqErr}
			w := &fakeWeather{rec: &WeatherRecord{}, err: tc.wErr}
			if tc.aqErr != nil {
				aq.rec = nil
			}
			if tc.wErr != nil {
				w.rec = nil
			}

			orch := NewOrchestrator(aq, w, &fakePersister{}, Coordinate{})
			doc, err := orch.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, tc.wantAQ, doc.Status.AirQualitySuccess)
			assert.Equal(t, tc.wantW, doc.Status.WeatherSuccess)
			assert.Equal(t, tc.wantAny, doc.Status.OverallSuccess)
			assert.Equal(t, doc.Status.AirQualitySuccess || doc.Status.WeatherSuccess, doc.Status.OverallSuccess)
		})
	}
}

func TestRunLocationProvenance(t *testing.T) {
	store := &fakePersister{}
	orch := NewOrchestrator(&fakeAirQuality{}, &fakeWeather{}, store, Coordinate{Latitude: 48.8566, Longitude: 2.3522})

	doc, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, SourceDefaultConfig, doc.Location.Source)
	assert.InDelta(t, 48.8566, doc.Location.Latitude, 1e-9)

	doc, err = orch.Run(context.Background(), &Coordinate{Latitude: 43.6, Longitude: 1.44})
	require.NoError(t, err)
	assert.Equal(t, SourceUserProvided, doc.Location.Source)
	assert.InDelta(t, 43.6, doc.Location.Latitude, 1e-9)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	store := &fakePersister{err: errors.New("disk full")}
	orch := NewOrchestrator(&fakeAirQuality{}, &fakeWeather{}, store, Coordinate{})

	doc, err := orch.Run(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, doc)
}
