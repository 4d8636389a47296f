package collect

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Persister is the contract the persistence layer must satisfy. Save returns
// a per-sink success map; it errors only when the mandatory sink failed.
type Persister interface {
	Save(ctx context.Context, doc *CollectionDocument) (map[string]bool, error)
}

// AirQualitySource and WeatherSource abstract the two upstream clients so the
// orchestrator can be tested with fakes.
type AirQualitySource interface {
	Fetch(ctx context.Context, coord Coordinate) (*AirQualityRecord, error)
}

type WeatherSource interface {
	Fetch(ctx context.Context, coord Coordinate) (*WeatherRecord, error)
}

// Orchestrator runs one collection cycle: fan out to both upstream clients,
// assemble the collection document, persist it. It holds no global state;
// construct one at startup and hand it to the HTTP layer.
type Orchestrator struct {
	airQuality      AirQualitySource
	weather         WeatherSource
	store           Persister
	defaultLocation Coordinate
}

func NewOrchestrator(aq AirQualitySource, w WeatherSource, store Persister, defaultLocation Coordinate) *Orchestrator {
	return &Orchestrator{
		airQuality:      aq,
		weather:         w,
		store:           store,
		defaultLocation: defaultLocation,
	}
}

// Run performs a single collection cycle for the given coordinate, falling
// back to the configured default when coord is nil. Upstream failures only
// degrade the status flags; the returned error is reserved for mandatory
// persistence failure.
func (o *Orchestrator) Run(ctx context.Context, coord *Coordinate) (*CollectionDocument, error) {
	loc := ResolvedLocation{Coordinate: o.defaultLocation, Source: SourceDefaultConfig}
	if coord != nil {
		loc = ResolvedLocation{Coordinate: *coord, Source: SourceUserProvided}
	}

	runID := uuid.NewString()
	log.Printf("INFO: collection run %s started for %.4f,%.4f (%s)", runID, loc.Latitude, loc.Longitude, loc.Source)

	var (
		wg sync.WaitGroup
		aq *AirQualityRecord
		wr *WeatherRecord
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		rec, err := o.airQuality.Fetch(ctx, loc.Coordinate)
		if err != nil {
			log.Printf("ERROR: run %s air quality collection failed: %v", runID, err)
			return
		}
		aq = rec
	}()

	go func() {
		defer wg.Done()
		rec, err := o.weather.Fetch(ctx, loc.Coordinate)
		if err != nil {
			log.Printf("ERROR: run %s weather collection failed: %v", runID, err)
			return
		}
		wr = rec
	}()

	wg.Wait()

	doc := &CollectionDocument{
		Timestamp:  time.Now().UTC(),
		RunID:      runID,
		Location:   loc,
		AirQuality: aq,
		Weather:    wr,
		Status: CollectionStatus{
			AirQualitySuccess: aq != nil,
			WeatherSuccess:    wr != nil,
			OverallSuccess:    aq != nil || wr != nil,
		},
	}

	results, err := o.store.Save(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("persisting collection document: %w", err)
	}

	log.Printf("INFO: run %s done - aq=%t weather=%t sinks=%v", runID, doc.Status.AirQualitySuccess, doc.Status.WeatherSuccess, results)
	return doc, nil
}

// DefaultLocation exposes the configured fallback coordinate.
func (o *Orchestrator) DefaultLocation() Coordinate {
	return o.defaultLocation
}
