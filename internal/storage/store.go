package storage

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/rvallee/meteo-collector/internal/collect"
)

// Sink is a persistence destination for collection documents.
type Sink interface {
	Name() string
	Save(ctx context.Context, doc *collect.CollectionDocument) error
}

// Pinger is implemented by sinks that can report readiness (health checks).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store fans a collection document out to the mandatory local sink and any
// optional sinks. Sink failures are isolated: every sink gets its attempt,
// and only a local-sink failure is escalated.
type Store struct {
	local    *LocalSink
	optional []Sink
}

func NewStore(local *LocalSink, optional ...Sink) *Store {
	return &Store{local: local, optional: optional}
}

func (st *Store) Local() *LocalSink {
	return st.local
}

func (st *Store) Optional() []Sink {
	return st.optional
}

// Save writes the document to every configured sink concurrently and returns
// a sink-name to success map. The error is non-nil only when the mandatory
// local sink failed; optional sink failures are logged and flagged false.
func (st *Store) Save(ctx context.Context, doc *collect.CollectionDocument) (map[string]bool, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make(map[string]bool, len(st.optional)+1)
		localErr error
	)

	sinks := make([]Sink, 0, len(st.optional)+1)
	sinks = append(sinks, st.local)
	sinks = append(sinks, st.optional...)

	for _, sink := range sinks {
		sink := sink
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := sink.Save(ctx, doc)
			if err != nil {
				log.Printf("ERROR: sink %s save failed: %v", sink.Name(), err)
			}

			mu.Lock()
			defer mu.Unlock()
			results[sink.Name()] = err == nil
			if sink == Sink(st.local) && err != nil {
				localErr = err
			}
		}()
	}

	wg.Wait()

	if localErr != nil {
		return results, fmt.Errorf("mandatory local sink failed: %w", localErr)
	}
	return results, nil
}

// GetLatest delegates to the mandatory local sink.
func (st *Store) GetLatest() (*collect.CollectionDocument, error) {
	return st.local.GetLatest()
}
