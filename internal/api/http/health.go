package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/rvallee/meteo-collector/internal/config"
	"github.com/rvallee/meteo-collector/internal/storage"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	checkOK      = "ok"
	checkWarning = "warning"
	checkError   = "error"
)

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

// buildHealth aggregates config presence, filesystem writability, optional
// sink readiness and staleness of the last run. Mandatory check failures make
// the service unhealthy (503); optional ones only degrade it.
func buildHealth(ctx context.Context, store *storage.Store, cfg *config.AppConfig) healthResponse {
	health := healthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]checkResult),
	}

	// Mandatory: upstream credentials, re-read from the environment.
	if missing := config.MissingMandatory(); len(missing) > 0 {
		health.Checks["config"] = checkResult{
			Status:  checkError,
			Message: "missing: " + strings.Join(missing, ", "),
		}
		health.Status = statusUnhealthy
	} else {
		health.Checks["config"] = checkResult{Status: checkOK}
	}

	// Mandatory: without a writable data dir there is no durable record.
	if err := store.Local().CheckWritable(); err != nil {
		health.Checks["filesystem"] = checkResult{Status: checkError, Message: err.Error()}
		health.Status = statusUnhealthy
	} else {
		health.Checks["filesystem"] = checkResult{Status: checkOK}
	}

	// Optional: readiness of each configured sink that can report it.
	for _, sink := range store.Optional() {
		pinger, ok := sink.(storage.Pinger)
		if !ok {
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			health.Checks[sink.Name()] = checkResult{Status: checkError, Message: err.Error()}
			if health.Status == statusHealthy {
				health.Status = statusDegraded
			}
		} else {
			health.Checks[sink.Name()] = checkResult{Status: checkOK}
		}
	}

	// Optional: staleness of the last successful run.
	lastRun := store.Local().LatestModTime()
	switch {
	case lastRun.IsZero():
		health.Checks["last_collection"] = checkResult{
			Status:  checkWarning,
			Message: "no data collected yet",
		}
	case time.Since(lastRun) > 2*cfg.CollectInterval:
		health.Checks["last_collection"] = checkResult{
			Status:  checkWarning,
			Message: "last collection at " + lastRun.UTC().Format(time.RFC3339),
		}
		if health.Status == statusHealthy {
			health.Status = statusDegraded
		}
	default:
		health.Checks["last_collection"] = checkResult{Status: checkOK}
	}

	return health
}
