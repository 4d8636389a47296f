package httpapi

import (
	"context"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/rvallee/meteo-collector/internal/collect"
	"github.com/rvallee/meteo-collector/internal/config"
	"github.com/rvallee/meteo-collector/internal/storage"
)

const serviceName = "meteo-collector"

// runTimeout bounds a triggered collection cycle.
const runTimeout = 2 * time.Minute

var validate = validator.New()

// Collector is the orchestrator surface the HTTP layer needs. It is injected
// at startup; handlers hold no global state.
type Collector interface {
	Run(ctx context.Context, coord *collect.Coordinate) (*collect.CollectionDocument, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, orch Collector, store *storage.Store, cfg *config.AppConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": serviceName})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"uptime":    "active",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		health := buildHealth(c.Context(), store, cfg)
		if health.Status == statusUnhealthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}
		return c.JSON(health)
	})

	app.Get("/latest", func(c *fiber.Ctx) error {
		doc, err := store.GetLatest()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read latest data")
		}
		if doc == nil {
			return fiber.NewError(fiber.StatusNotFound, "no collected data available")
		}

		// Summary only; raw upstream payloads are never served here.
		return c.JSON(fiber.Map{
			"timestamp":         doc.Timestamp,
			"location":          doc.Location,
			"collection_status": doc.Status,
			"data_available": fiber.Map{
				"air_quality": doc.AirQuality != nil,
				"weather":     doc.Weather != nil,
			},
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(buildMetrics(cfg.DataDir))
	})

	app.Post("/collect", func(c *fiber.Ctx) error {
		triggerRun(orch, nil)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	})

	app.Post("/collect/location", func(c *fiber.Ctx) error {
		coord, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		triggerRun(orch, coord)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":   "accepted",
			"location": coord,
		})
	})
}

// triggerRun starts a collection cycle without waiting for it; the HTTP
// response does not block on upstream calls.
func triggerRun(orch Collector, coord *collect.Coordinate) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := orch.Run(ctx, coord); err != nil {
			log.Printf("ERROR: triggered collection run failed: %v", err)
		}
	}()
}

// coordinateQuery validates user-supplied coordinates.
type coordinateQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

func parseCoordinateQuery(c *fiber.Ctx) (*collect.Coordinate, error) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "latitude must be a number")
	}
	lon, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "longitude must be a number")
	}

	q := coordinateQuery{Latitude: lat, Longitude: lon}
	if err := validate.Struct(q); err != nil {
		return nil, err
	}

	return &collect.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func buildMetrics(dataDir string) fiber.Map {
	var dataFiles int
	var totalSize int64

	entries, err := os.ReadDir(dataDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			dataFiles++
			if info, err := entry.Info(); err == nil {
				totalSize += info.Size()
			}
		}
	}

	return fiber.Map{
		"files": fiber.Map{
			"data_files": dataFiles,
		},
		"disk_usage": fiber.Map{
			"data_dir_mb": math.Round(float64(totalSize)/(1024*1024)*100) / 100,
		},
		"timestamp": time.Now().UTC(),
	}
}
