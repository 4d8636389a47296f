package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/rvallee/meteo-collector/internal/api/http"
	"github.com/rvallee/meteo-collector/internal/collect"
	"github.com/rvallee/meteo-collector/internal/config"
	"github.com/rvallee/meteo-collector/internal/scheduler"
	"github.com/rvallee/meteo-collector/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	flag.Parse()

	// Load configuration; mandatory upstream credentials fail fast here.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Mandatory local sink plus independently enabled optional sinks.
	local := storage.NewLocalSink(cfg.DataDir)

	var optional []storage.Sink
	var mongoSink *storage.MongoSink
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		ms, err := storage.NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase)
		cancel()
		if err != nil {
			// The document store is optional; a broken one degrades, never blocks startup.
			log.Printf("WARN: document store sink disabled: %v", err)
		} else {
			mongoSink = ms
			optional = append(optional, ms)
		}
	}
	if cfg.WebhookURL != "" {
		optional = append(optional, storage.NewWebhookSink(httpClient, cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.CustomAPIURL != "" {
		optional = append(optional, storage.NewCustomAPISink(httpClient, cfg.CustomAPIURL, cfg.CustomAPIKey))
	}

	store := storage.NewStore(local, optional...)

	// Upstream clients and the orchestrator they feed.
	airQuality := collect.NewAirQualityClient(httpClient, cfg.GCPAirQualityAPIKey, cfg.GCPProjectID)
	weather := collect.NewWeatherClient(httpClient, cfg.OpenWeatherAPIKey)
	orch := collect.NewOrchestrator(airQuality, weather, store, cfg.DefaultLocation)

	if *once {
		runOnce(orch)
		return
	}

	// Scheduler that periodically collects and prunes old files.
	sched := scheduler.New(cfg.CollectInterval, orch, local, cfg.CleanupDays)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "meteo-collector",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, orch, store, cfg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if mongoSink != nil {
		if err := mongoSink.Close(shutdownCtx); err != nil {
			log.Printf("error disconnecting document store: %v", err)
		}
	}
}

// runOnce executes a single collection cycle, the mode an external cron
// trigger uses. A mandatory persistence failure exits non-zero so the
// scheduler can alert.
func runOnce(orch *collect.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	doc, err := orch.Run(ctx, nil)
	if err != nil {
		log.Printf("ERROR: collection cycle failed: %v", err)
		os.Exit(1)
	}

	log.Printf("INFO: collection finished at %s - aq=%t weather=%t",
		doc.Timestamp.Format(time.RFC3339), doc.Status.AirQualitySuccess, doc.Status.WeatherSuccess)
}
