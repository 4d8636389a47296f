package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"

	"github.com/rvallee/meteo-collector/internal/collect"
)

// Paris, the coordinate used when nothing else is configured.
const (
	defaultLatitude  = 48.8566
	defaultLongitude = 2.3522
)

// mandatoryVars are the upstream credentials without which no collection
// cycle can run. Startup fails fast when any is absent.
var mandatoryVars = []string{
	"GCP_AIR_QUALITY_API_KEY",
	"GCP_PROJECT_ID",
	"OPENWEATHER_API_KEY",
}

type AppConfig struct {
	GCPAirQualityAPIKey string
	GCPProjectID        string
	OpenWeatherAPIKey   string

	// DefaultLocation is used when a collection run is not given a coordinate.
	DefaultLocation collect.Coordinate

	// CollectInterval controls the periodic collection cycle.
	CollectInterval time.Duration

	// HTTPTimeout bounds each individual outbound call.
	HTTPTimeout time.Duration

	DataDir     string
	CleanupDays int

	// Optional sinks; each non-empty value independently enables one.
	MongoURI      string
	MongoDatabase string
	WebhookURL    string
	WebhookSecret string
	CustomAPIURL  string
	CustomAPIKey  string

	// DatabaseURL is reserved for a relational sink; no sink consumes it yet.
	DatabaseURL string

	Port string
}

// Load reads configuration from environment with sensible defaults.
// Missing mandatory upstream credentials make it fail immediately.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	if missing := MissingMandatory(); len(missing) > 0 {
		return nil, fmt.Errorf("missing mandatory environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &AppConfig{
		GCPAirQualityAPIKey: os.Getenv("GCP_AIR_QUALITY_API_KEY"),
		GCPProjectID:        os.Getenv("GCP_PROJECT_ID"),
		OpenWeatherAPIKey:   os.Getenv("OPENWEATHER_API_KEY"),
		DataDir:             getenvDefault("DATA_DIR", "data"),
		CleanupDays:         getenvInt("CLEANUP_DAYS", 7),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDatabase:       getenvDefault("MONGO_DATABASE", "meteo"),
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		CustomAPIURL:        os.Getenv("CUSTOM_API_URL"),
		CustomAPIKey:        os.Getenv("CUSTOM_API_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Port:                getenvDefault("PORT", "8080"),
	}

	intervalStr := getenvDefault("COLLECT_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECT_INTERVAL: %w", err)
	}
	cfg.CollectInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	loc, err := loadDefaultLocation(cfg.GCPAirQualityAPIKey)
	if err != nil {
		return nil, err
	}
	cfg.DefaultLocation = loc

	return cfg, nil
}

// MissingMandatory lists the mandatory variables that are absent. The health
// endpoint re-checks this at request time.
func MissingMandatory() []string {
	var missing []string
	for _, v := range mandatoryVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// loadDefaultLocation resolves the default coordinate: explicit
// DEFAULT_LATITUDE/DEFAULT_LONGITUDE first, then a geocoded DEFAULT_CITY,
// then Paris.
func loadDefaultLocation(googleAPIKey string) (collect.Coordinate, error) {
	latStr := os.Getenv("DEFAULT_LATITUDE")
	lonStr := os.Getenv("DEFAULT_LONGITUDE")
	if latStr != "" || lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return collect.Coordinate{}, fmt.Errorf("invalid DEFAULT_LATITUDE: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return collect.Coordinate{}, fmt.Errorf("invalid DEFAULT_LONGITUDE: %w", err)
		}
		return collect.Coordinate{Latitude: lat, Longitude: lon}, nil
	}

	if city := os.Getenv("DEFAULT_CITY"); city != "" {
		geocoder.ApiKey = googleAPIKey
		address := geocoder.Address{
			City:    city,
			Country: os.Getenv("DEFAULT_COUNTRY"),
		}
		loc, err := geocoder.Geocoding(address)
		if err != nil {
			return collect.Coordinate{}, fmt.Errorf("geocoding DEFAULT_CITY %q: %w", city, err)
		}
		log.Printf("INFO: default location geocoded from %q: %.4f,%.4f", city, loc.Latitude, loc.Longitude)
		return collect.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
	}

	return collect.Coordinate{Latitude: defaultLatitude, Longitude: defaultLongitude}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
