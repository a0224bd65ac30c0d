// Package config loads runtime configuration from the environment. A .env
// file is honored when present; OFFER_TOKEN_SECRET is the only hard
// requirement and the process fails fast without it.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the backend.
type Config struct {
	Port        string
	StorageType string
	AWSRegion   string

	JobsTable        string
	OffersTable      string
	CostFactorsTable string
	ProvidersTable   string

	JobEventsStream string

	VisionServiceURL   string
	NotifyServiceURL   string
	PaymentsServiceURL string

	OfferTokenSecret string
	PublicURL        string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	// Best effort; production supplies real env vars.
	_ = godotenv.Load()

	secret := os.Getenv("OFFER_TOKEN_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("OFFER_TOKEN_SECRET is required")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		StorageType: getEnv("STORAGE_TYPE", "memory"),
		AWSRegion:   getEnv("AWS_REGION", "us-west-2"),

		JobsTable:        getEnv("DYNAMODB_JOBS_TABLE", "repair-jobs"),
		OffersTable:      getEnv("DYNAMODB_OFFERS_TABLE", "repair-job-offers"),
		CostFactorsTable: getEnv("DYNAMODB_COST_FACTORS_TABLE", "repair-cost-factors"),
		ProvidersTable:   getEnv("DYNAMODB_PROVIDERS_TABLE", "repair-providers"),

		JobEventsStream: os.Getenv("KINESIS_JOB_EVENTS_STREAM"),

		VisionServiceURL:   getEnv("VISION_SERVICE_URL", "http://localhost:8090"),
		NotifyServiceURL:   getEnv("NOTIFY_SERVICE_URL", "http://localhost:8091"),
		PaymentsServiceURL: getEnv("PAYMENTS_SERVICE_URL", "http://localhost:8092"),

		OfferTokenSecret: secret,
		PublicURL:        getEnv("PUBLIC_URL", "http://localhost:8080"),
	}, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
