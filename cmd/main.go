package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appconfig "prereno-backend/internal/config"
	"prereno-backend/internal/events"
	"prereno-backend/internal/handlers"
	"prereno-backend/internal/notify"
	"prereno-backend/internal/payments"
	"prereno-backend/internal/service"
	"prereno-backend/internal/storage"
	"prereno-backend/internal/vision"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	kinesisService "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/gorilla/mux"
)

func main() {
	// Setup structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize storage based on configuration
	var (
		jobStorage      storage.JobStorage
		offerStorage    storage.OfferStorage
		costStorage     storage.CostFactorStorage
		providerStorage storage.ProviderStorage
	)
	switch cfg.StorageType {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Error("Failed to load AWS config", "error", err)
			os.Exit(1)
		}

		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		jobStorage = storage.NewDynamoDBJobStorage(dynamoClient, cfg.JobsTable)
		offerStorage = storage.NewDynamoDBOfferStorage(dynamoClient, cfg.OffersTable)
		costStorage = storage.NewDynamoDBCostFactorStorage(dynamoClient, cfg.CostFactorsTable)
		providerStorage = storage.NewDynamoDBProviderStorage(dynamoClient, cfg.ProvidersTable)
		slog.Info("Using DynamoDB storage", "jobs_table", cfg.JobsTable, "offers_table", cfg.OffersTable)
	default:
		jobStorage = storage.NewMemoryJobStorage()
		offerStorage = storage.NewMemoryOfferStorage()
		costStorage = storage.NewMemoryCostFactorStorage(devCostFactors())
		providerStorage = storage.NewMemoryProviderStorage()
		slog.Info("Using in-memory storage")
	}

	// External collaborators
	detector := vision.NewClient(cfg.VisionServiceURL)
	notifier := notify.NewClient(cfg.NotifyServiceURL)
	processor := payments.NewClient(cfg.PaymentsServiceURL)

	pricing := service.DefaultPricingConfig()
	tokens := service.NewOfferTokenSigner([]byte(cfg.OfferTokenSecret), pricing.OfferTTL)

	jobService := service.NewJobService(
		jobStorage, offerStorage, costStorage, providerStorage,
		detector, notifier, processor,
		tokens, cfg.PublicURL,
	)

	// Initialize Kinesis event streaming if a stream name is provided
	if cfg.JobEventsStream != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Warn("Failed to load AWS config for Kinesis", "error", err)
		} else {
			kinesisClient := kinesisService.NewFromConfig(awsCfg)
			jobService.SetEventStreamer(events.NewStreamer(kinesisClient, cfg.JobEventsStream))
			slog.Info("Job event streaming enabled", "stream", cfg.JobEventsStream)
		}
	}

	// Initialize HTTP handlers
	httpHandler := handlers.NewHTTPHandler(jobService, tokens)

	// Setup routes
	router := mux.NewRouter()

	// Use path prefix if running behind load balancer
	pathPrefix := os.Getenv("PATH_PREFIX")
	if pathPrefix != "" {
		apiRouter := router.PathPrefix(pathPrefix).Subrouter()
		httpHandler.RegisterRoutes(apiRouter)
	} else {
		httpHandler.RegisterRoutes(router)
	}

	// Add CORS middleware for frontend
	router.Use(corsMiddleware)

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("Marketplace backend starting", "port", cfg.Port, "storage", cfg.StorageType)
		if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-c
	slog.Info("Marketplace backend shutting down")
}

// devCostFactors seeds the in-memory backend so local development can price
// jobs without a DynamoDB table. The DynamoDB backend has no fallback rows:
// a missing row is a hard NotConfigured error.
func devCostFactors() []*storage.CostFactors {
	var rows []*storage.CostFactors
	for _, category := range storage.Categories {
		rows = append(rows, &storage.CostFactors{
			LocationKey:           "97201",
			Category:              category,
			LaborRateCentsPerHour: 8000,
			MaterialMultiplier:    1.3,
			MinimumJobCents:       15000,
		})
	}
	return rows
}

// corsMiddleware adds CORS headers for frontend access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Client-ID, X-Provider-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
