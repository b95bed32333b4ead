// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the Pitwall orchestrator HTTP server.
//
// This is the main entry point for the containerized orchestrator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - LLM_ROUTER_CONFIG: Path to the YAML provider chain (optional)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET: telemetry store
//   - GRAPH_SERVICE_URL: graph lookup service base URL (optional)
//   - SESSION_BACKEND: weaviate, badger, or memory (default: auto)
//   - SESSION_BADGER_PATH: on-disk path for the Badger session store
//   - SESSION_TTL: expire sessions idle longer than this, e.g. "72h" (default: off)
//   - ORCHESTRATOR_API_TOKEN: require this bearer token on /v1 routes (default: open)
//   - VALIDATE_ANSWERS: enable the post-generation QA pass (default: false)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: pitwall-otel-collector:4317)
//   - LOG_LEVEL: debug, info, warn, or error (default: info)
//   - LOG_DIR: when set, also write JSON logs to {LOG_DIR}/orchestrator_{date}.log
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pitwall-ai/pitwall/pkg/logging"
	"github.com/pitwall-ai/pitwall/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "orchestrator",
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:             getEnvInt("ORCHESTRATOR_PORT", 12210),
		RouterConfigPath: os.Getenv("LLM_ROUTER_CONFIG"),
		WeaviateURL:      os.Getenv("WEAVIATE_SERVICE_URL"),
		InfluxURL:        os.Getenv("INFLUXDB_URL"),
		InfluxToken:      os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:        getEnvString("INFLUXDB_ORG", "pitwall"),
		InfluxBucket:     getEnvString("INFLUXDB_BUCKET", "race-telemetry"),
		GraphServiceURL:  os.Getenv("GRAPH_SERVICE_URL"),
		SessionBackend:   os.Getenv("SESSION_BACKEND"),
		BadgerPath:       os.Getenv("SESSION_BADGER_PATH"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 0),
		APIToken:         os.Getenv("ORCHESTRATOR_API_TOKEN"),
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "pitwall-otel-collector:4317"),
		EnableMetrics:    true,
		ValidateAnswers:  getEnvBool("VALIDATE_ANSWERS", false),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"influx_url", cfg.InfluxURL,
		"graph_url", cfg.GraphServiceURL,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
