// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator provides the core orchestrator service for Pitwall.
//
// This package contains the main Orchestrator type that coordinates all
// components of the service: HTTP routing, the LLM provider router, the
// agent pipeline and its tools, the retrieval backends (InfluxDB,
// Weaviate, graph service), session persistence, and observability
// infrastructure.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pitwall-ai/pitwall/services/llm"
	"github.com/pitwall-ai/pitwall/services/orchestrator/agent"
	"github.com/pitwall-ai/pitwall/services/orchestrator/datatypes"
	"github.com/pitwall-ai/pitwall/services/orchestrator/observability"
	"github.com/pitwall-ai/pitwall/services/orchestrator/routes"
	"github.com/pitwall-ai/pitwall/services/orchestrator/session"
	"github.com/pitwall-ai/pitwall/services/orchestrator/tools"
	"github.com/pitwall-ai/pitwall/services/orchestrator/ttl"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. Run() blocks and should only be called
// once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the orchestrator service.
// Values can be populated from environment variables, config files, or
// programmatically for testing. All fields have working defaults; the
// retrieval backends degrade to absent tools when unconfigured.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// RouterConfigPath points at the YAML provider chain. If empty, the
	// default Anthropic > OpenAI > Ollama chain is built from the
	// environment.
	RouterConfigPath string

	// WeaviateURL is the Weaviate vector database URL. If empty,
	// document search, answer enrichment, and Weaviate-backed sessions
	// are disabled. Example: "http://localhost:8080"
	WeaviateURL string

	// InfluxURL, InfluxToken, InfluxOrg, and InfluxBucket configure the
	// telemetry store. If InfluxURL is empty the telemetry tools are not
	// registered.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// GraphServiceURL is the base URL of the graph lookup service. If
	// empty the graph tools are not registered.
	GraphServiceURL string

	// SessionBackend selects session persistence: "weaviate", "badger",
	// or "memory". Default: "weaviate" when Weaviate is configured,
	// otherwise "badger" when BadgerPath is set, otherwise "memory".
	SessionBackend string

	// BadgerPath is the on-disk location for the Badger session store.
	BadgerPath string

	// SessionTTL expires sessions idle longer than this. Zero disables
	// the background sweep.
	SessionTTL time.Duration

	// SessionSweepInterval is how often the TTL sweep runs.
	// Default: 10m when SessionTTL is set.
	SessionSweepInterval time.Duration

	// APIToken, when set, is required as a bearer token on every /v1
	// request. Health and metrics stay open.
	APIToken string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "pitwall-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics registry.
	EnableMetrics bool

	// ValidateAnswers enables the post-generation QA pass.
	ValidateAnswers bool

	// TurnBudget bounds one pipeline turn end to end.
	TurnBudget time.Duration

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only once New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	llmRouter      *llm.ProviderRouter
	weaviateClient *weaviate.Client
	influxClient   influxdb2.Client
	sessions       session.Store
	pipeline       *agent.Pipeline
	ttlScheduler   *ttl.Scheduler
	tracerCleanup  func(context.Context)
	storeCloser    func() error
}

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and Prometheus metrics
//  3. Builds the LLM provider router (fallback chain)
//  4. Connects the retrieval backends that are configured
//  5. Selects and opens the session store
//  6. Registers the retrieval tools and assembles the pipeline
//  7. Sets up HTTP routes
//
// A missing retrieval backend is not fatal: the planner simply has
// fewer tools. A missing LLM chain is fatal.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.AgentMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the agent pipeline")
	}

	if err := s.initLLMRouter(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM router: %w", err)
	}

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, document search disabled", "error", err)
		// Not fatal - continue without Weaviate
	}

	registry := agent.NewRegistry()
	searcher := s.registerTools(registry)

	if err := s.initSessions(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	s.pipeline, err = agent.NewPipeline(agent.Params{
		Generator:       s.llmRouter,
		Registry:        registry,
		Sessions:        s.sessions,
		Searcher:        searcher,
		Metrics:         metrics,
		TurnBudget:      s.config.TurnBudget,
		ValidateAnswers: s.config.ValidateAnswers,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	if s.ttlScheduler != nil {
		s.ttlScheduler.Start()
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "pitwall-otel-collector:4317"
	}
	if cfg.InfluxBucket == "" {
		cfg.InfluxBucket = "race-telemetry"
	}
	if cfg.InfluxOrg == "" {
		cfg.InfluxOrg = "pitwall"
	}
	if cfg.SessionTTL > 0 && cfg.SessionSweepInterval == 0 {
		cfg.SessionSweepInterval = 10 * time.Minute
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, which is appropriate for internal
// networks where the collector runs alongside the service.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("orchestrator-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMRouter builds the provider fallback chain, from YAML when a
// config path is set, otherwise from the environment-driven defaults.
func (s *service) initLLMRouter() error {
	cfg := llm.DefaultRouterConfig()
	if s.config.RouterConfigPath != "" {
		loaded, err := llm.LoadRouterConfig(s.config.RouterConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	router, err := llm.BuildRouter(cfg)
	if err != nil {
		return err
	}
	s.llmRouter = router
	slog.Info("LLM provider chain ready", "providers", router.Providers())
	return nil
}

// initWeaviate initializes the Weaviate vector database client.
//
// Returns nil without a client when WeaviateURL is empty; document
// search is an optional dependency.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, running without document search")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	datatypes.EnsureWeaviateSchema(s.weaviateClient)
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// registerTools wires every configured retrieval backend into the tool
// registry and returns the enrichment searcher (nil without Weaviate).
func (s *service) registerTools(registry *agent.Registry) agent.ContextSearcher {
	if s.config.InfluxURL != "" {
		s.influxClient = influxdb2.NewClient(s.config.InfluxURL, s.config.InfluxToken)
		telemetry := tools.NewTelemetryTools(
			s.influxClient.QueryAPI(s.config.InfluxOrg), s.config.InfluxBucket)
		if err := telemetry.Register(registry); err != nil {
			slog.Error("Failed to register telemetry tools", "error", err)
		} else {
			slog.Info("Telemetry tools registered", "bucket", s.config.InfluxBucket)
		}
	} else {
		slog.Warn("InfluxDB not configured, telemetry tools unavailable")
	}

	if s.config.GraphServiceURL != "" {
		graph := tools.NewGraphTools(s.config.GraphServiceURL, nil)
		if err := graph.Register(registry); err != nil {
			slog.Error("Failed to register graph tools", "error", err)
		} else {
			slog.Info("Graph tools registered", "url", s.config.GraphServiceURL)
		}
	}

	var searcher agent.ContextSearcher
	if s.weaviateClient != nil {
		search := tools.NewDocumentSearch(s.weaviateClient)
		if err := search.Register(registry); err != nil {
			slog.Error("Failed to register document search tool", "error", err)
		}
		searcher = search
	}

	slog.Info("Tool registry assembled", "tools", registry.Names())
	return searcher
}

// initSessions opens the configured session store.
func (s *service) initSessions() error {
	backend := s.config.SessionBackend
	if backend == "" {
		switch {
		case s.weaviateClient != nil:
			backend = "weaviate"
		case s.config.BadgerPath != "":
			backend = "badger"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "weaviate":
		if s.weaviateClient == nil {
			return fmt.Errorf("weaviate session backend requested but Weaviate is not configured")
		}
		s.sessions = session.NewWeaviateStore(s.weaviateClient)
	case "badger":
		if s.config.BadgerPath == "" {
			return fmt.Errorf("badger session backend requested but no path configured")
		}
		store, err := session.NewBadgerStore(session.DefaultBadgerConfig(s.config.BadgerPath))
		if err != nil {
			return fmt.Errorf("failed to open badger session store: %w", err)
		}
		s.sessions = store
		s.storeCloser = store.Close
	case "memory":
		s.sessions = session.NewMemoryStore()
	default:
		return fmt.Errorf("unknown session backend %q", backend)
	}

	slog.Info("Session store ready", "backend", backend)

	if s.config.SessionTTL > 0 {
		cleaner := ttl.NewCleaner(s.sessions, s.config.SessionTTL, nil)
		s.ttlScheduler = ttl.NewScheduler(cleaner, s.config.SessionSweepInterval)
		slog.Info("Session TTL sweep configured",
			"ttl", s.config.SessionTTL, "interval", s.config.SessionSweepInterval)
	}
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("orchestrator-service"))

	routes.SetupRoutes(s.router, s.pipeline, s.sessions, s.config.APIToken)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.ttlScheduler != nil {
		s.ttlScheduler.Stop()
	}
	if s.influxClient != nil {
		s.influxClient.Close()
	}
	if s.storeCloser != nil {
		if err := s.storeCloser(); err != nil {
			slog.Warn("Session store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
