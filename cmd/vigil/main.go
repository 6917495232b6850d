package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vigil-ai/vigil/internal/audit"
	"github.com/vigil-ai/vigil/internal/config"
	"github.com/vigil-ai/vigil/internal/detector"
	"github.com/vigil-ai/vigil/internal/guard"
	"github.com/vigil-ai/vigil/internal/mockprovider"
	"github.com/vigil-ai/vigil/internal/observer"
	"github.com/vigil-ai/vigil/internal/pipeline"
	"github.com/vigil-ai/vigil/internal/provider"
	"github.com/vigil-ai/vigil/internal/redact"
	"github.com/vigil-ai/vigil/internal/retry"
	"github.com/vigil-ai/vigil/internal/server"
	"github.com/vigil-ai/vigil/internal/telemetry"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "vigil.yaml", "Path to Vigil config file")
	mockObserver := flag.Bool("mock-observer", false, "Run a local mock observer and point Gate3 at it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "vigil",
		Version:  version(),
	})
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	auditor := buildAuditor(cfg)
	if auditor != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			auditor.Close(closeCtx)
		}()
	}

	registry, err := detector.NewDefaultRegistry(cfg.Detectors)
	if err != nil {
		log.Fatalf("failed to build detectors: %v", err)
	}
	if cfg.Guard.Enabled {
		gd, err := guard.NewDetector(cfg.Guard, cfg.Pipeline.Gate1EmbeddingThreshold)
		if err != nil {
			log.Fatalf("failed to load guard bundle: %v", err)
		}
		if err := registry.Register(gd); err != nil {
			log.Fatalf("failed to register guard detector: %v", err)
		}
	}

	obs, cleanup, err := buildObserver(cfg, *mockObserver)
	if err != nil {
		log.Fatalf("failed to build observer: %v", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	orch, err := pipeline.New(cfg, registry, obs, tel, auditor)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	srv := server.New(cfg, orch, obs, auditor)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		redact.Fatalf("server error: %v", err)
	case <-ctx.Done():
		log.Printf("shutting down")
	}
}

// buildAuditor wires the decision-event emitter from config. Returns nil
// when auditing is off.
func buildAuditor(cfg *config.Config) *audit.Emitter {
	if !cfg.Audit.Enabled {
		return nil
	}

	sinks := []audit.Sink{audit.NewLogSink()}
	if url := strings.TrimSpace(cfg.Audit.WebhookURL); url != "" {
		ws, err := audit.NewWebhookSink(url, nil, 2*time.Second)
		if err != nil {
			log.Fatalf("failed to build webhook sink: %v", err)
		}
		sinks = append(sinks, ws)
	}

	return audit.NewEmitter(audit.EmitterConfig{
		QueueSize: cfg.Audit.QueueSize,
		Workers:   cfg.Audit.Workers,
	}, sinks)
}

// buildObserver constructs the Gate3 observer, optionally against an
// in-process mock upstream. Returns a nil observer when Gate3 is disabled.
func buildObserver(cfg *config.Config, useMock bool) (*observer.Observer, func(), error) {
	if cfg.Pipeline.Gate3Enabled != nil && !*cfg.Pipeline.Gate3Enabled {
		return nil, nil, nil
	}

	baseURL := cfg.Observer.BaseURL
	apiKey := strings.TrimSpace(os.Getenv(cfg.Observer.APIKeyEnv))

	var cleanup func()
	if useMock {
		shutdown, mockURL, err := mockprovider.StartMockObserver("")
		if err != nil {
			return nil, nil, err
		}
		baseURL = mockURL
		apiKey = "mock-key"
		cleanup = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}
	}

	p := provider.NewOpenAI(baseURL, apiKey, cfg.Observer.Model, cfg.Observer.ObserverTimeout())
	retrier := retry.New(cfg.Retry)
	return observer.New(p, retrier, cfg.Observer.ObserverTimeout()), cleanup, nil
}

func version() string {
	if v := strings.TrimSpace(os.Getenv("VIGIL_VERSION")); v != "" {
		return v
	}
	return "dev"
}
