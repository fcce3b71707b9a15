package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BTreeMap/CareRouter/internal/catalog"
	"github.com/BTreeMap/CareRouter/internal/config"
	"github.com/BTreeMap/CareRouter/internal/flow"
	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/intent"
	"github.com/BTreeMap/CareRouter/internal/lockfile"
	"github.com/BTreeMap/CareRouter/internal/metrics"
	"github.com/BTreeMap/CareRouter/internal/state"
	"github.com/BTreeMap/CareRouter/internal/store"
	"github.com/BTreeMap/CareRouter/internal/suggest"
)

// app is the wired service shared by the serve and chat commands.
type app struct {
	cfg      config.Config
	manager  *flow.Manager
	records  store.Store
	recorder *store.Recorder
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	lock     *lockfile.Lock
}

// buildApp wires the generation backend, the stores and the conversation manager. A
// configured state directory is locked for the lifetime of the app.
func buildApp(ctx context.Context, cfg config.Config) (a *app, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var lock *lockfile.Lock
	if cfg.StateDir != "" {
		if lock, err = lockfile.Acquire(cfg.StateDir); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				lock.Release()
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	gen, err := buildGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	handlers, err := buildHandlers(gen, cfg)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	st, err := state.Open(state.Backend(strings.ToLower(cfg.StateBackend)), buildStateOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	dsn := cfg.RecordsDSN()
	records, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	slog.Debug("buildApp: record store ready", "dsn_type", store.DetectDSNType(dsn), "dsn_set", dsn != "")
	recorder := store.NewRecorder(records, store.WithOnDrop(m.RecordDropped))

	mgr, err := flow.NewManager(handlers,
		flow.WithClassifier(intent.NewClassifier(gen, intent.WithTimeout(cfg.BackendTimeout))),
		flow.WithSuggester(suggest.NewSuggester(gen, suggest.WithTimeout(cfg.BackendTimeout))),
		flow.WithCatalog(cat),
		flow.WithStateStore(st),
		flow.WithSessions(genai.NewSessions()),
		flow.WithRecorder(recorder),
		flow.WithMetrics(m),
		flow.WithTimeout(cfg.BackendTimeout),
	)
	if err != nil {
		records.Close()
		return nil, err
	}

	slog.Info("buildApp: CareRouter ready", "backend", cfg.Backend, "state_backend", cfg.StateBackend, "lab_test_handler", handlers.LabTest != nil)
	return &app{
		cfg:      cfg,
		manager:  mgr,
		records:  records,
		recorder: recorder,
		metrics:  m,
		registry: registry,
		lock:     lock,
	}, nil
}

// Close releases the record store and the state directory lock.
func (a *app) Close() {
	if err := a.records.Close(); err != nil {
		slog.Error("app.Close: failed to close record store", "error", err)
	}
	if err := a.lock.Release(); err != nil {
		slog.Error("app.Close: failed to release state directory lock", "error", err)
	}
}

// buildGenerator returns the configured text-generation backend, or nil for none.
func buildGenerator(ctx context.Context, cfg config.Config) (genai.Generator, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendOpenAI:
		c, err := genai.NewClient(genai.WithAPIKey(cfg.OpenAIKey), genai.WithModel(cfg.OpenAIModel))
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendGemini:
		c, err := genai.NewGeminiClient(ctx, genai.WithAPIKey(cfg.GeminiKey), genai.WithModel(cfg.GeminiModel))
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		slog.Info("buildGenerator: no generation backend configured, using canned replies")
		return nil, nil
	}
}

// buildHandlers creates the handler set. Without a backend every handler answers with
// canned text.
func buildHandlers(gen genai.Generator, cfg config.Config) (flow.Handlers, error) {
	if gen == nil {
		hs := flow.NewCannedHandlers()
		if !cfg.LabTestHandler {
			hs.LabTest = nil
		}
		return hs, nil
	}
	return flow.NewGenAIHandlers(gen, cfg.PromptsDir, cfg.LabTestHandler)
}

// buildStateOptions constructs state store options
func buildStateOptions(cfg config.Config) []state.Option {
	var opts []state.Option
	if cfg.StateMaxUsers > 0 {
		opts = append(opts, state.WithMaxUsers(cfg.StateMaxUsers))
	}
	if cfg.StateTTL > 0 {
		opts = append(opts, state.WithTTL(cfg.StateTTL))
	}
	if cfg.RedisAddr != "" {
		opts = append(opts, state.WithRedisAddr(cfg.RedisAddr))
	}
	return opts
}

// loadCatalog reads a catalog override, falling back to the embedded catalog.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	cat, err := catalog.Load(data)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	slog.Debug("loadCatalog: loaded catalog override", "path", path)
	return cat, nil
}
