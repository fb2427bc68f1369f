// Command ordervox is the main entry point for the Ordervox drive-thru
// ordering server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/redis/go-redis/v9"
	"github.com/viant/afs"

	// Register cloud object-store schemes (s3://, gs://) with viant/afs.
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"

	"github.com/ordervox/ordervox/internal/archive"
	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/httpapi"
	"github.com/ordervox/ordervox/internal/intent"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/orchestrator"
	"github.com/ordervox/ordervox/internal/order"
	"github.com/ordervox/ordervox/internal/parser"
	"github.com/ordervox/ordervox/internal/resilience"
	"github.com/ordervox/ordervox/internal/respond"
	"github.com/ordervox/ordervox/internal/safety"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/internal/voice"
	"github.com/ordervox/ordervox/pkg/provider/llm"
	"github.com/ordervox/ordervox/pkg/provider/llm/anyllm"
	llmopenai "github.com/ordervox/ordervox/pkg/provider/llm/openai"
	"github.com/ordervox/ordervox/pkg/provider/stt"
	sttopenai "github.com/ordervox/ordervox/pkg/provider/stt/openai"
	"github.com/ordervox/ordervox/pkg/provider/stt/whisper"
	"github.com/ordervox/ordervox/pkg/provider/tts"
	"github.com/ordervox/ordervox/pkg/provider/tts/elevenlabs"
	"github.com/ordervox/ordervox/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ordervox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ordervox: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("ordervox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ordervox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, logger)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Stores ────────────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Stores.PostgresDSN)
	if err != nil {
		slog.Error("failed to open postgres pool", "err", err)
		return 1
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Stores.Redis.Addr,
		Password: cfg.Stores.Redis.Password,
		DB:       cfg.Stores.Redis.DB,
	})
	defer rdb.Close()

	menuStore := menu.NewStoreWithPool(pool)
	menuCache := menu.NewCache(menuStore, menu.DefaultCacheTTL)

	archiveStore, err := archive.NewStore(ctx, pool, logger)
	if err != nil {
		slog.Error("failed to initialise order archive", "err", err)
		return 1
	}
	sessions := session.NewStore(rdb, cfg.Session.TTL, archiveStore, logger)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	gate := safety.NewGate(cfg.Safety.Threshold, cfg.Safety.AllowedLinkDomains, logger)
	classifier := intent.NewClassifier(providers.LLM,
		intent.WithThreshold(cfg.AI.ConfidenceThreshold),
		intent.WithLogger(logger),
	)
	orderService := order.NewService(cfg.Ordering, logger)
	router := parser.NewRouter(providers.LLM, menuCache, logger)
	executor := command.NewExecutor(orderService, menuCache, menuStore, pool, cfg.Ordering, logger)
	aggregator := respond.NewAggregator(logger)

	fs := afs.New()
	profile := types.VoiceProfile{
		ID:       cfg.Voice.TTSVoice,
		Provider: cfg.Providers.TTS.Name,
		Language: cfg.Voice.Language,
	}
	voiceCache := voice.NewCache(fs, rdb, providers.TTS, profile, cfg.Voice.Language,
		cfg.Stores.ObjectStoreURL, cfg.Stores.PublicBaseURL, logger)
	generator := voice.NewGenerator(voiceCache, logger)

	orch := orchestrator.New(sessions, providers.STT, gate, classifier, router,
		executor, aggregator, generator, cfg.Server.TurnTimeout, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	api := httpapi.NewServer(sessions, orch, generator,
		httpapi.WithLogger(logger),
		httpapi.WithCheckers(
			httpapi.Checker{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}},
			httpapi.Checker{Name: "postgres", Check: func(ctx context.Context) error {
				return pool.Ping(ctx)
			}},
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// providerSet bundles the instantiated pipeline providers.
type providerSet struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider
}

// buildProviders instantiates the configured providers, wrapping each stage
// in a failover group when a fallback entry is configured for it.
func buildProviders(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (*providerSet, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	llmP := primary
	if cfg.Providers.FallbackLLM.Name != "" {
		backup, err := reg.CreateLLM(cfg.Providers.FallbackLLM)
		if err != nil {
			return nil, fmt.Errorf("fallback llm: %w", err)
		}
		group := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name,
			resilience.FallbackConfig{}, logger)
		group.AddFallback(cfg.Providers.FallbackLLM.Name, backup)
		llmP = group
	}

	sttP, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("stt: %w", err)
	}
	if cfg.Providers.FallbackSTT.Name != "" {
		backup, err := reg.CreateSTT(cfg.Providers.FallbackSTT)
		if err != nil {
			return nil, fmt.Errorf("fallback stt: %w", err)
		}
		group := resilience.NewSTTFallback(sttP, cfg.Providers.STT.Name,
			resilience.FallbackConfig{}, logger)
		group.AddFallback(cfg.Providers.FallbackSTT.Name, backup)
		sttP = group
	}

	ttsP, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	if cfg.Providers.FallbackTTS.Name != "" {
		backup, err := reg.CreateTTS(cfg.Providers.FallbackTTS)
		if err != nil {
			return nil, fmt.Errorf("fallback tts: %w", err)
		}
		group := resilience.NewTTSFallback(ttsP, cfg.Providers.TTS.Name,
			resilience.FallbackConfig{}, logger)
		group.AddFallback(cfg.Providers.FallbackTTS.Name, backup)
		ttsP = group
	}

	return &providerSet{LLM: llmP, STT: sttP, TTS: ttsP}, nil
}

// registerBuiltinProviders wires the provider factories that ship with
// Ordervox into reg. Each factory receives a config.ProviderEntry and
// constructs the provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, llmopenai.WithTimeout(entry.Timeout))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// anyllm fronts every backend mozilla-ai/any-llm-go supports; the
	// concrete backend is selected with the "backend" option.
	reg.RegisterLLM("anyllm", func(entry config.ProviderEntry) (llm.Provider, error) {
		backend := entry.StringOption("backend")
		if backend == "" {
			backend = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(backend, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, sttopenai.WithTimeout(entry.Timeout))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	// whisper runs the model in-process via the whisper.cpp bindings.
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.StringOption("model_path")
		}
		var opts []whisper.Option
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.StringOption("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
