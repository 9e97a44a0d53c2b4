package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"trendsensei/internal/adapters/gemini"
	server "trendsensei/internal/adapters/http_server"
	"trendsensei/internal/adapters/llm"
	"trendsensei/internal/adapters/observability"
	redisad "trendsensei/internal/adapters/redis"
	"trendsensei/internal/app"
	"trendsensei/internal/domain"
	"trendsensei/internal/shared"
	"trendsensei/internal/storage/memory"
	"trendsensei/internal/storage/sqlstore"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.Serve(cfg.MetricsAddr)

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	reports := app.NewReportService(store, app.ReportConfig{
		MaxPageSize:       cfg.MaxPageSize,
		DefaultPageSize:   cfg.DefaultPageSize,
		TrendingThreshold: cfg.TrendingThreshold,
	})
	cache := openCache(ctx, cfg)
	assistant := app.NewAssistantService(reports, openGenerator(ctx, cfg), cache, cfg.CacheTTL)

	// http
	srv := server.New(server.Options{RequestTimeout: cfg.RequestTimeout})
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{R: reports, AI: assistant})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func openStore(ctx context.Context, cfg shared.Config) (domain.RecordStore, func()) {
	if cfg.StoreDriver == "memory" {
		mem := memory.New()
		if cfg.SeedCSV != "" {
			seedMemory(ctx, mem, cfg)
		}
		return mem, func() {}
	}

	d, err := sqlstore.DialectFor(cfg.StoreDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("store driver")
	}
	repo, err := sqlstore.Open(ctx, d, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", d.Name).Msg("store open failed")
	}
	log.Info().Str("driver", d.Name).Msg("database connection ok")
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}
}

func seedMemory(ctx context.Context, mem *memory.Store, cfg shared.Config) {
	f, err := os.Open(cfg.SeedCSV)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SeedCSV).Msg("open seed csv")
	}
	defer f.Close()

	imp := app.NewImportService(mem, app.ImportConfig{Workers: cfg.ImportWorkers, BatchSize: cfg.ImportBatchSize})
	st, err := imp.ImportReviews(ctx, f, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("seed memory store")
	}
	log.Info().Int64("rows", st.Rows).Int64("inserted", st.Inserted).Msg("memory store seeded")
}

// openCache returns nil when redis is not configured or unreachable; the
// assistant then answers without caching.
func openCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "trendsensei:")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, caching disabled")
		_ = c.Close()
		return nil
	}
	return c
}

func openGenerator(ctx context.Context, cfg shared.Config) domain.Generator {
	switch cfg.LLMProvider {
	case "gemini":
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
		if err != nil {
			log.Warn().Err(err).Msg("gemini disabled")
			return nil
		}
		log.Info().Str("model", cfg.GeminiModel).Msg("using gemini")
		return g
	case "local":
		c, err := llm.New(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMRPS)
		if err != nil {
			log.Warn().Err(err).Msg("local model disabled")
			return nil
		}
		log.Info().Str("base", cfg.LLMBaseURL).Str("model", cfg.LLMModel).Msg("using local model")
		return c
	default:
		log.Info().Str("provider", cfg.LLMProvider).Msg("text generation disabled")
		return nil
	}
}
