package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/api"
	"github.com/0888060509/champong-admin/internal/audit"
	"github.com/0888060509/champong-admin/internal/config"
	"github.com/0888060509/champong-admin/internal/logging"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
	"github.com/0888060509/champong-admin/internal/telemetry"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("config")
	}

	format := cfg.LogFormat
	if format == "" {
		format = logging.DefaultFormat(cfg.AppEnv)
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, format)
	if err != nil {
		boot.Fatal().Err(err).Msg("logging")
	}
	logger = logger.With().Str("env", cfg.AppEnv).Logger()

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, "champong-admin", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing")
	}
	telemetry.Init()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.StoreType).Msg("store")
	}
	defer st.Close()

	if cfg.SeedMockData {
		if err := store.Seed(ctx, st, time.Now()); err != nil {
			logger.Fatal().Err(err).Msg("seed")
		}
		logger.Info().Msg("mock data loaded")
	}

	sinks := audit.Tee{audit.NewLogSink(logger)}
	if pg, ok := st.(*store.PostgresStore); ok {
		sinks = append(sinks, audit.NewPostgresSink(pg.Pool()))
	} else {
		sinks = append(sinks, audit.NewMemorySink(1000))
	}
	trail := audit.NewService(sinks, audit.WithLogger(logger))
	defer trail.Close()

	static := suggest.NewStaticGenerator()
	var gen suggest.Generator = static
	genName := static.Name()
	if cfg.GenAIAPIKey != "" {
		genai, err := suggest.NewGenAIGenerator(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("genai")
		}
		gen, genName = genai, genai.Name()
	}
	logger.Info().Str("generator", genName).Msg("suggestions enabled")

	suggester := suggest.NewService(gen,
		suggest.WithTimeout(cfg.SuggestTimeout),
		suggest.WithLogger(logger),
	)

	// the request timeout leaves room for the generator call
	srvAPI := api.NewServer(st, suggester, api.Options{
		AdminAPIKey:       cfg.AdminAPIKey,
		Logger:            logger,
		SuggestRatePerMin: cfg.SuggestRatePerMin,
		RequestTimeout:    cfg.SuggestTimeout + 10*time.Second,
		Audit:             trail,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srvAPI.Router(),
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	if err := shutdownTracing(ctxShut); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown")
	}
	logger.Info().Msg("stopped")
}
