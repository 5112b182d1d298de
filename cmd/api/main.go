package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/api"
	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/config"
	"github.com/punchamoorthee/rentalops/internal/events"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/logging"
	"github.com/punchamoorthee/rentalops/internal/port"
	"github.com/punchamoorthee/rentalops/internal/service"
	"github.com/punchamoorthee/rentalops/internal/store"
	"github.com/punchamoorthee/rentalops/internal/store/memory"
	"github.com/punchamoorthee/rentalops/internal/tracing"
)

const serviceName = "rentalops-api"

type rentalStore interface {
	port.Transactor
	port.CatalogStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.New(serviceName, cfg.LogLevel, cfg.Env)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracerProvider(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to initialize tracing")
	}

	var st rentalStore
	switch cfg.StoreDriver {
	case config.DriverMemory:
		st = memory.NewStore()
		log.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		pg, err := store.NewStore(ctx, cfg.DBSource, cfg.TxTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to database")
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("unable to migrate database")
		}
		st = pg
	}

	var publisher port.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	var idem api.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("unable to reach redis")
		}
		idem = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	handler := api.NewHandler(
		service.NewRentalService(st, publisher),
		service.NewCatalogService(st, tokens),
		tokens,
		idem,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown failed")
	}
}
