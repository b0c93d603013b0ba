package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	achandler "sbt-registry/internal/accesscontrol/handler"
	acservice "sbt-registry/internal/accesscontrol/service"
	acstore "sbt-registry/internal/accesscontrol/store"
	credhandler "sbt-registry/internal/credential/handler"
	credservice "sbt-registry/internal/credential/service"
	credstore "sbt-registry/internal/credential/store"
	credcache "sbt-registry/internal/credential/store/cache"
	"sbt-registry/internal/events"
	jwttoken "sbt-registry/internal/jwt_token"
	"sbt-registry/internal/platform/config"
	"sbt-registry/internal/platform/database"
	"sbt-registry/internal/platform/httpserver"
	"sbt-registry/internal/platform/kafka/producer"
	"sbt-registry/internal/platform/logger"
	"sbt-registry/internal/platform/metrics"
	platformredis "sbt-registry/internal/platform/redis"
	httptransport "sbt-registry/internal/transport/http"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
)

// healthFunc adapts a plain function to the health prober interface.
type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the context services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	log.Info("initializing sbt-registry",
		"addr", cfg.Addr,
		"postgres", cfg.Postgres.DSN != "",
		"redis", cfg.Redis.URL != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	ctx := context.Background()
	health := httptransport.NewHealthHandler(log)

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		credentials credstore.Store
		roles       acstore.Store
	)
	db, err := database.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		credentials = credstore.NewPostgres(db)
		roles = acstore.NewPostgres(db)
		health.AddProbe("postgres", healthFunc(func(ctx context.Context) error {
			return database.Health(ctx, db)
		}))
	} else {
		credentials = credstore.NewInMemory()
		roles = acstore.NewInMemory()
	}

	// Lifecycle events: Kafka when configured, in-process sink otherwise.
	var publisher events.Publisher = events.NewMemorySink()
	if len(cfg.Kafka.Brokers) > 0 {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = strings.Join(cfg.Kafka.Brokers, ",")
		kafkaProducer, err := producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		publisher = events.NewKafkaPublisher(kafkaProducer, cfg.Kafka.Topic, log)
	}

	accessController := acservice.NewService(roles,
		acservice.WithLogger(log),
		acservice.WithMetrics(m),
	)

	credentialOpts := []credservice.Option{
		credservice.WithLogger(log),
		credservice.WithMetrics(m),
	}

	// Optional Redis read cache in front of the credential store.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache := credcache.New(redisClient.Client, credentials, config.CredentialCacheTTL, log)
		credentialOpts = append(credentialOpts, credservice.WithCache(cache, cache))
		health.AddProbe("redis", redisClient)
	}

	registry := credservice.NewService(credentials, accessController, publisher, credentialOpts...)

	if err := bootstrapRoles(ctx, cfg, accessController, log); err != nil {
		log.Error("role bootstrap failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "sbt-registry", "sbt-registry")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httptransport.NewRouter(
		credhandler.New(registry, log, m, jwtValidator),
		achandler.New(accessController, log, m, jwtValidator),
		health,
		log,
	)

	srv := httpserver.New(cfg.Addr, router, cfg.HTTP)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// bootstrapRoles seeds the first admin and issuer on an empty registry.
// A rerun against an already-populated registry is a no-op.
func bootstrapRoles(ctx context.Context, cfg config.Server, ac *acservice.Service, log *slog.Logger) error {
	if cfg.BootstrapAdmin == "" && cfg.BootstrapIssuer == "" {
		return nil
	}

	admin, err := id.ParseIdentity(cfg.BootstrapAdmin)
	if err != nil {
		return err
	}
	issuer, err := id.ParseIdentity(cfg.BootstrapIssuer)
	if err != nil {
		return err
	}

	if err := ac.Bootstrap(ctx, admin, issuer); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			log.Info("roles already bootstrapped, skipping")
			return nil
		}
		return err
	}

	log.Info("roles bootstrapped", "admin", admin.String(), "issuer", issuer.String())
	return nil
}
