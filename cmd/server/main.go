package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"intellikyc/internal/audit"
	"intellikyc/internal/institution"
	jwttoken "intellikyc/internal/jwt_token"
	"intellikyc/internal/ledger"
	"intellikyc/internal/ledger/storage"
	"intellikyc/internal/miner"
	"intellikyc/internal/platform/config"
	"intellikyc/internal/platform/httpserver"
	"intellikyc/internal/platform/logger"
	"intellikyc/internal/platform/metrics"
	platformredis "intellikyc/internal/platform/redis"
	"intellikyc/internal/proof"
	proofstore "intellikyc/internal/proof/store"
	httptransport "intellikyc/internal/transport/http"
	"intellikyc/pkg/platform/sentinel"
)

// main wires the dependencies and runs the server with its background loops.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.FromEnv()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots, err := storage.New(cfg.StoragePath, cfg.Difficulty, log)
	if err != nil {
		return fmt.Errorf("init chain storage: %w", err)
	}

	// Resume from the last saved snapshot. A corrupted snapshot is not
	// adopted; the node starts from a fresh chain and keeps the file on disk
	// for inspection.
	chain, err := snapshots.Load()
	if errors.Is(err, sentinel.ErrCorrupted) {
		log.Warn("saved chain failed verification, starting fresh", "error", err)
		chain = ledger.New(cfg.Difficulty)
	} else if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}
	m.ChainLength.Set(float64(chain.Length()))

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	}

	// The in-memory audit store always runs so the /audit endpoint works
	// without external backends; postgres and kafka are additional sinks.
	auditLog := audit.NewInMemoryStore()
	sinks := []audit.Sink{auditLog}
	if db != nil {
		pgAudit := audit.NewPostgres(db)
		if err := pgAudit.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
		sinks = append(sinks, pgAudit)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaSink.Close()
		if err := kafkaSink.EnsureTopic(ctx, 1); err != nil {
			return fmt.Errorf("ensure audit topic: %w", err)
		}
		sinks = append(sinks, kafkaSink)
	}

	inbox := make(chan audit.Event, cfg.AuditBufferSize)
	publisher := audit.NewPublisher(inbox, log)
	worker := audit.NewWorker(inbox, log, sinks...)

	proofs, closeProofStore, err := buildProofStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeProofStore()

	manager := proof.NewManager(proofs)
	issuer := proof.NewIssuer(cfg.RSAKeyBits, manager)
	institutions := institution.NewService(institution.NewInMemoryStore(), manager, publisher, log)
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:       log,
		Metrics:      m,
		Chain:        chain,
		Snapshots:    snapshots,
		Issuer:       issuer,
		Proofs:       manager,
		Institutions: institutions,
		Tokens:       tokens,
		TokenTTL:     cfg.TokenTTL,
		Publisher:    publisher,
		AuditLog:     auditLog,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr, "difficulty", cfg.Difficulty)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.AutoMine {
		autoMiner := miner.New(chain, cfg.MineInterval, m, publisher, log)
		g.Go(func() error {
			err := autoMiner.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()

	// Persist the chain on the way out so a restart resumes where we stopped.
	if saveErr := snapshots.Save(chain); saveErr != nil {
		log.Error("failed to save chain on shutdown", "error", saveErr)
	}

	return err
}

// buildProofStore picks the proof persistence backend: redis when configured,
// then postgres, falling back to process memory.
func buildProofStore(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (proof.Store, func(), error) {
	noop := func() {}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		if err := client.Health(ctx); err != nil {
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		log.Info("proof store backend selected", "backend", "redis")
		return proofstore.NewRedis(client.Client), func() { _ = client.Close() }, nil
	}

	if db != nil {
		store := proofstore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, noop, fmt.Errorf("ensure proof schema: %w", err)
		}
		log.Info("proof store backend selected", "backend", "postgres")
		return store, noop, nil
	}

	log.Info("proof store backend selected", "backend", "memory")
	return proofstore.NewMemory(), noop, nil
}
