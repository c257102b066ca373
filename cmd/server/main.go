package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lexguard/internal/conflict"
	"lexguard/internal/directory"
	"lexguard/internal/envelope"
	"lexguard/internal/guard"
	"lexguard/internal/ledger"
	"lexguard/internal/platform/config"
	"lexguard/internal/platform/httpserver"
	"lexguard/internal/platform/logger"
	"lexguard/internal/platform/metrics"
	platformredis "lexguard/internal/platform/redis"
	"lexguard/internal/session"
	httptransport "lexguard/internal/transport/http"
)

// devKeyring keeps local runs self-contained. Production deployments set
// LEXGUARD_KEYRING; sealing anything real with this value is a configuration
// error.
const devKeyring = "v1:ZGV2LW9ubHktbWFzdGVyLXNlY3JldC0zMi1ieXRlcyE"

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	keyringSpec := cfg.KeyringSecrets
	if keyringSpec == "" {
		log.Warn("LEXGUARD_KEYRING not set, using development keyring")
		keyringSpec = devKeyring
	}
	keyring, err := envelope.ParseKeyring(keyringSpec)
	if err != nil {
		log.Error("invalid keyring configuration", "error", err)
		os.Exit(1)
	}
	env := envelope.New(keyring)

	// Ledger store: postgres when configured, in-memory otherwise.
	var (
		ledgerStore ledger.Store
		auditDB     *sql.DB
	)
	if cfg.PostgresURL != "" {
		auditDB, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()
		pgStore := ledger.NewPostgresStore(auditDB)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("migrate audit store", "error", err)
			os.Exit(1)
		}
		ledgerStore = pgStore
	} else {
		ledgerStore = ledger.NewInMemoryStore()
	}

	ledgerOpts := []ledger.Option{
		ledger.WithMetrics(m),
		ledger.WithTimeout(cfg.StoreTimeout),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := ledger.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka mirror", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(publisher))
	}
	auditLedger, err := ledger.New(ctx, ledgerStore, log, ledgerOpts...)
	if err != nil {
		log.Error("open audit ledger", "error", err)
		os.Exit(1)
	}

	// Session store: redis when configured, in-memory otherwise.
	var sessionStore session.Store
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient.Client)
	} else {
		sessionStore = session.NewInMemoryStore()
	}

	// Record and conflict stores share one pgx pool when postgres is
	// configured.
	var (
		recordStore   guard.RecordStore
		conflictStore conflict.Store
		pool          *pgxpool.Pool
	)
	if cfg.PostgresURL != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("open pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgRecords := guard.NewPostgresStore(pool)
		if err := pgRecords.Migrate(ctx); err != nil {
			log.Error("migrate record store", "error", err)
			os.Exit(1)
		}
		recordStore = pgRecords
		pgConflicts := conflict.NewPostgresStore(pool)
		if err := pgConflicts.Migrate(ctx); err != nil {
			log.Error("migrate conflict store", "error", err)
			os.Exit(1)
		}
		conflictStore = pgConflicts
	} else {
		recordStore = guard.NewInMemoryStore()
		conflictStore = conflict.NewInMemoryStore()
	}

	// Directory shares the pgx pool so attorneys, clients, and relationships
	// survive restarts together with the communications referencing them.
	var (
		attorneys     directory.AttorneyStore
		clients       directory.ClientStore
		relationships directory.RelationshipStore
	)
	if pool != nil {
		pgDir := directory.NewPostgresStore(pool)
		if err := pgDir.Migrate(ctx); err != nil {
			log.Error("migrate directory store", "error", err)
			os.Exit(1)
		}
		attorneys, clients, relationships = pgDir, pgDir.Clients(), pgDir.Relationships()
	} else {
		memDir := directory.NewInMemoryStore()
		attorneys, clients, relationships = memDir, memDir.Clients(), memDir.Relationships()
	}

	tokens := session.NewTokenService(cfg.TokenSigningKey, "lexguard")
	sessions := session.NewService(attorneys, relationships, sessionStore, tokens,
		auditLedger, log, m, cfg.SessionTTL)
	conflicts := conflict.NewService(conflict.NewAdversePartyScreener(relationships),
		conflictStore, auditLedger, log, m)
	guardSvc := guard.NewService(sessions, conflicts, env, recordStore, auditLedger, log,
		guard.WithMetrics(m), guard.WithTimeout(cfg.StoreTimeout))

	health := func(ctx context.Context) error {
		if err := env.SelfTest(); err != nil {
			return err
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		if auditDB != nil {
			if err := auditDB.PingContext(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	handler := httptransport.NewHandler(log, sessions, guardSvc, conflicts, auditLedger,
		attorneys, clients, relationships, health)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler),
		cfg.ReadHeaderTimeout, cfg.IdleTimeout)

	sweeper := session.NewSweeper(sessionStore, log, cfg.SweepInterval)
	go sweeper.Run(ctx)

	go func() {
		log.Info("starting lexguard", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("lexguard stopped")
}
