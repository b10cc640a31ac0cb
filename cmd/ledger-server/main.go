package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medledger/medledger/internal/config"
	"github.com/medledger/medledger/internal/domain/auditevent"
	"github.com/medledger/medledger/internal/domain/ledger"
	"github.com/medledger/medledger/internal/platform/auth"
	"github.com/medledger/medledger/internal/platform/db"
	"github.com/medledger/medledger/internal/platform/metrics"
	"github.com/medledger/medledger/internal/platform/middleware"
	"github.com/medledger/medledger/internal/platform/snapshot"
	"github.com/medledger/medledger/internal/platform/websocket"
	"github.com/medledger/medledger/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledger-server",
		Short: "Medical record ledger API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(snapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ledger API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the audit event schema in PostgreSQL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the configured snapshot store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print a summary of the last saved ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := snapshot.Open(cmd.Context(), cfg.SnapshotBackend, cfg.SnapshotPath)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("SNAPSHOT_BACKEND is none")
			}
			defer store.Close()

			st, ok, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println("No snapshot saved yet.")
				return nil
			}
			printSummary(cmd, st)
			if lv, isLevel := store.(*snapshot.LevelDB); isLevel {
				if at, ok := lv.SavedAt(); ok {
					cmd.Printf("%-14s %s\n", "saved at", at.Format(time.RFC3339))
				}
			}
			return nil
		},
	})
	return cmd
}

func printSummary(cmd *cobra.Command, st ledger.State) {
	cmd.Printf("%-14s %s\n", "admin", st.Admin)
	cmd.Printf("%-14s %d\n", "patients", len(st.Patients))
	cmd.Printf("%-14s %d\n", "doctors", len(st.Doctors))
	cmd.Printf("%-14s %d\n", "institutions", len(st.Institutions))
	cmd.Printf("%-14s %d\n", "records", st.RecordCounter)
	cmd.Printf("%-14s %d\n", "audit events", len(st.AuditEvents))
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	recorder := metrics.NewRecorder()

	stream := websocket.NewHub(logger)
	sinks := []auditevent.Sink{auditevent.NewLogSink(logger), stream}
	var pool *pgxpool.Pool
	var durable auditevent.Repository
	if cfg.AuditSink == config.AuditSinkPostgres {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to audit database")
		repo := auditevent.NewRepoPG(pool)
		sinks = append(sinks, auditevent.NewRepoSink(repo))
		durable = repo
	}

	l, err := ledger.New(cfg.LedgerAdminID,
		ledger.WithLogger(logger),
		ledger.WithObserver(recorder),
		ledger.WithSinks(sinks...),
		ledger.WithEmergencyAccessAudit(cfg.LedgerAuditEmergencyAccess),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ledger")
	}

	store, err := snapshot.Open(ctx, cfg.SnapshotBackend, cfg.SnapshotPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	if store != nil {
		defer store.Close()
		if err := restore(ctx, l, store, durable, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to restore snapshot")
		}
	}

	e := newServer(cfg, l, recorder, stream, pool, logger)

	saverCtx, stopSaver := context.WithCancel(ctx)
	defer stopSaver()
	if store != nil {
		go saveEvery(saverCtx, l, store, cfg.SnapshotInterval, logger)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("admin", l.GetAdmin()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	stopSaver()
	if store != nil {
		if err := store.Save(shutdownCtx, l.Export()); err != nil {
			logger.Error().Err(err).Msg("final snapshot failed")
		} else {
			logger.Info().Msg("final snapshot saved")
		}
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance: global middleware, unauthenticated
// health and metrics endpoints, and the authenticated /api/v1 group.
func newServer(cfg *config.Config, l *ledger.Ledger, recorder *metrics.Recorder, stream *websocket.Hub, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(recorder.Middleware())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.PrincipalHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", recorder.Handler())
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	apiV1 := e.Group("/api/v1")
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		apiV1.Use(auth.DevAuthMiddleware(l.GetAdmin))
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	ledger.NewHandler(l, logger).RegisterRoutes(apiV1)
	if stream != nil {
		websocket.NewHandler(stream, l, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)
	}
	return e
}

// restore loads the last snapshot into l. With a durable audit repository
// the snapshot must cover everything the repository holds; otherwise the
// ledger would reissue sequences and record ids already published. The
// restored trail is then replayed into the repository, which skips events
// it already stored.
func restore(ctx context.Context, l *ledger.Ledger, store snapshot.Store, repo auditevent.Repository, logger zerolog.Logger) error {
	st, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}

	if repo != nil {
		last, err := repo.LastSequence(ctx)
		if err != nil {
			return err
		}
		if snapLast := uint64(len(st.AuditEvents)); last > snapLast {
			return fmt.Errorf("audit repository holds sequence %d but the snapshot ends at %d; restore a newer snapshot", last, snapLast)
		}
	}

	if !ok {
		logger.Info().Msg("no snapshot found, starting with an empty ledger")
		return nil
	}
	if err := l.Import(st); err != nil {
		return err
	}
	logger.Info().
		Str("admin", st.Admin).
		Int("patients", len(st.Patients)).
		Uint64("records", st.RecordCounter).
		Int("audit_events", len(st.AuditEvents)).
		Msg("ledger restored from snapshot")

	if repo == nil {
		return nil
	}
	for i := range st.AuditEvents {
		if err := repo.Append(ctx, &st.AuditEvents[i]); err != nil {
			return fmt.Errorf("replay audit event %d: %w", st.AuditEvents[i].Sequence, err)
		}
	}
	return nil
}

func saveEvery(ctx context.Context, l *ledger.Ledger, store snapshot.Store, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Save(ctx, l.Export()); err != nil {
				logger.Error().Err(err).Msg("periodic snapshot failed")
				continue
			}
			logger.Debug().Msg("snapshot saved")
		}
	}
}
