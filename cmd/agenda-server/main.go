package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinsuite/agenda/internal/config"
	"github.com/clinsuite/agenda/internal/domain/agenda"
	"github.com/clinsuite/agenda/internal/domain/dashboard"
	"github.com/clinsuite/agenda/internal/domain/directory"
	"github.com/clinsuite/agenda/internal/platform/audit"
	"github.com/clinsuite/agenda/internal/platform/auth"
	"github.com/clinsuite/agenda/internal/platform/db"
	"github.com/clinsuite/agenda/internal/platform/middleware"
	"github.com/clinsuite/agenda/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agenda-server",
		Short: "Clinic scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
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
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// directoryAdapter bridges the directory service to the agenda's lookup
// contract so the two domains stay import-independent.
type directoryAdapter struct {
	svc *directory.Service
}

func (a *directoryAdapter) lookup(ctx context.Context, kind directory.EntityKind, id int64) (agenda.EntityState, error) {
	state, err := a.svc.Lookup(ctx, kind, id)
	if err != nil {
		return agenda.EntityNotFound, err
	}
	switch state {
	case directory.StateActive:
		return agenda.EntityActive, nil
	case directory.StateInactive:
		return agenda.EntityInactive, nil
	default:
		return agenda.EntityNotFound, nil
	}
}

func (a *directoryAdapter) LookupPatient(ctx context.Context, id int64) (agenda.EntityState, error) {
	return a.lookup(ctx, directory.KindPatient, id)
}

func (a *directoryAdapter) LookupProfessional(ctx context.Context, id int64) (agenda.EntityState, error) {
	return a.lookup(ctx, directory.KindProfessional, id)
}

func (a *directoryAdapter) LookupRoom(ctx context.Context, id int64) (agenda.EntityState, error) {
	return a.lookup(ctx, directory.KindRoom, id)
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("timezone", cfg.Timezone).Msg("connected to database")

	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceName: "agenda-server",
		Environment: cfg.Env,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(metrics.MetricsMiddleware())

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     "clinsuite",
			Audience:   "agenda",
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", metrics.PrometheusHandler())

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Directory domain
	directorySvc := directory.NewService(
		directory.NewPatientRepoPG(pool),
		directory.NewProfessionalRepoPG(pool),
		directory.NewRoomRepoPG(pool),
	)
	directory.NewHandler(directorySvc).RegisterRoutes(apiV1)

	// Agenda domain
	auditSink := audit.NewSink(audit.NewPGRecorder(pool), logger)
	txRunner := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithSerializableTx(ctx, pool, fn)
	}
	bookingRepo := agenda.NewBookingRepoPG(pool)
	blockRepo := agenda.NewBlockRepoPG(pool)
	agendaSvc := agenda.NewService(
		bookingRepo,
		agenda.NewHistoryRepoPG(pool),
		blockRepo,
		agenda.NewWorkingHoursRepoPG(pool),
		&directoryAdapter{svc: directorySvc},
		txRunner,
		auditSink,
		agenda.Config{
			Location:     loc,
			SlotDuration: time.Duration(cfg.SlotMinutes) * time.Minute,
			SlotStep:     time.Duration(cfg.SlotStepMinutes) * time.Minute,
		},
	)
	agenda.NewHandler(agendaSvc, metrics, loc).RegisterRoutes(apiV1)

	// Dashboard domain
	dashboardSvc := dashboard.NewService(
		bookingRepo, blockRepo,
		time.Duration(cfg.DashboardTTLSeconds)*time.Second, loc,
	)
	dashboard.NewHandler(dashboardSvc, loc).RegisterRoutes(apiV1)

	poolCtx, stopPoolStats := context.WithCancel(ctx)
	defer stopPoolStats()
	go reportPoolStats(poolCtx, pool, metrics)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}

// reportPoolStats feeds connection pool gauges every 15 seconds.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, metrics *telemetry.Provider) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			metrics.SetDBPoolActive(int64(stat.AcquiredConns()))
			metrics.SetDBPoolIdle(int64(stat.IdleConns()))
		}
	}
}
