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
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/admin"
	"github.com/clinicore/clinicore/internal/domain/billing"
	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/domain/patient"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
	"github.com/clinicore/clinicore/internal/domain/treatment"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/cache"
	"github.com/clinicore/clinicore/internal/platform/db"
	transport "github.com/clinicore/clinicore/internal/platform/messaging"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/reminders"
)

const migrationsDir = "./migrations"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(orgCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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
			schema, _ := cmd.Flags().GetString("schema")
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
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	upCmd.Flags().String("dir", migrationsDir, "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
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
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	statusCmd.Flags().String("schema", "org_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", migrationsDir, "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization with its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, _ := cmd.Flags().GetString("slug")
			name, _ := cmd.Flags().GetString("name")
			if slug == "" || name == "" {
				return fmt.Errorf("--slug and --name are required")
			}

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

			svc := admin.NewService(
				admin.NewOrgRepoPG(pool),
				admin.NewUserRepoPG(pool),
				admin.NewMembershipRepoPG(pool),
				admin.NewVariableRepoPG(pool),
				&schemaProvisioner{pool: pool, dir: migrationsDir},
				jwtConfig(cfg),
			)
			o := &admin.Organization{Slug: slug, Name: name}
			if err := svc.CreateOrganization(ctx, o); err != nil {
				return err
			}
			fmt.Printf("Organization %s created with schema org_%s.\n", o.ID, o.Slug)
			return nil
		},
	}
	createCmd.Flags().String("slug", "", "Organization slug (lowercase, schema-safe)")
	createCmd.Flags().String("name", "", "Organization display name")

	cmd.AddCommand(createCmd)
	return cmd
}

// schemaProvisioner adapts the migrator-backed schema creation to the admin
// service.
type schemaProvisioner struct {
	pool *pgxpool.Pool
	dir  string
}

func (p *schemaProvisioner) CreateOrgSchema(ctx context.Context, slug string) error {
	return db.CreateOrgSchema(ctx, p.pool, slug, p.dir)
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
		TTL:        cfg.TokenTTL(),
	}
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

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Catalog cache falls back to the in-process store when Redis is not
	// configured or unreachable.
	var catalogCache cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory catalog cache")
		} else {
			catalogCache = redisCache
			defer redisCache.Close()
			logger.Info().Msg("connected to redis")
		}
	}

	// Outbound messaging
	var sender transport.Sender
	if cfg.MessageGateway != "" && cfg.MessageToken != "" {
		wa, err := transport.NewWhatsAppSender(cfg.MessageGateway, cfg.MessageToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure message gateway")
		}
		sender = wa
	} else {
		logger.Warn().Msg("message gateway not configured, outbound messages are recorded but not delivered")
		sender = &transport.MockSender{}
	}
	templates := transport.NewTemplateEngine()

	// Repositories
	orgRepo := admin.NewOrgRepoPG(pool)
	userRepo := admin.NewUserRepoPG(pool)
	membershipRepo := admin.NewMembershipRepoPG(pool)
	variableRepo := admin.NewVariableRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	historyRepo := patient.NewHistoryRepoPG(pool)
	attachmentRepo := patient.NewAttachmentRepoPG(pool)
	appointmentRepo := scheduling.NewRepoPG(pool)
	categoryRepo := treatment.NewCategoryRepoPG(pool)
	typeRepo := treatment.NewTypeRepoPG(pool)
	treatmentRepo := treatment.NewTreatmentRepoPG(pool)
	paymentRepo := billing.NewPaymentRepoPG(pool)
	expenseRepo := billing.NewExpenseRepoPG(pool)
	messageRepo := messaging.NewRepoPG(pool)

	// Services
	adminSvc := admin.NewService(orgRepo, userRepo, membershipRepo, variableRepo,
		&schemaProvisioner{pool: pool, dir: migrationsDir}, jwtConfig(cfg))
	patientSvc := patient.NewService(patientRepo, historyRepo, attachmentRepo)
	schedulingSvc := scheduling.NewService(appointmentRepo)
	treatmentSvc := treatment.NewService(categoryRepo, typeRepo, treatmentRepo, catalogCache)
	messagingSvc := messaging.NewService(messageRepo, patientRepo, adminSvc, sender, templates)
	billingSvc := billing.NewService(paymentRepo, expenseRepo, treatmentRepo, messagingSvc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Org-ID"},
	}))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// Public auth endpoints sit outside the JWT middleware.
	adminHandler := admin.NewHandler(adminSvc)
	public := e.Group("/api/v1")
	adminHandler.RegisterAuthRoutes(public)

	// Authenticated API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.JWTSecret == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}
	apiV1.Use(db.OrgMiddleware(pool, cfg.DefaultOrg))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	adminHandler.RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	messaging.NewHandler(messagingSvc).RegisterRoutes(apiV1)

	// Reminder worker
	worker := reminders.NewWorker(pool, orgRepo, schedulingSvc, userRepo, messagingSvc,
		reminders.Config{
			Interval: cfg.ReminderIntervalDuration(),
			Lead:     cfg.ReminderLeadDuration(),
		}, logger)
	if err := worker.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start reminder worker")
	}
	defer worker.Stop()

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
