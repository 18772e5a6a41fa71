package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/yigit/unilife/internal/app/controllers"
	appMigrations "github.com/yigit/unilife/internal/app/migrations"
	appRepos "github.com/yigit/unilife/internal/app/repositories"
	appRoutes "github.com/yigit/unilife/internal/app/routes"
	appServices "github.com/yigit/unilife/internal/app/services"
	"github.com/yigit/unilife/internal/config"
	"github.com/yigit/unilife/internal/db"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/gateway/memstore"
	"github.com/yigit/unilife/internal/gateway/pgstore"
	"github.com/yigit/unilife/internal/gateway/sqlitestore"
	"github.com/yigit/unilife/internal/livesync"
	appMiddleware "github.com/yigit/unilife/internal/middleware"
	"github.com/yigit/unilife/internal/pkg/assistant"
	pkgAuth "github.com/yigit/unilife/internal/pkg/auth"
	"github.com/yigit/unilife/internal/pkg/helpers"
	"github.com/yigit/unilife/internal/pkg/logger"
	"github.com/yigit/unilife/internal/pkg/metrics"
	"github.com/yigit/unilife/internal/pkg/prefs"
	"github.com/yigit/unilife/internal/pkg/websocket"
	"github.com/yigit/unilife/internal/seed"
	"github.com/yigit/unilife/internal/session"
)

// DefaultConfigPath is read when no other path is given
const DefaultConfigPath = "configs/config.yaml"

// Backend is the document store together with what it owns
type Backend struct {
	Store gateway.DocumentStore
	// Database is set for the postgres driver only
	Database *db.PostgresDB
}

// Close releases the store, then the database it runs on.
func (b *Backend) Close() error {
	err := b.Store.Close()
	if b.Database != nil {
		b.Database.Close()
	}
	return err
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Backend        *Backend
	Metrics        *metrics.Metrics
	JWTService     *pkgAuth.JWTService
	AuthProvider   *pkgAuth.TokenProvider
	Session        *session.Store
	Syncer         *livesync.Syncer
	Unfollow       func()
	Assistant      *assistant.Assistant
	Prefs          *prefs.Store
	Repos          *appRepos.Repositories
	Services       *appServices.Services
	Hub            *websocket.Hub
	MessageHandler *websocket.MessageHandler
	Controllers    appRoutes.Controllers
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// ConnectPostgres opens the pool and applies pending migrations.
func ConnectPostgres(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg, lgr)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	if err := appMigrations.NewMigrator(database.Pool, lgr).Migrate(ctx); err != nil {
		database.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")
	return database, nil
}

// SetupBackend opens the document store the config selects and seeds it.
func SetupBackend(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*Backend, error) {
	backend := &Backend{}

	switch cfg.Backend.Driver {
	case config.DriverPostgres:
		database, err := ConnectPostgres(ctx, cfg, lgr)
		if err != nil {
			return nil, err
		}
		reconnect := helpers.ParseDuration(cfg.Backend.ListenReconnect, 2*time.Second)
		backend.Database = database
		backend.Store = pgstore.New(database, reconnect, lgr)

	case config.DriverSQLite:
		store, err := sqlitestore.New(cfg.Backend.SQLitePath, lgr)
		if err != nil {
			lgr.Error().Err(err).Str("path", cfg.Backend.SQLitePath).Msg("Failed to open sqlite store")
			return nil, err
		}
		backend.Store = store

	default:
		backend.Store = memstore.New(lgr)
	}
	lgr.Info().Str("driver", cfg.Backend.Driver).Msg("Document store ready")

	if cfg.Backend.Seed {
		if err := seed.CreateDefaultData(ctx, backend.Store, lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create demo data, proceeding anyway...")
		}
	}
	return backend, nil
}

// NewJWTService builds the token verifier from the auth config section.
func NewJWTService(cfg *config.Config) *pkgAuth.JWTService {
	return pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.Auth.Secret,
		TokenIssuer: cfg.Auth.Issuer,
		TokenTTL:    helpers.ParseDuration(cfg.Auth.TokenTTL, time.Hour),
	})
}

// NewAssistant builds the study assistant. Without an API key it runs
// disabled.
func NewAssistant(ctx context.Context, cfg *config.Config, m *metrics.Metrics, lgr zerolog.Logger) *assistant.Assistant {
	var gen assistant.Generator
	if cfg.Assistant.APIKey != "" {
		gemini, err := assistant.NewGeminiGenerator(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to create Gemini client, assistant disabled")
		} else {
			gen = gemini
		}
	} else {
		lgr.Warn().Msg("No assistant API key configured, assistant disabled")
	}

	return assistant.New(ctx, gen, assistant.Config{
		Timeout:  helpers.ParseDuration(cfg.Assistant.Timeout, 20*time.Second),
		CacheTTL: helpers.ParseDuration(cfg.Assistant.CacheTTL, 30*time.Minute),
	}, m, lgr.With().Str("component", "assistant").Logger())
}

// BuildDependencies wires session, live caches, services and controllers
// over backend. Background work stops when ctx is done.
func BuildDependencies(ctx context.Context, cfg *config.Config, backend *Backend, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Backend: backend, Logger: lgr}

	preferences, err := prefs.Open(cfg.Preferences.Path)
	if err != nil {
		lgr.Error().Err(err).Str("path", cfg.Preferences.Path).Msg("Failed to read preferences")
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	deps.Prefs = preferences
	lgr.Info().Str("theme", string(preferences.Theme())).Msg("Preferences loaded")

	deps.Metrics = metrics.New()
	deps.Repos = appRepos.NewRepositories(backend.Store)

	deps.JWTService = NewJWTService(cfg)
	deps.AuthProvider = pkgAuth.NewTokenProvider(deps.JWTService, logger.Component(lgr, "auth"))

	deps.Session = session.NewStore(deps.AuthProvider, deps.Repos.UserRepository, session.Config{
		AllowedEmailDomain: cfg.Auth.AllowedEmailDomain,
	}, logger.Component(lgr, "session"))
	deps.Session.Start()

	deps.Syncer = livesync.NewSyncer(backend.Store, deps.Metrics, logger.Component(lgr, "livesync"))
	deps.Unfollow = deps.Syncer.Follow(deps.Session)

	deps.Assistant = NewAssistant(ctx, cfg, deps.Metrics, lgr)

	deps.Services = appServices.NewServices(deps.Repos, deps.Session, deps.Syncer, deps.Assistant, deps.Metrics, lgr)

	deps.Hub = websocket.NewHub(deps.Metrics, logger.Component(lgr, "live"))
	deps.MessageHandler = websocket.NewMessageHandler(deps.Hub, deps.Syncer, deps.Session,
		deps.Services.CircleService, logger.Component(lgr, "live"))
	deps.MessageHandler.Start(ctx)
	go deps.Hub.Run(ctx)

	deps.Controllers = appRoutes.Controllers{
		Session:    appControllers.NewSessionController(deps.Session, deps.Syncer, lgr),
		User:       appControllers.NewUserController(deps.Syncer, deps.Services.ProfileService, lgr),
		Circle:     appControllers.NewCircleController(deps.Syncer, deps.Services.CircleService, lgr),
		Content:    appControllers.NewContentController(deps.Syncer, deps.Services.NoteService, deps.Services.RequestService, lgr),
		Assistant:  appControllers.NewAssistantController(deps.Services.AssistantService),
		Preference: appControllers.NewPreferenceController(deps.Prefs, lgr),
		Live:       websocket.NewHandler(ctx, deps.Hub, logger.Component(lgr, "live")),
	}

	return deps, nil
}

// Teardown stops the session flow before the caches, then closes the
// backend. Safe to call once.
func (d *Dependencies) Teardown() error {
	d.Unfollow()
	d.Syncer.Stop()
	d.Session.Stop()
	return d.Backend.Close()
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger(logger.Component(lgr, "http")))
	router.Use(appMiddleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	appRoutes.SetupRouter(router, deps.Controllers, deps.Session, deps.Syncer, deps.Metrics.Handler())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
