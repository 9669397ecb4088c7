// Package main is the entry point of the Vidya progress hub service.
//
// The service ingests learning activity events and turns them into durable
// progress entries, derived statistics, badges, daily challenges, and a
// leaderboard. The layout follows Clean Architecture and DDD:
//   - Domain: pure business logic without external dependencies
//   - Application: use case orchestration (Commands/Queries/Sagas)
//   - Infrastructure: repositories, caching, messaging
//   - Interface: REST API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vidya-hub/vidya-progress-hub/config"

	// Application layer
	"github.com/vidya-hub/vidya-progress-hub/internal/application/command"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/event"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/query"
	"github.com/vidya-hub/vidya-progress-hub/internal/application/saga"

	// Domain layer
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/challenge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/content"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/leaderboard"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/messaging"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/memory"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/persistence/redis"
	"github.com/vidya-hub/vidya-progress-hub/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/vidya-hub/vidya-progress-hub/internal/interface/http"

	// Packages
	"github.com/vidya-hub/vidya-progress-hub/pkg/keymutex"
	"github.com/vidya-hub/vidya-progress-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// repositories groups the four persistence interfaces the service needs,
// regardless of which backing store provides them.
type repositories struct {
	learners   learner.Repository
	progress   learner.ProgressRepository
	badges     badge.EarnedRepository
	challenges challenge.Repository
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting vidya progress hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE (PostgreSQL, or in-memory when no DATABASE_URL)
	// ─────────────────────────────────────────────────────────────────────────
	var repos repositories
	var dbConn *postgres.Connection

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		pgConfig := postgres.DefaultConfig()
		pgConfig.URL = cfg.Database.URL
		pgConfig.MaxConns = cfg.Database.MaxConns
		pgConfig.MinConns = cfg.Database.MinConns
		pgConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		pgConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
		pgConfig.ConnectTimeout = cfg.Database.ConnectTimeout

		dbConn, err = postgres.NewConnection(ctx, pgConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			log.Info("running database migrations...")
			migrator := postgres.NewMigrator(dbConn)
			if err := migrator.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations completed")
		}

		repos = repositories{
			learners:   postgres.NewLearnerRepository(dbConn),
			progress:   postgres.NewProgressRepository(dbConn),
			badges:     postgres.NewEarnedBadgeRepository(dbConn),
			challenges: postgres.NewChallengeRepository(dbConn),
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.NewStore()
		repos = repositories{
			learners:   store.Learners(),
			progress:   store.Progress(),
			badges:     store.Badges(),
			challenges: store.Challenges(),
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional leaderboard cache and event fan-out)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redisinfra.Cache
	var boardCache leaderboard.Cache

	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...", logger.String("addr", cfg.Redis.Addr()))
		redisCfg := redisinfra.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err = redisinfra.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			boardCache = redisinfra.NewBoardCache(redisCache, cfg.Redis.LeaderboardTTL, log)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		eventBus = memBus
		closeBus = memBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. CONTENT CATALOG
	// ─────────────────────────────────────────────────────────────────────────
	catalog, err := loadCatalog(log)
	if err != nil {
		return fmt.Errorf("failed to load content catalog: %w", err)
	}
	log.Info("content catalog loaded", logger.Int("entries", catalog.Len()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER (Commands, Queries, Saga)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	pairLocks := keymutex.New()
	learnerLocks := keymutex.New()

	flow := saga.NewGamificationFlow(
		repos.learners,
		repos.progress,
		repos.badges,
		repos.challenges,
		eventBus,
		boardCache,
		learnerLocks,
		log,
		saga.GamificationFlowConfig{
			BadgesEnabled:     cfg.Gamification.BadgesEnabled,
			ChallengesEnabled: cfg.Gamification.ChallengesEnabled,
		},
	)

	applyHandler := command.NewApplyProgressHandler(
		repos.learners,
		repos.progress,
		catalog,
		pairLocks,
		eventBus,
		flow,
		log,
		command.DefaultApplyProgressHandlerConfig(),
	)

	registerHandler := command.NewRegisterLearnerHandler(repos.learners, eventBus, log)

	aiTracker := command.NewAIGenerationTracker(
		applyHandler,
		repos.learners,
		learnerLocks,
		eventBus,
		log,
		cfg.Gamification.FollowUpQueueSize,
	)
	defer func() {
		log.Info("draining AI tracker queue...")
		aiTracker.Close()
	}()

	progressQuery := query.NewGetProgressHandler(repos.learners, repos.progress, learnerLocks)
	leaderboardQuery := query.NewGetLeaderboardHandler(repos.learners, repos.badges, boardCache, log)
	challengeQuery := query.NewGetDailyChallengeHandler(repos.learners, repos.challenges, learnerLocks)
	badgesQuery := query.NewGetBadgesHandler(repos.learners, repos.badges)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. NOTIFICATION DISPATCH
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering notification service...")
	dispatcher := service.NewLogDispatcher(log)
	notifications := service.NewNotificationService(dispatcher, log)
	if err := notifications.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register notification service: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins

	httpDeps := httpserver.Dependencies{
		Normalizer:               event.NewNormalizer(),
		ApplyProgressHandler:     applyHandler,
		RegisterLearnerHandler:   registerHandler,
		AITracker:                aiTracker,
		GetProgressHandler:       progressQuery,
		GetLeaderboardHandler:    leaderboardQuery,
		GetDailyChallengeHandler: challengeQuery,
		GetBadgesHandler:         badgesQuery,
		Logger:                   log,
	}
	if dbConn != nil {
		httpDeps.HealthChecker = &storeHealthChecker{db: dbConn, redis: redisCache}
	}

	server := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. STARTUP & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("vidya progress hub is running", logger.String("http_address", server.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// AI tracker, event bus, Redis, and the database close through defers.

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// storeHealthChecker reports database and cache liveness for /health.
type storeHealthChecker struct {
	db    *postgres.Connection
	redis *redisinfra.Cache
}

func (h *storeHealthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{Healthy: true, Checks: map[string]string{}}

	dbHealth := h.db.Health(ctx)
	if dbHealth.Healthy {
		status.Checks["postgres"] = fmt.Sprintf("ok (%d/%d conns, ping %s)",
			dbHealth.AcquiredConns, dbHealth.MaxConns, dbHealth.PingLatency)
	} else {
		status.Healthy = false
		status.Checks["postgres"] = dbHealth.Error
		status.Message = "database unreachable"
	}

	// The cache is optional; a dead Redis degrades but does not fail health.
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}

// setupLogger builds the process logger from observability settings.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// catalogEntry is one row of the catalog seed file.
type catalogEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	XPReward int    `json:"xp_reward"`
}

// loadCatalog builds the content catalog. When CONTENT_CATALOG_PATH points
// to a JSON seed file it is loaded from there; otherwise a small default
// catalog is used so the service is usable out of the box.
func loadCatalog(log *logger.Logger) (*content.StaticCatalog, error) {
	path := os.Getenv("CONTENT_CATALOG_PATH")
	if path == "" {
		return defaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}

	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}

	catalog := content.NewStaticCatalog()
	for _, e := range entries {
		cat := content.Category(e.Category)
		if !cat.IsValid() {
			log.Warn("skipping catalog entry with unknown category",
				logger.String("content_id", e.ID),
				logger.String("category", e.Category))
			continue
		}
		catalog.Add(content.Descriptor{
			ID:       e.ID,
			Title:    e.Title,
			Category: cat,
			XPReward: e.XPReward,
		})
	}

	return catalog, nil
}

// defaultCatalog seeds a minimal catalog for development setups.
func defaultCatalog() *content.StaticCatalog {
	return content.NewStaticCatalog(
		content.Descriptor{ID: "course-algebra-basics", Title: "Algebra Basics", Category: content.CategoryAcademic, XPReward: 20},
		content.Descriptor{ID: "course-physics-motion", Title: "Laws of Motion", Category: content.CategoryAcademic, XPReward: 20},
		content.Descriptor{ID: "quiz-algebra-basics", Title: "Algebra Basics Quiz", Category: content.CategoryAcademic, XPReward: 15},
		content.Descriptor{ID: "course-public-speaking", Title: "Public Speaking 101", Category: content.CategorySoftSkills, XPReward: 15},
		content.Descriptor{ID: "course-career-paths", Title: "Exploring Career Paths", Category: content.CategoryCareerGuidance, XPReward: 10},
		content.Descriptor{ID: "digest-weekly-news", Title: "Weekly News Digest", Category: content.CategoryCurrentAffairs, XPReward: 5},
	)
}
