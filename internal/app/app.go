package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/config"
	"github.com/traveldiary/server/internal/database"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/modules/content/diary"
	"github.com/traveldiary/server/internal/modules/gateway/gateway"
	"github.com/traveldiary/server/internal/modules/processing/weather"
	pkgcron "github.com/traveldiary/server/internal/pkg/cron"
	pkgredis "github.com/traveldiary/server/internal/pkg/redis"
	"github.com/traveldiary/server/internal/pkg/validate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Name and Version are reported by the info route. Version is set at build time.
var (
	Name    = "traveldiary"
	Version = "dev"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	rc      *pkgredis.Client
	hub     *gateway.Hub
	sched   *pkgcron.Scheduler
	logger  *zap.Logger
	cancel  context.CancelFunc
	started time.Time

	diarySvc   *diary.Service
	weatherSvc *weather.Service
}

// New initializes the application: settings → DB → Redis → gateway → jobs → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}
	validate.Register()

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("redis: %w", err)
	}

	return build(logger, cfg, db, rc), nil
}

// build assembles the router around already-open connections.
func build(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client) *App {
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())

	hub := gateway.NewHub(rc, logger.Named("Gateway"), middleware.ValidateToken)
	go hub.Run(ctx)

	a := &App{
		cfg:     cfg,
		router:  router,
		db:      db,
		rc:      rc,
		hub:     hub,
		sched:   pkgcron.New(logger),
		logger:  logger,
		cancel:  cancel,
		started: time.Now(),
	}
	a.weatherSvc = weather.NewService(weather.NewMockProvider(), rc, cfg.Weather.CacheTTL, logger.Named("Weather"))
	var snapshots diary.WeatherSnapshotter
	if cfg.Weather.AutoSnapshot {
		snapshots = a.weatherSvc
	}
	a.diarySvc = diary.NewService(db, snapshots, hub, logger.Named("Diary"))

	a.registerRoutes(ctx)
	registerCronJobs(a.sched, a.diarySvc, a.logger)
	go a.sched.Start(ctx)
	return a
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool { return originAllowed(patterns, origin) }
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// originAllowed matches the origin's host[:port] against exact hosts,
// "*.domain" suffixes and "host:*" any-port patterns.
func originAllowed(patterns []string, origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, p := range patterns {
		switch {
		case p == host:
			return true
		case strings.HasPrefix(p, "*.") && strings.HasSuffix(host, p[1:]):
			return true
		case strings.HasSuffix(p, ":*") && strings.HasPrefix(host, strings.TrimSuffix(p, "*")):
			return true
		}
	}
	return false
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and closes connections.
func (a *App) Shutdown() {
	a.cancel()
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
}
