package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/modules/auth/auth"
	"github.com/traveldiary/server/internal/modules/auth/user"
	"github.com/traveldiary/server/internal/modules/content/diary"
	"github.com/traveldiary/server/internal/modules/gateway/gateway"
	"github.com/traveldiary/server/internal/modules/processing/weather"
	"github.com/traveldiary/server/internal/modules/storage/upload"
	"github.com/traveldiary/server/internal/modules/system/core/health"
	"github.com/traveldiary/server/internal/pkg/response"
	"go.uber.org/zap"
)

func (a *App) registerRoutes(ctx context.Context) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.RateLimit(a.rc.Raw(), a.cfg.RateLimit.Max, a.cfg.RateLimit.Window, a.logger))
	authMW := middleware.Auth()

	health.RegisterRoutes(api, a.db, a.rc, a.sched, health.Info{
		Name:      Name,
		Version:   Version,
		Env:       a.cfg.Env,
		StartedAt: a.started,
	}, authMW)

	auth.NewHandler(auth.NewService(a.db, a.cfg.JWTTTL), !a.cfg.IsDev()).RegisterRoutes(api, authMW)
	user.NewHandler(user.NewService(a.db)).RegisterRoutes(api, authMW)

	rdb := a.rc.Raw()
	diary.NewHandler(a.diarySvc).
		WithGuard(func(ttl time.Duration, keyedOnly bool) gin.HandlerFunc {
			if keyedOnly {
				return middleware.IdempotenceKeyed(rdb, ttl)
			}
			return middleware.Idempotence(rdb, ttl)
		}).
		RegisterRoutes(api, authMW)

	weather.NewHandler(a.weatherSvc).RegisterRoutes(api)

	upload.NewHandler(a.uploadService(ctx)).RegisterRoutes(api, authMW)

	gateway.RegisterRoutes(r, api, a.hub)
}

// uploadService returns nil when object storage is not configured; the
// presign route then answers 503.
func (a *App) uploadService(ctx context.Context) *upload.Service {
	s3cfg := a.cfg.Storage.S3
	if !s3cfg.Enabled() {
		a.logger.Info("object storage not configured, uploads disabled")
		return nil
	}
	presigner, err := upload.NewS3Presigner(ctx, s3cfg)
	if err != nil {
		a.logger.Warn("object storage unavailable, uploads disabled", zap.Error(err))
		return nil
	}
	return upload.NewService(presigner, s3cfg)
}
