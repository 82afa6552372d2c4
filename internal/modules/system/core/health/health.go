package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/pkg/cron"
	pkgredis "github.com/traveldiary/server/internal/pkg/redis"
	"github.com/traveldiary/server/internal/pkg/response"
	"gorm.io/gorm"
)

const probeTimeout = 2 * time.Second

// Info describes the running build.
type Info struct {
	Name      string
	Version   string
	Env       string
	StartedAt time.Time
}

// RegisterRoutes mounts ping, health and app info, plus job status for
// signed-in users. rc may be nil.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, rc *pkgredis.Client, sched *cron.Scheduler, info Info, authMW gin.HandlerFunc) {
	rg.GET("", func(c *gin.Context) {
		response.OK(c, gin.H{
			"name":    info.Name,
			"version": info.Version,
			"env":     info.Env,
			"uptime":  int64(time.Since(info.StartedAt).Seconds()),
			"go":      runtime.Version(),
		})
	})

	rg.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"data": "pong"})
	})

	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		dbOK := pingDB(ctx, db)
		redisStatus := "disabled"
		redisOK := true
		if rc != nil {
			redisOK = rc.Ping(ctx) == nil
			redisStatus = statusText(redisOK)
		}

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": statusText(dbOK),
			"redis":    redisStatus,
		})
	})

	jobs := rg.Group("/health/cron", authMW)
	jobs.GET("", func(c *gin.Context) {
		response.OK(c, sched.List())
	})
	jobs.POST("/run/:name", func(c *gin.Context) {
		if err := sched.Trigger(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, gin.H{"message": "job triggered"})
	})
}

func pingDB(ctx context.Context, db *gorm.DB) bool {
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func statusText(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
