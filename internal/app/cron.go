package app

import (
	"context"
	"time"

	"github.com/traveldiary/server/internal/modules/content/diary"
	pkgcron "github.com/traveldiary/server/internal/pkg/cron"
	"go.uber.org/zap"
)

const reconcileLikesInterval = 6 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, diarySvc *diary.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "reconcile_likes",
		Description: "Recount diary likes from the like table",
		Interval:    reconcileLikesInterval,
		Fn: func(ctx context.Context) error {
			fixed, err := diarySvc.ReconcileLikes(ctx)
			if err != nil {
				return err
			}
			if fixed > 0 {
				cronLogger.Info("like counters corrected", zap.Int64("diaries", fixed))
			}
			return nil
		},
	})
}
