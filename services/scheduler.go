// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRankRepairScheduler runs RepairRanks every interval. The returned
// scheduler must be shut down by the caller.
func (s *ProfileService) StartRankRepairScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			fixed, err := s.RepairRanks(context.Background())
			if err != nil {
				log.Printf("[SCHEDULER] ❌ rank repair failed after %d fixes: %v", fixed, err)
				return
			}
			if fixed > 0 {
				log.Printf("[SCHEDULER] ✅ rank repair fixed %d profile(s)", fixed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	log.Printf("[SCHEDULER] rank repair every %s", interval)
	return sched, nil
}
