package workers

import (
	"context"
	"log"
	"time"
)

// AwardRetrier applies winner bonuses left pending by a failed second step.
type AwardRetrier interface {
	RetryPendingAwards(ctx context.Context, limit int) (applied, failed int, err error)
}

const awardRetryBatch = 50

// PollPendingAwards retries pending winner bonuses every interval until ctx
// is cancelled.
func PollPendingAwards(ctx context.Context, retrier AwardRetrier, interval time.Duration) {
	log.Printf("[AWARD_RETRY] 🔁 polling pending awards every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AWARD_RETRY] ⏹️ stopped")
			return
		case <-ticker.C:
			retryPendingAwards(ctx, retrier)
		}
	}
}

func retryPendingAwards(ctx context.Context, retrier AwardRetrier) {
	applied, failed, err := retrier.RetryPendingAwards(ctx, awardRetryBatch)
	if err != nil {
		log.Printf("[AWARD_RETRY] ❌ poll failed: %v", err)
		return
	}
	if applied > 0 || failed > 0 {
		log.Printf("[AWARD_RETRY] ✅ applied=%d failed=%d", applied, failed)
	}
}
