package workers

import (
	"context"
	"log"
	"time"
)

// LeaderboardRebuilder reloads the leaderboard cache from the database.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// LeaderboardSyncWorker corrects cache drift left by failed best-effort
// updates after balance writes.
type LeaderboardSyncWorker struct {
	board    LeaderboardRebuilder
	interval time.Duration
}

func NewLeaderboardSyncWorker(board LeaderboardRebuilder, interval time.Duration) *LeaderboardSyncWorker {
	return &LeaderboardSyncWorker{board: board, interval: interval}
}

// Start runs an initial rebuild and then one per interval. It blocks until
// ctx is cancelled.
func (w *LeaderboardSyncWorker) Start(ctx context.Context) {
	log.Printf("[LEADERBOARD] 🔁 starting sync worker (every %s)", w.interval)
	w.sync(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sync(ctx)
		case <-ctx.Done():
			log.Println("[LEADERBOARD] ⏹️ sync worker stopped")
			return
		}
	}
}

func (w *LeaderboardSyncWorker) sync(ctx context.Context) {
	n, err := w.board.Rebuild(ctx)
	if err != nil {
		log.Printf("[LEADERBOARD] ❌ rebuild failed: %v", err)
		return
	}
	log.Printf("[LEADERBOARD] ✅ rebuilt cache with %d profile(s)", n)
}
