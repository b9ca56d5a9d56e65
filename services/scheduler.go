// services/scheduler.go
package services

import (
	"log"
	"time"

	"miniapp-game-backend/models"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler sweeps stale pending drafts into the terminal
// expired state. Expired drafts reject confirmation the same way used ones
// do, which bounds how long an abandoned reference stays replayable.
func (s *PurchaseService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 10 minutes: expire pending drafts past the TTL
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			expired, err := s.ExpireStaleDrafts()
			if err != nil {
				log.Printf("[Scheduler] Draft expiry sweep failed: %v", err)
				return
			}
			if expired > 0 {
				log.Printf("✅ [Scheduler] Expired %d stale draft(s)", expired)
			}
		}),
	)
}

// ExpireStaleDrafts moves pending drafts past the TTL into the expired state.
func (s *PurchaseService) ExpireStaleDrafts() (int64, error) {
	cutoff := time.Now().UTC().Add(-s.DraftTTL)
	res := s.DB.Model(&models.Draft{}).
		Where("status = ? AND created_at <= ?", models.DraftPending, cutoff).
		Update("status", models.DraftExpired)
	return res.RowsAffected, res.Error
}
