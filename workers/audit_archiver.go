// workers/audit_archiver.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"miniapp-game-backend/models"
	"miniapp-game-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const archiveBatchSize = 500

// AuditArchiver ships integrity-violation events to R2 so audits survive
// database retention. Events stay queryable locally until a batch is
// uploaded, then get flagged archived.
type AuditArchiver struct {
	DB *gorm.DB
}

func NewAuditArchiver(db *gorm.DB) *AuditArchiver {
	return &AuditArchiver{DB: db}
}

// PollIntegrityEvents uploads unarchived batches on a fixed interval until
// the context is cancelled.
func PollIntegrityEvents(ctx context.Context, archiver *AuditArchiver, pollInterval time.Duration) {
	log.Println("Starting integrity audit archiver...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Audit archiver stopped.")
			return
		case <-ticker.C:
			if err := archiver.archiveBatch(ctx); err != nil {
				log.Printf("❌ Audit archive pass failed: %v", err)
			}
		}
	}
}

func (a *AuditArchiver) archiveBatch(ctx context.Context) error {
	var events []models.IntegrityEvent
	if err := a.DB.Where("archived = ?", false).
		Order("created_at ASC").
		Limit(archiveBatchSize).
		Find(&events).Error; err != nil {
		return fmt.Errorf("failed to load unarchived events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal event batch: %w", err)
	}

	key := fmt.Sprintf("integrity/%s/%s.json",
		time.Now().UTC().Format("2006-01-02"), uuid.NewString())
	if err := utils.UploadBytesToR2(ctx, key, "application/json", payload); err != nil {
		// do NOT flag on failure — the same batch is retried next tick
		return err
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if err := a.DB.Model(&models.IntegrityEvent{}).
		Where("id IN ?", ids).
		Update("archived", true).Error; err != nil {
		return fmt.Errorf("failed to flag archived events: %w", err)
	}

	log.Printf("📦 Archived %d integrity event(s) to %s", len(events), key)
	return nil
}
