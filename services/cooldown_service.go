// services/cooldown_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardCooldown is the window during which a repeat claim for the same
// (address, activity) pair is rejected.
const RewardCooldown = 24 * time.Hour

type CooldownStatus struct {
	OnCooldown  bool  `json:"on_cooldown"`
	RemainingMs int64 `json:"remaining_ms"`
}

// CooldownService is the authoritative gate for repeat reward claims.
type CooldownService struct {
	DB *gorm.DB
}

func NewCooldownService(db *gorm.DB) *CooldownService {
	return &CooldownService{DB: db}
}

// Check computes the cooldown state from the last recorded action. An absent
// record means the address never played this activity, so no cooldown.
func (s *CooldownService) Check(address, activityID string) (CooldownStatus, error) {
	var rec models.CooldownRecord
	err := s.DB.First(&rec, "address = ? AND activity_id = ?",
		strings.ToLower(address), activityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CooldownStatus{}, nil
	}
	if err != nil {
		return CooldownStatus{}, err
	}

	elapsed := time.Now().UnixMilli() - rec.LastActionMs
	if elapsed < RewardCooldown.Milliseconds() {
		return CooldownStatus{
			OnCooldown:  true,
			RemainingMs: RewardCooldown.Milliseconds() - elapsed,
		}, nil
	}
	return CooldownStatus{}, nil
}

// Touch records the action time for the pair, starting a fresh cooldown
// window. Runs inside the claim transaction.
func (s *CooldownService) Touch(tx *gorm.DB, address, activityID string, nowMs int64) error {
	rec := models.CooldownRecord{
		ID:           uuid.NewString(),
		Address:      strings.ToLower(address),
		ActivityID:   activityID,
		LastActionMs: nowMs,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}, {Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_action_ms", "updated_at"}),
	}).Create(&rec).Error
}
