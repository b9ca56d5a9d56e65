// models/cooldown.go
package models

import "time"

// CooldownRecord stores the last action time for an (address, activity) pair.
// It is the authoritative gate for repeat reward claims; RewardRecord is kept
// purely as an audit trail.
type CooldownRecord struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Address      string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_addr_activity" json:"address"`
	ActivityID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_addr_activity" json:"activity_id"`
	LastActionMs int64     `gorm:"not null" json:"last_action_ms"` // unix epoch millis
	UpdatedAt    time.Time `json:"updated_at"`
}

func (CooldownRecord) TableName() string {
	return "activity_cooldowns"
}
