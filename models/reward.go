// models/reward.go
package models

import "time"

// RewardRecord logs every reward issued to an address for an activity.
// Existence of a record does not block future claims — the cooldown store
// is the sole gate — so this table can be read as a plain audit trail.
type RewardRecord struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Address    string    `gorm:"type:varchar(128);not null;index" json:"address"`
	ActivityID string    `gorm:"type:varchar(128);not null" json:"activity_id"`
	Amount     int       `gorm:"not null" json:"amount"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}
