// models/integrity.go
package models

import "time"

// IntegrityEvent captures the full signal set of an anti-cheat rejection so
// audits can replay the decision. Archived rows have been shipped to R2 by
// the audit archiver worker.
type IntegrityEvent struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Address      string    `gorm:"type:varchar(128);not null;index" json:"address"`
	DeviceID     string    `gorm:"type:varchar(128)" json:"device_id"`
	IP           string    `gorm:"type:varchar(64)" json:"ip"`
	Code         string    `gorm:"type:varchar(64);not null" json:"code"`
	Reason       string    `gorm:"type:text" json:"reason"`
	Score        int       `json:"score"`
	GameDuration int       `json:"game_duration"`
	ActionsCount int       `json:"actions_count"`
	Confidence   float64   `json:"confidence"`
	Archived     bool      `gorm:"default:false;index" json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
}
