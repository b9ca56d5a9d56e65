// models/score.go
package models

import "time"

// MaxRecordedScore caps every score before it reaches storage.
const MaxRecordedScore = 100000

// ScoreEntry is the append-only log of accepted submissions.
type ScoreEntry struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Address   string    `gorm:"type:varchar(128);not null;index" json:"address"`
	Score     int       `gorm:"not null" json:"score"`
	Period    string    `gorm:"type:varchar(10);not null;index" json:"period"` // UTC date
	GameID    string    `gorm:"type:varchar(64)" json:"game_id"`
	DeviceID  string    `gorm:"type:varchar(128)" json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry aggregates capped scores per (period, address).
// TotalScore only ever grows within a period.
type LeaderboardEntry struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Period     string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_period_address" json:"period"`
	Address    string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_period_address" json:"address"`
	TotalScore int64     `gorm:"not null;default:0" json:"total_score"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CapScore clamps a declared score into the recordable range. Idempotent.
func CapScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxRecordedScore {
		return MaxRecordedScore
	}
	return score
}
