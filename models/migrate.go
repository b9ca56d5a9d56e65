// models/migrate.go
package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the backend owns.
// main calls this at boot; package tests call it against in-memory sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&NonceRecord{},
		&EnergyRecord{},
		&ScoreEntry{},
		&LeaderboardEntry{},
		&CooldownRecord{},
		&RewardRecord{},
		&Draft{},
		&PlayerState{},
		&IntegrityEvent{},
	)
}
