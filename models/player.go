// models/player.go
package models

import "time"

// PlayerState holds the durable per-address game state touched by the
// power-purchase confirmation flow.
type PlayerState struct {
	Address    string    `gorm:"primaryKey;type:varchar(128)" json:"address"`
	PowerLevel int       `gorm:"not null;default:0" json:"power_level"`
	DeviceID   string    `gorm:"type:varchar(128)" json:"device_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
