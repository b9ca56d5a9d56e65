// models/energy.go
package models

import "time"

// EnergyRecord is the per-address daily play budget.
// Day is the UTC date ("2006-01-02") the record belongs to; reading a record
// whose Day is stale resets Energy to MaxEnergy (destructive reset, not a refill).
type EnergyRecord struct {
	Address   string    `gorm:"primaryKey;type:varchar(128)" json:"address"`
	Energy    int       `gorm:"not null" json:"energy"`
	MaxEnergy int       `gorm:"not null" json:"max_energy"`
	Day       string    `gorm:"type:varchar(10);not null" json:"day"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EnergyRecord) TableName() string {
	return "energy_ledger"
}
