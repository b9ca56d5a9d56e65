// models/nonce.go
package models

import "time"

// NonceRecord holds the single live challenge for an address.
// At most one valid nonce exists per address; issuing again overwrites it,
// and a successful submission deletes it.
type NonceRecord struct {
	Address  string    `gorm:"primaryKey;type:varchar(128)" json:"address"` // stored lowercase
	Nonce    string    `gorm:"type:varchar(128);not null" json:"nonce"`
	IssuedAt time.Time `gorm:"not null" json:"issued_at"`
}

func (NonceRecord) TableName() string {
	return "score_nonces"
}
