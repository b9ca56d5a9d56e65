// models/draft.go
package models

import "time"

// IntentKind is the closed set of pay-then-confirm flows a draft can carry.
// The confirm handler switches on it exhaustively; there is no generic
// "probe optional fields" path.
type IntentKind string

const (
	IntentPayment IntentKind = "payment"
	IntentPower   IntentKind = "power"
	IntentReward  IntentKind = "reward"
)

// DraftStatus lifecycle: pending → used (exactly once) or pending → expired
// (swept by the maintenance scheduler after the TTL). Both used and expired
// are terminal.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftUsed    DraftStatus = "used"
	DraftExpired DraftStatus = "expired"
)

// Draft is a pending record of an initiated purchase/claim awaiting external
// confirmation, identified by its UUID reference.
type Draft struct {
	Reference  string      `gorm:"primaryKey;type:uuid" json:"reference"`
	OwnerID    string      `gorm:"type:varchar(128);not null;index" json:"owner_id"`
	Kind       IntentKind  `gorm:"type:varchar(16);not null" json:"kind"`
	TargetCode string      `gorm:"type:varchar(64)" json:"target_code"` // power tier / payment code / activity id
	Amount     int64       `gorm:"not null" json:"amount"`
	Status     DraftStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TxHash     string      `gorm:"type:varchar(128)" json:"tx_hash,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UsedAt     *time.Time  `json:"used_at,omitempty"`
}
