// services/nonce_service.go
package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nonceBytes is the entropy of an issued challenge (hex-encoded on the wire).
const nonceBytes = 32

type NonceService struct {
	DB *gorm.DB
}

func NewNonceService(db *gorm.DB) *NonceService {
	return &NonceService{DB: db}
}

// Issue generates a fresh random nonce for the address, replacing any
// previously issued one. An address never has more than one live nonce.
func (s *NonceService) Issue(address string) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	rec := models.NonceRecord{
		Address:  strings.ToLower(address),
		Nonce:    nonce,
		IssuedAt: time.Now().UTC(),
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "issued_at"}),
	}).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Matches reports whether the supplied nonce equals the stored one, without
// consuming it. Submission validates with Matches first so a rejection later
// in the pipeline does not burn the challenge.
func (s *NonceService) Matches(address, supplied string) (bool, error) {
	if supplied == "" {
		return false, nil
	}
	var rec models.NonceRecord
	err := s.DB.First(&rec, "address = ?", strings.ToLower(address)).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Nonce == supplied, nil
}

// Consume deletes the record iff the supplied value matches exactly. The
// guarded DELETE is a single statement, so two submissions racing on the same
// nonce cannot both succeed. Runs inside the orchestrator's commit transaction.
func (s *NonceService) Consume(tx *gorm.DB, address, supplied string) (bool, error) {
	if supplied == "" {
		return false, nil
	}
	res := tx.Where("address = ? AND nonce = ?", strings.ToLower(address), supplied).
		Delete(&models.NonceRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
