package services

import (
	"fmt"
	"testing"

	"miniapp-game-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// acceptAllVerifier stands in for the external signing capability.
type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(address string, payload []byte, signature string) bool {
	return true
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(address string, payload []byte, signature string) bool {
	return false
}
