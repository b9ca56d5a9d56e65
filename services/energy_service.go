// services/energy_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnergyService is the per-address daily play budget. Records are created
// lazily on first access of a UTC day; a record from a previous day is reset
// to the full budget (leftover energy is discarded, not carried over).
type EnergyService struct {
	DB         *gorm.DB
	FreePerDay int
}

func NewEnergyService(db *gorm.DB, freePerDay int) *EnergyService {
	if freePerDay <= 0 {
		freePerDay = 5
	}
	return &EnergyService{DB: db, FreePerDay: freePerDay}
}

func utcDay() string {
	return time.Now().UTC().Format("2006-01-02")
}

// GetOrInit returns the address's record for today, creating or resetting it
// as needed.
func (s *EnergyService) GetOrInit(address string) (models.EnergyRecord, error) {
	addr := strings.ToLower(address)
	day := utcDay()

	var rec models.EnergyRecord
	err := s.DB.First(&rec, "address = ?", addr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = models.EnergyRecord{
			Address:   addr,
			Energy:    s.FreePerDay,
			MaxEnergy: s.FreePerDay,
			Day:       day,
		}
		// DoNothing keeps the first writer's row if two requests race on init
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return models.EnergyRecord{}, err
		}
		if err := s.DB.First(&rec, "address = ?", addr).Error; err != nil {
			return models.EnergyRecord{}, err
		}
		return rec, nil
	}
	if err != nil {
		return models.EnergyRecord{}, err
	}

	if rec.Day != day {
		// destructive reset: the WHERE on the stale day means only one of two
		// racing requests performs it
		res := s.DB.Model(&models.EnergyRecord{}).
			Where("address = ? AND day = ?", addr, rec.Day).
			Updates(map[string]interface{}{
				"energy":     s.FreePerDay,
				"max_energy": s.FreePerDay,
				"day":        day,
			})
		if res.Error != nil {
			return models.EnergyRecord{}, res.Error
		}
		if err := s.DB.First(&rec, "address = ?", addr).Error; err != nil {
			return models.EnergyRecord{}, err
		}
	}
	return rec, nil
}

// Decrement spends one unit of today's budget. The guarded UPDATE with
// energy > 0 is the compare-and-swap that keeps two racing submissions from
// overspending; ok=false means the budget is exhausted. Runs inside the
// orchestrator's commit transaction.
func (s *EnergyService) Decrement(tx *gorm.DB, address string) (remaining int, ok bool, err error) {
	addr := strings.ToLower(address)
	day := utcDay()

	res := tx.Model(&models.EnergyRecord{}).
		Where("address = ? AND day = ? AND energy > 0", addr, day).
		UpdateColumn("energy", gorm.Expr("energy - 1"))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var rec models.EnergyRecord
	if err := tx.First(&rec, "address = ?", addr).Error; err != nil {
		return 0, false, err
	}
	return rec.Energy, true, nil
}
