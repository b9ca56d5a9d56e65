// services/score_service.go
package services

import (
	"log"
	"strconv"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreService owns the append-only score log and the period leaderboard
// aggregates.
type ScoreService struct {
	DB *gorm.DB
}

func NewScoreService(db *gorm.DB) *ScoreService {
	return &ScoreService{DB: db}
}

// RecordScore appends a ScoreEntry and folds the capped score into the
// period aggregate. Must run inside the orchestrator's commit transaction so
// a failed nonce consumption rolls both writes back.
func (s *ScoreService) RecordScore(tx *gorm.DB, address string, capped int, period, gameID, deviceID string) error {
	addr := strings.ToLower(address)

	entry := models.ScoreEntry{
		ID:       uuid.NewString(),
		Address:  addr,
		Score:    capped,
		Period:   period,
		GameID:   gameID,
		DeviceID: deviceID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	agg := models.LeaderboardEntry{
		ID:         uuid.NewString(),
		Period:     period,
		Address:    addr,
		TotalScore: int64(capped),
	}
	// aggregate only ever grows within a period
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "period"}, {Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_score": gorm.Expr("total_score + ?", capped),
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(&agg).Error
}

// RecentScores returns the address's latest accepted submissions, newest
// first. The statistical anti-cheat validator reads its baseline from here.
func (s *ScoreService) RecentScores(address string, limit int) ([]models.ScoreEntry, error) {
	var entries []models.ScoreEntry
	err := s.DB.Where("address = ?", strings.ToLower(address)).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// GetLeaderboard serves GET /score/leaderboard?period=&limit=
func (s *ScoreService) GetLeaderboard(c *fiber.Ctx) error {
	period := c.Query("period")
	if period == "" {
		period = utcDay()
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []models.LeaderboardEntry
	if err := s.DB.Where("period = ?", period).
		Order("total_score DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		log.Printf("DB error fetching leaderboard for %s: %v", period, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}

	rows := make([]fiber.Map, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, fiber.Map{
			"rank":        i + 1,
			"address":     e.Address,
			"total_score": e.TotalScore,
		})
	}
	return c.JSON(fiber.Map{"period": period, "entries": rows})
}
