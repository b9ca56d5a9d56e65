// services/reward_service.go
package services

import (
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const CodeCooldownActive = "COOLDOWN_ACTIVE"

// rewardChance is one row of a bucket's discrete probability table.
// Weights are out of 1000 and sum to 1000 within a bucket.
type rewardChance struct {
	Amount int
	Weight int
}

// rewardBucket maps a score range (upper bound exclusive) to its table.
type rewardBucket struct {
	MaxScore int
	Table    []rewardChance
}

// rewardBuckets: higher score shifts the distribution up but never
// guarantees a bigger reward — the top bucket keeps the maximum rare and a
// mid-tier amount most likely.
var rewardBuckets = []rewardBucket{
	{MaxScore: 1000, Table: []rewardChance{{0, 550}, {1, 400}, {2, 50}}},
	{MaxScore: 5000, Table: []rewardChance{{1, 550}, {2, 350}, {3, 100}}},
	{MaxScore: 15000, Table: []rewardChance{{1, 250}, {2, 500}, {3, 200}, {4, 50}}},
	{MaxScore: 30000, Table: []rewardChance{{2, 400}, {3, 400}, {4, 180}, {5, 20}}},
	{MaxScore: 50000, Table: []rewardChance{{2, 200}, {3, 450}, {4, 300}, {5, 50}}},
	{MaxScore: math.MaxInt, Table: []rewardChance{{3, 500}, {4, 400}, {5, 100}}},
}

// RewardService computes and issues token rewards, gated by the cooldown
// store.
type RewardService struct {
	DB        *gorm.DB
	Cooldowns *CooldownService
	Risk      IPRiskClient

	// roll draws a uniform value in [0, n); swapped out in tests
	roll func(n int) int
}

func NewRewardService(db *gorm.DB, cooldowns *CooldownService, risk IPRiskClient) *RewardService {
	if risk == nil {
		risk = NoopIPRiskClient{}
	}
	return &RewardService{
		DB:        db,
		Cooldowns: cooldowns,
		Risk:      risk,
		roll:      rand.Intn,
	}
}

// ComputeReward buckets the score and walks the bucket's cumulative
// threshold table with a single uniform draw.
func (s *RewardService) ComputeReward(score int) int {
	var bucket rewardBucket
	for _, b := range rewardBuckets {
		if score < b.MaxScore {
			bucket = b
			break
		}
	}

	draw := s.roll(1000)
	cumulative := 0
	for _, chance := range bucket.Table {
		cumulative += chance.Weight
		if draw < cumulative {
			return chance.Amount
		}
	}
	// unreachable when weights sum to 1000
	return bucket.Table[len(bucket.Table)-1].Amount
}

// Issue writes the RewardRecord and touches the cooldown in one transaction.
// The cooldown store is the authoritative gate; the record is audit trail.
func (s *RewardService) Issue(address, activityID string, score, amount int) error {
	now := time.Now().UnixMilli()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		rec := models.RewardRecord{
			ID:         uuid.NewString(),
			Address:    address,
			ActivityID: activityID,
			Amount:     amount,
			Score:      score,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return s.Cooldowns.Touch(tx, address, activityID, now)
	})
}

// ClaimReward serves POST /reward/claim
func (s *RewardService) ClaimReward(c *fiber.Ctx) error {
	var req struct {
		Address    string `json:"address"`
		ActivityID string `json:"activityId"`
		Score      int    `json:"score"`
	}
	if err := c.BodyParser(&req); err != nil || req.Address == "" || req.ActivityID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address and activityId are required",
			"code":  CodeMissingFields,
		})
	}
	if !common.IsHexAddress(req.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address is not a valid hex address",
			"code":  CodeInvalidAddress,
		})
	}

	// client-supplied activity ids are normalized so "Daily Spin!" and
	// "daily-spin" gate the same cooldown
	activityID := slug.Make(req.ActivityID)

	if risk, err := s.lookupRisk(c); err == nil {
		if risk.Level == "high" && (risk.VPN || risk.Proxy || risk.Tor) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "claims from high-risk IPs are not accepted",
				"code":  CodeHighRiskIP,
			})
		}
	}

	status, err := s.Cooldowns.Check(req.Address, activityID)
	if err != nil {
		log.Printf("Cooldown check failed for %s/%s: %v", req.Address, activityID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cooldown check failed"})
	}
	if status.OnCooldown {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":        "activity is on cooldown",
			"code":         CodeCooldownActive,
			"remaining_ms": status.RemainingMs,
		})
	}

	amount := s.ComputeReward(models.CapScore(req.Score))
	if err := s.Issue(strings.ToLower(req.Address), activityID, req.Score, amount); err != nil {
		log.Printf("Reward issue failed for %s/%s: %v", req.Address, activityID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue reward"})
	}

	return c.JSON(fiber.Map{
		"reward":      amount,
		"activity_id": activityID,
	})
}

func (s *RewardService) lookupRisk(c *fiber.Ctx) (IPRisk, error) {
	ip := c.IP()
	if fwd := c.Get("X-Real-IP"); fwd != "" {
		ip = fwd
	}
	risk, err := s.Risk.Lookup(c.UserContext(), ip)
	if err != nil {
		// fail-open, same policy as the submission pipeline
		log.Printf("IP risk lookup failed for %s (treating as low risk): %v", ip, err)
		return IPRisk{}, err
	}
	return risk, nil
}
