// services/purchase_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Confirmation codes. Stable — the mini-app distinguishes "cancelled" from
// "failed" on these.
const (
	CodeUserCancelled    = "USER_CANCELLED"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeDraftUsed        = "DRAFT_ALREADY_USED"
	CodeVerifyFailed     = "VERIFICATION_FAILED"
	CodeVerifyUnavail    = "VERIFICATION_UNAVAILABLE"
	CodeInvalidIntent    = "INVALID_INTENT"
)

// DefaultDraftTTL: pending drafts older than this are swept to the terminal
// expired state by the maintenance scheduler.
const DefaultDraftTTL = 24 * time.Hour

var (
	errDraftRaced    = errors.New("draft consumed concurrently")
	errUnknownIntent = errors.New("unknown intent kind")
)

// powerPrices maps purchasable power tiers to their token price.
var powerPrices = map[string]struct {
	Price int64
	Level int
}{
	"power_1": {Price: 50, Level: 1},
	"power_2": {Price: 120, Level: 2},
	"power_3": {Price: 300, Level: 3},
}

// PurchaseService runs the generic draft lifecycle (init → verify-with-retry
// → mark-used) shared by the payment, power-purchase and reward-claim flows.
type PurchaseService struct {
	DB       *gorm.DB
	Verifier *VerificationClient
	Rewards  *RewardService
	DraftTTL time.Duration
}

func NewPurchaseService(db *gorm.DB, verifier *VerificationClient, rewards *RewardService, draftTTL time.Duration) *PurchaseService {
	if draftTTL <= 0 {
		draftTTL = DefaultDraftTTL
	}
	return &PurchaseService{
		DB:       db,
		Verifier: verifier,
		Rewards:  rewards,
		DraftTTL: draftTTL,
	}
}

// InitPurchase serves POST /purchase/init
func (s *PurchaseService) InitPurchase(c *fiber.Ctx) error {
	var req struct {
		OwnerID string `json:"ownerId"`
		Intent  struct {
			Kind       string `json:"kind"`
			TargetCode string `json:"targetCode"`
			Amount     int64  `json:"amount"`
			Score      int    `json:"score"`
		} `json:"intent"`
	}
	if err := c.BodyParser(&req); err != nil || req.OwnerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ownerId and intent are required",
			"code":  CodeMissingFields,
		})
	}

	draft := models.Draft{
		Reference: uuid.NewString(),
		OwnerID:   strings.ToLower(req.OwnerID),
		Status:    models.DraftPending,
	}

	switch models.IntentKind(req.Intent.Kind) {
	case models.IntentPayment:
		if req.Intent.Amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "payment intent requires a positive amount",
				"code":  CodeInvalidIntent,
			})
		}
		draft.Kind = models.IntentPayment
		draft.TargetCode = req.Intent.TargetCode
		draft.Amount = req.Intent.Amount
	case models.IntentPower:
		tier, ok := powerPrices[req.Intent.TargetCode]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown power tier",
				"code":  CodeInvalidIntent,
			})
		}
		draft.Kind = models.IntentPower
		draft.TargetCode = req.Intent.TargetCode
		draft.Amount = tier.Price
	case models.IntentReward:
		if req.Intent.TargetCode == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "reward intent requires an activity target",
				"code":  CodeInvalidIntent,
			})
		}
		draft.Kind = models.IntentReward
		draft.TargetCode = slug.Make(req.Intent.TargetCode)
		draft.Amount = int64(models.CapScore(req.Intent.Score))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "intent kind must be one of payment, power, reward",
			"code":  CodeInvalidIntent,
		})
	}

	if err := s.DB.Create(&draft).Error; err != nil {
		log.Printf("Failed to create draft for %s: %v", req.OwnerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create draft"})
	}

	return c.JSON(fiber.Map{
		"reference": draft.Reference,
		"amount":    draft.Amount,
		"intent": fiber.Map{
			"kind":       draft.Kind,
			"targetCode": draft.TargetCode,
		},
	})
}

// ConfirmPurchase serves POST /purchase/confirm
func (s *PurchaseService) ConfirmPurchase(c *fiber.Ctx) error {
	var req struct {
		Payload struct {
			Reference     string `json:"reference"`
			TransactionID string `json:"transaction_id"`
		} `json:"payload"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
			"code":  CodeMissingFields,
		})
	}

	// an absent transaction id means the user closed the wallet sheet; the
	// draft stays pending so a later confirm with a fresh transaction works
	if req.Payload.TransactionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "purchase was cancelled before a transaction was created",
			"code":  CodeUserCancelled,
		})
	}

	var draft models.Draft
	err := s.DB.First(&draft, "reference = ?", req.Payload.Reference).Error
	if err == gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no draft exists for this reference",
			"code":  CodeInvalidReference,
		})
	}
	if err != nil {
		log.Printf("Draft lookup failed for %s: %v", req.Payload.Reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "draft lookup failed"})
	}
	if draft.Status != models.DraftPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "draft was already consumed or expired",
			"code":  CodeDraftUsed,
		})
	}

	// the reward flow is additionally gated by the cooldown store, checked
	// before spending a verification round-trip
	if draft.Kind == models.IntentReward {
		status, err := s.Rewards.Cooldowns.Check(draft.OwnerID, draft.TargetCode)
		if err != nil {
			log.Printf("Cooldown check failed for %s/%s: %v", draft.OwnerID, draft.TargetCode, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cooldown check failed"})
		}
		if status.OnCooldown {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":        "activity is on cooldown",
				"code":         CodeCooldownActive,
				"remaining_ms": status.RemainingMs,
			})
		}
	}

	// verification runs on a detached context: a client disconnect mid-retry
	// must not leave the draft and the external transaction inconsistent
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	result, err := s.Verifier.GetTransaction(ctx, req.Payload.TransactionID)
	if err != nil {
		verr, ok := err.(*VerificationError)
		if ok && verr.Terminal {
			log.Printf("Verification terminally failed for draft %s: %v", draft.Reference, verr)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":           "transaction verification failed",
				"code":            CodeVerifyFailed,
				"upstream_status": verr.StatusCode,
			})
		}
		log.Printf("Verification unavailable for draft %s: %v", draft.Reference, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "transaction verification is unavailable, retry later",
			"code":  CodeVerifyUnavail,
		})
	}

	if !result.Confirmed() || result.Reference != draft.Reference {
		// draft stays pending — the client may retry confirmation
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "transaction does not match this draft or is not confirmed",
			"code":  CodeVerifyFailed,
		})
	}

	response, err := s.consumeDraft(&draft, result.TxHash)
	switch err {
	case nil:
	case errDraftRaced:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "draft was already consumed or expired",
			"code":  CodeDraftUsed,
		})
	default:
		log.Printf("Draft consumption failed for %s: %v", draft.Reference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to finalize purchase"})
	}

	return c.JSON(response)
}

// consumeDraft flips the draft pending→used and performs the intent-specific
// mutation in one transaction. The guarded UPDATE on status is the
// exactly-once guarantee: of two racing confirms only one sees RowsAffected=1.
func (s *PurchaseService) consumeDraft(draft *models.Draft, txHash string) (fiber.Map, error) {
	now := time.Now().UTC()
	var response fiber.Map

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Draft{}).
			Where("reference = ? AND status = ?", draft.Reference, models.DraftPending).
			Updates(map[string]interface{}{
				"status":  models.DraftUsed,
				"used_at": now,
				"tx_hash": txHash,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errDraftRaced
		}

		switch draft.Kind {
		case models.IntentPayment:
			response = fiber.Map{
				"result":    "payment_confirmed",
				"reference": draft.Reference,
				"amount":    draft.Amount,
				"tx_hash":   txHash,
			}
			return nil

		case models.IntentPower:
			tier := powerPrices[draft.TargetCode]
			state := models.PlayerState{
				Address:    draft.OwnerID,
				PowerLevel: tier.Level,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "address"}},
				DoUpdates: clause.AssignmentColumns([]string{"power_level", "updated_at"}),
			}).Create(&state).Error; err != nil {
				return err
			}
			response = fiber.Map{
				"result":      "power_upgraded",
				"reference":   draft.Reference,
				"power_level": tier.Level,
				"tx_hash":     txHash,
			}
			return nil

		case models.IntentReward:
			amount := s.Rewards.ComputeReward(int(draft.Amount))
			rec := models.RewardRecord{
				ID:         uuid.NewString(),
				Address:    draft.OwnerID,
				ActivityID: draft.TargetCode,
				Amount:     amount,
				Score:      int(draft.Amount),
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			if err := s.Rewards.Cooldowns.Touch(tx, draft.OwnerID, draft.TargetCode, now.UnixMilli()); err != nil {
				return err
			}
			response = fiber.Map{
				"result":    "reward_issued",
				"reference": draft.Reference,
				"reward":    amount,
				"tx_hash":   txHash,
			}
			return nil
		}
		return errUnknownIntent
	})
	return response, err
}
