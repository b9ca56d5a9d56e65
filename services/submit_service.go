// services/submit_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"miniapp-game-backend/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Validation codes for the submission pipeline. Stable — clients branch on
// them.
const (
	CodeMissingAddress = "MISSING_ADDRESS"
	CodeMissingFields  = "MISSING_FIELDS"
	CodeInvalidAddress = "INVALID_ADDRESS"
	CodeNonceInvalid   = "NONCE_INVALID"
	CodeSigInvalid     = "SIG_INVALID"
	CodeStaleTimestamp = "STALE_TIMESTAMP"
	CodeNoEnergy       = "NO_ENERGY"
)

// DefaultTsWindowMs is the accepted skew between the signed client timestamp
// and server time.
const DefaultTsWindowMs = 60_000

// sentinels for the commit transaction — mapped to response codes in SubmitScore
var (
	errNoEnergy   = errors.New("no energy")
	errNonceRaced = errors.New("nonce consumed concurrently")
)

// SubmitService sequences the score-integrity pipeline: fields → address →
// nonce → signature → timestamp → anti-cheat → energy → commit. The commit
// (energy decrement, score append, aggregate add, nonce delete) is a single
// transaction; everything before it has no side effects, so a rejected
// submission never burns the nonce or the energy.
type SubmitService struct {
	DB         *gorm.DB
	Nonces     *NonceService
	Energy     *EnergyService
	Scores     *ScoreService
	Engine     *AntiCheatEngine
	Verifier   SignatureVerifier
	Risk       IPRiskClient
	TsWindowMs int64
}

func NewSubmitService(db *gorm.DB, nonces *NonceService, energy *EnergyService, scores *ScoreService, engine *AntiCheatEngine, verifier SignatureVerifier, risk IPRiskClient, tsWindowMs int64) *SubmitService {
	if tsWindowMs <= 0 {
		tsWindowMs = DefaultTsWindowMs
	}
	if risk == nil {
		risk = NoopIPRiskClient{}
	}
	return &SubmitService{
		DB:         db,
		Nonces:     nonces,
		Energy:     energy,
		Scores:     scores,
		Engine:     engine,
		Verifier:   verifier,
		Risk:       risk,
		TsWindowMs: tsWindowMs,
	}
}

// IssueNonce serves POST /score/nonce
func (s *SubmitService) IssueNonce(c *fiber.Ctx) error {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address is required",
			"code":  CodeMissingAddress,
		})
	}
	if !common.IsHexAddress(req.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address is not a valid hex address",
			"code":  CodeInvalidAddress,
		})
	}

	nonce, err := s.Nonces.Issue(req.Address)
	if err != nil {
		log.Printf("Failed to issue nonce for %s: %v", req.Address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue nonce"})
	}
	return c.JSON(fiber.Map{"nonce": nonce})
}

type submitRequest struct {
	Address string `json:"address"`
	Payload struct {
		Score        int    `json:"score"`
		Ts           int64  `json:"ts"` // unix epoch millis, signed by the client
		Nonce        string `json:"nonce"`
		GameID       string `json:"gameId"`
		GameDuration int    `json:"gameDuration"` // seconds
		ActionsCount int    `json:"actionsCount"`
	} `json:"payload"`
	Sig      string `json:"sig"`
	DeviceID string `json:"deviceId"`
}

// SubmitScore serves POST /score/submit
func (s *SubmitService) SubmitScore(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return rejectSubmission(c, CodeMissingFields, "invalid JSON body")
	}
	if req.Address == "" || req.Payload.Nonce == "" || req.Sig == "" || req.Payload.Ts == 0 {
		return rejectSubmission(c, CodeMissingFields, "address, payload.ts, payload.nonce and sig are required")
	}
	if !common.IsHexAddress(req.Address) {
		return rejectSubmission(c, CodeInvalidAddress, "address is not a valid hex address")
	}

	clientIP := c.IP()
	if fwd := c.Get("X-Real-IP"); fwd != "" {
		clientIP = fwd
	}

	// Best-effort lookups. A reputation-provider or device-registry failure
	// informs the anti-cheat step but never rejects the request by itself.
	risk, riskKnown := s.lookupRisk(clientIP)
	s.registerDevice(req.Address, req.DeviceID)

	ok, err := s.Nonces.Matches(req.Address, req.Payload.Nonce)
	if err != nil {
		log.Printf("Nonce lookup failed for %s: %v", req.Address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "nonce lookup failed"})
	}
	if !ok {
		return rejectSubmission(c, CodeNonceInvalid, "nonce is missing, already used or does not match")
	}

	payload := CanonicalScorePayload(req.Address, req.Payload.Score, req.Payload.Ts, req.Payload.Nonce)
	if !s.Verifier.Verify(req.Address, payload, req.Sig) {
		return rejectSubmission(c, CodeSigInvalid, "signature does not verify against the payload")
	}

	skew := time.Now().UnixMilli() - req.Payload.Ts
	if skew < 0 {
		skew = -skew
	}
	if skew > s.TsWindowMs {
		return rejectSubmission(c, CodeStaleTimestamp, "payload timestamp is outside the accepted window")
	}

	verdict := s.Engine.Evaluate(SubmissionSignals{
		Address:      req.Address,
		Score:        req.Payload.Score,
		GameDuration: req.Payload.GameDuration,
		ActionsCount: req.Payload.ActionsCount,
		DeviceID:     req.DeviceID,
		IP:           clientIP,
		Risk:         risk,
		RiskKnown:    riskKnown,
	})
	if verdict.Rejected() {
		log.Printf("🚫 Anti-cheat rejected %s: %s (%s)", req.Address, verdict.Code, verdict.Reason)
		return rejectSubmission(c, verdict.Code, verdict.Reason)
	}

	// Energy is initialized outside the transaction (lazy day rollover), the
	// decrement itself is the guarded update inside it.
	if _, err := s.Energy.GetOrInit(req.Address); err != nil {
		log.Printf("Energy init failed for %s: %v", req.Address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "energy lookup failed"})
	}

	capped := models.CapScore(req.Payload.Score)
	period := utcDay()
	var newEnergy int

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		remaining, ok, err := s.Energy.Decrement(tx, req.Address)
		if err != nil {
			return err
		}
		if !ok {
			return errNoEnergy
		}
		newEnergy = remaining

		if err := s.Scores.RecordScore(tx, req.Address, capped, period, req.Payload.GameID, req.DeviceID); err != nil {
			return err
		}

		consumed, err := s.Nonces.Consume(tx, req.Address, req.Payload.Nonce)
		if err != nil {
			return err
		}
		if !consumed {
			// a racing submission burned it between validation and commit
			return errNonceRaced
		}
		return nil
	})
	switch err {
	case nil:
	case errNoEnergy:
		return rejectSubmission(c, CodeNoEnergy, "daily energy budget is exhausted")
	case errNonceRaced:
		return rejectSubmission(c, CodeNonceInvalid, "nonce is missing, already used or does not match")
	default:
		log.Printf("Score commit failed for %s: %v", req.Address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record score"})
	}

	return c.JSON(fiber.Map{
		"score":     capped,
		"newEnergy": newEnergy,
	})
}

// GetEnergy serves GET /score/energy/:address
func (s *SubmitService) GetEnergy(c *fiber.Ctx) error {
	address := c.Params("address")
	if !common.IsHexAddress(address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address is not a valid hex address",
			"code":  CodeInvalidAddress,
		})
	}
	rec, err := s.Energy.GetOrInit(address)
	if err != nil {
		log.Printf("Energy lookup failed for %s: %v", address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "energy lookup failed"})
	}
	return c.JSON(fiber.Map{
		"energy": rec.Energy,
		"max":    rec.MaxEnergy,
		"day":    rec.Day,
	})
}

func (s *SubmitService) lookupRisk(ip string) (IPRisk, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	risk, err := s.Risk.Lookup(ctx, ip)
	if err != nil {
		log.Printf("IP risk lookup failed for %s (treating as low risk): %v", ip, err)
		return IPRisk{}, false
	}
	return risk, true
}

func (s *SubmitService) registerDevice(address, deviceID string) {
	if deviceID == "" {
		return
	}
	state := models.PlayerState{
		Address:  strings.ToLower(address),
		DeviceID: deviceID,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_id", "updated_at"}),
	}).Create(&state).Error; err != nil {
		log.Printf("Device registration failed for %s: %v", address, err)
	}
}

func rejectSubmission(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
