// services/anticheat.go
package services

import (
	"log"

	"miniapp-game-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Anti-cheat thresholds. Tuned against production telemetry; each one gates
// an independent heuristic.
const (
	MaxScorePerSecond       = 5000
	HighScoreThreshold      = 50000
	MinDurationForHighScore = 10 // seconds
	MaxScorePerAction       = 10000
)

// Rejection codes returned to the client and logged with the full signal set.
const (
	CodeHighRiskIP          = "HIGH_RISK_IP"
	CodeSuspiciousScoreRate = "SUSPICIOUS_SCORE_RATE"
	CodeSuspiciousDuration  = "SUSPICIOUS_SCORE_DURATION"
	CodeSuspiciousPerAction = "SUSPICIOUS_SCORE_PER_ACTION"
	CodeSuspiciousScore     = "SUSPICIOUS_SCORE"
)

// SubmissionSignals is everything the engine sees about one submission.
type SubmissionSignals struct {
	Address      string
	Score        int
	GameDuration int // seconds
	ActionsCount int
	DeviceID     string
	IP           string
	Risk         IPRisk
	RiskKnown    bool // false when the reputation lookup failed (fail-open)
}

// Verdict is the engine's decision. Either flag rejects the submission;
// Code/Reason carry the first detected violation.
type Verdict struct {
	Suspicious bool
	Blocked    bool
	Code       string
	Reason     string
	Confidence float64
}

func (v Verdict) Rejected() bool {
	return v.Suspicious || v.Blocked
}

// StatValidator is the pluggable composite check. Implementations may use
// per-address or per-device historical baselines.
type StatValidator interface {
	Evaluate(sig SubmissionSignals) Verdict
}

// AntiCheatEngine composes the rule heuristics with the statistical
// validator. Every heuristic is evaluated so the audit log captures all
// violated rules, but only the first detected reason reaches the client.
type AntiCheatEngine struct {
	DB        *gorm.DB
	Validator StatValidator
}

func NewAntiCheatEngine(db *gorm.DB, validator StatValidator) *AntiCheatEngine {
	return &AntiCheatEngine{DB: db, Validator: validator}
}

// Evaluate runs every heuristic, persists an IntegrityEvent per violation,
// and returns the first detected verdict.
func (e *AntiCheatEngine) Evaluate(sig SubmissionSignals) Verdict {
	var verdicts []Verdict

	if sig.RiskKnown && sig.Risk.Level == "high" && (sig.Risk.VPN || sig.Risk.Proxy || sig.Risk.Tor) {
		verdicts = append(verdicts, Verdict{
			Blocked:    true,
			Code:       CodeHighRiskIP,
			Reason:     "high-risk IP behind VPN/proxy/Tor",
			Confidence: 0.9,
		})
	}

	if sig.GameDuration > 0 && sig.Score/sig.GameDuration > MaxScorePerSecond {
		verdicts = append(verdicts, Verdict{
			Suspicious: true,
			Code:       CodeSuspiciousScoreRate,
			Reason:     "score rate exceeds the achievable maximum",
			Confidence: 0.95,
		})
	}

	if sig.Score > HighScoreThreshold && sig.GameDuration > 0 && sig.GameDuration < MinDurationForHighScore {
		verdicts = append(verdicts, Verdict{
			Suspicious: true,
			Code:       CodeSuspiciousDuration,
			Reason:     "high score in an implausibly short session",
			Confidence: 0.9,
		})
	}

	if sig.ActionsCount > 0 && sig.Score/sig.ActionsCount > MaxScorePerAction {
		verdicts = append(verdicts, Verdict{
			Suspicious: true,
			Code:       CodeSuspiciousPerAction,
			Reason:     "score per action exceeds the achievable maximum",
			Confidence: 0.9,
		})
	}

	if e.Validator != nil {
		if v := e.Validator.Evaluate(sig); v.Rejected() {
			v.Code = CodeSuspiciousScore
			verdicts = append(verdicts, v)
		}
	}

	for _, v := range verdicts {
		e.recordViolation(sig, v)
	}

	if len(verdicts) == 0 {
		return Verdict{}
	}
	return verdicts[0]
}

func (e *AntiCheatEngine) recordViolation(sig SubmissionSignals, v Verdict) {
	event := models.IntegrityEvent{
		ID:           uuid.NewString(),
		Address:      sig.Address,
		DeviceID:     sig.DeviceID,
		IP:           sig.IP,
		Code:         v.Code,
		Reason:       v.Reason,
		Score:        sig.Score,
		GameDuration: sig.GameDuration,
		ActionsCount: sig.ActionsCount,
		Confidence:   v.Confidence,
	}
	if err := e.DB.Create(&event).Error; err != nil {
		// audit write failures must not change the verdict
		log.Printf("Failed to record integrity event for %s (%s): %v", sig.Address, v.Code, err)
	}
}

// BaselineValidator flags scores far above the address's own recent history.
// A small sample is never judged — new players legitimately improve fast.
type BaselineValidator struct {
	Scores *ScoreService
}

func NewBaselineValidator(scores *ScoreService) *BaselineValidator {
	return &BaselineValidator{Scores: scores}
}

const (
	baselineSampleSize  = 20
	baselineMinSamples  = 5
	baselineSpikeFactor = 5
	baselineFloorScore  = 20000
)

func (b *BaselineValidator) Evaluate(sig SubmissionSignals) Verdict {
	entries, err := b.Scores.RecentScores(sig.Address, baselineSampleSize)
	if err != nil {
		log.Printf("Baseline lookup failed for %s: %v", sig.Address, err)
		return Verdict{}
	}
	if len(entries) < baselineMinSamples {
		return Verdict{}
	}

	var sum int
	for _, e := range entries {
		sum += e.Score
	}
	avg := sum / len(entries)
	if avg > 0 && sig.Score > avg*baselineSpikeFactor && sig.Score > baselineFloorScore {
		return Verdict{
			Suspicious: true,
			Reason:     "score spikes far above the address's recent baseline",
			Confidence: 0.7,
		}
	}
	return Verdict{}
}
