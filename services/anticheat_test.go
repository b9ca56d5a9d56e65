package services

import (
	"testing"

	"miniapp-game-backend/models"
)

func newTestEngine(t *testing.T) (*AntiCheatEngine, *ScoreService) {
	t.Helper()
	db := setupTestDB(t)
	scores := NewScoreService(db)
	return NewAntiCheatEngine(db, NewBaselineValidator(scores)), scores
}

func cleanSignals(addr string) SubmissionSignals {
	return SubmissionSignals{
		Address:      addr,
		Score:        5000,
		GameDuration: 60,
		ActionsCount: 50,
		DeviceID:     "dev-1",
		IP:           "203.0.113.7",
		Risk:         IPRisk{Level: "low"},
		RiskKnown:    true,
	}
}

func TestEngineAcceptsPlausiblePlay(t *testing.T) {
	engine, _ := newTestEngine(t)
	if v := engine.Evaluate(cleanSignals("0xplayer1")); v.Rejected() {
		t.Fatalf("plausible play rejected: %s (%s)", v.Code, v.Reason)
	}
}

func TestEngineHighRiskIP(t *testing.T) {
	engine, _ := newTestEngine(t)

	sig := cleanSignals("0xplayer2")
	sig.Risk = IPRisk{Level: "high", VPN: true}
	v := engine.Evaluate(sig)
	if !v.Blocked || v.Code != CodeHighRiskIP {
		t.Fatalf("want blocked %s, got %+v", CodeHighRiskIP, v)
	}

	// high risk without an anonymizer is allowed
	sig.Risk = IPRisk{Level: "high"}
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("high risk without VPN/proxy/Tor rejected: %+v", v)
	}

	// a failed lookup fails open
	sig.Risk = IPRisk{}
	sig.RiskKnown = false
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("unknown risk rejected: %+v", v)
	}
}

func TestEngineScoreRate(t *testing.T) {
	engine, _ := newTestEngine(t)

	sig := cleanSignals("0xplayer3")
	sig.Score = 60000
	sig.GameDuration = 10 // 6000/s > 5000/s
	v := engine.Evaluate(sig)
	if v.Code != CodeSuspiciousScoreRate {
		t.Fatalf("want %s, got %+v", CodeSuspiciousScoreRate, v)
	}
}

func TestEngineShortDurationHighScore(t *testing.T) {
	engine, _ := newTestEngine(t)

	sig := cleanSignals("0xplayer4")
	sig.Score = 40000 // below rate limit for 9s? 40000/9 = 4444/s, under the rate cap
	sig.GameDuration = 9
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("score under the high threshold rejected: %+v", v)
	}

	sig.Score = HighScoreThreshold + 1
	sig.GameDuration = 11
	sig.ActionsCount = 500
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("long-enough session rejected: %+v", v)
	}

	sig.GameDuration = 9
	sig.Score = 44000 // short session but under the high-score threshold
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("unexpected rejection: %+v", v)
	}
}

func TestEngineDurationCode(t *testing.T) {
	engine, _ := newTestEngine(t)

	// rate is fine (51000/20 = 2550/s would not fire) but duration is 9s,
	// so craft a score that trips only the duration rule
	sig := cleanSignals("0xplayer5")
	sig.Score = 51000
	sig.GameDuration = 9
	sig.ActionsCount = 1000
	// 51000/9 = 5666/s also trips the rate rule, which is evaluated first
	v := engine.Evaluate(sig)
	if v.Code != CodeSuspiciousScoreRate {
		t.Fatalf("first detected reason should win, got %+v", v)
	}

	sig.GameDuration = 0 // duration unknown: rate and duration rules skip
	v = engine.Evaluate(sig)
	if v.Rejected() {
		t.Fatalf("missing duration data should not reject by itself: %+v", v)
	}
}

func TestEngineScorePerAction(t *testing.T) {
	engine, _ := newTestEngine(t)

	sig := cleanSignals("0xplayer6")
	sig.Score = 45000
	sig.GameDuration = 60
	sig.ActionsCount = 4 // 11250 per action
	v := engine.Evaluate(sig)
	if v.Code != CodeSuspiciousPerAction {
		t.Fatalf("want %s, got %+v", CodeSuspiciousPerAction, v)
	}
}

func TestEngineRecordsIntegrityEvents(t *testing.T) {
	db := setupTestDB(t)
	engine := NewAntiCheatEngine(db, nil)

	sig := cleanSignals("0xplayer7")
	sig.Score = 60000
	sig.GameDuration = 5 // trips rate AND short-duration rules
	sig.ActionsCount = 2 // trips per-action too
	v := engine.Evaluate(sig)
	if !v.Rejected() {
		t.Fatal("expected rejection")
	}

	// every violated rule is logged even though only the first is returned
	var count int64
	if err := db.Model(&models.IntegrityEvent{}).
		Where("address = ?", sig.Address).
		Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 integrity events, got %d", count)
	}
}

func TestBaselineValidatorSpike(t *testing.T) {
	engine, scores := newTestEngine(t)
	db := engine.DB
	addr := "0xplayer8"

	// a small sample is never judged
	sig := cleanSignals(addr)
	sig.Score = 90000
	sig.GameDuration = 120
	sig.ActionsCount = 900
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("baseline fired with no history: %+v", v)
	}

	for i := 0; i < 10; i++ {
		if err := scores.RecordScore(db, addr, 1000, utcDay(), "tap-game", "dev-1"); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	v := engine.Evaluate(sig)
	if v.Code != CodeSuspiciousScore {
		t.Fatalf("want %s for a 90x spike, got %+v", CodeSuspiciousScore, v)
	}

	// a modest improvement stays clean
	sig.Score = 3000
	if v := engine.Evaluate(sig); v.Rejected() {
		t.Fatalf("modest improvement rejected: %+v", v)
	}
}
