package services

import (
	"testing"
	"time"
)

func TestCooldownNeverPlayed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCooldownService(db)

	status, err := svc.Check("0xcool0000000000000000000000000000000001", "daily-spin")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.OnCooldown {
		t.Fatal("fresh pair reported on cooldown")
	}
}

func TestCooldownGate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCooldownService(db)
	addr := "0xcool0000000000000000000000000000000002"

	if err := svc.Touch(db, addr, "daily-spin", time.Now().UnixMilli()); err != nil {
		t.Fatalf("touch: %v", err)
	}

	status, err := svc.Check(addr, "daily-spin")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !status.OnCooldown {
		t.Fatal("immediate repeat was not gated")
	}
	if status.RemainingMs <= 0 || status.RemainingMs > RewardCooldown.Milliseconds() {
		t.Fatalf("implausible remaining time: %dms", status.RemainingMs)
	}

	// a different activity for the same address is independent
	other, _ := svc.Check(addr, "weekly-chest")
	if other.OnCooldown {
		t.Fatal("unrelated activity reported on cooldown")
	}
}

func TestCooldownExpiresAfterWindow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCooldownService(db)
	addr := "0xcool0000000000000000000000000000000003"

	past := time.Now().Add(-RewardCooldown - time.Second).UnixMilli()
	if err := svc.Touch(db, addr, "daily-spin", past); err != nil {
		t.Fatalf("touch: %v", err)
	}

	status, err := svc.Check(addr, "daily-spin")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.OnCooldown {
		t.Fatalf("cooldown still active %dms after the window", status.RemainingMs)
	}
}
