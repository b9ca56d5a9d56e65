package services

import "testing"

func TestNonceSingleUse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNonceService(db)

	nonce, err := svc.Issue("0xAbC0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(nonce) < 32 {
		t.Fatalf("nonce too short: %d chars", len(nonce))
	}

	ok, err := svc.Matches("0xabc0000000000000000000000000000000000001", nonce)
	if err != nil || !ok {
		t.Fatalf("expected issued nonce to match, ok=%v err=%v", ok, err)
	}

	consumed, err := svc.Consume(db, "0xABC0000000000000000000000000000000000001", nonce)
	if err != nil || !consumed {
		t.Fatalf("expected first consume to succeed, ok=%v err=%v", consumed, err)
	}

	consumed, err = svc.Consume(db, "0xabc0000000000000000000000000000000000001", nonce)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if consumed {
		t.Fatal("nonce was consumed twice")
	}
}

func TestNonceMismatchDoesNotDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNonceService(db)

	addr := "0xabc0000000000000000000000000000000000002"
	nonce, err := svc.Issue(addr)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if consumed, _ := svc.Consume(db, addr, "not-the-nonce"); consumed {
		t.Fatal("mismatched nonce was consumed")
	}
	if consumed, _ := svc.Consume(db, addr, ""); consumed {
		t.Fatal("empty nonce was consumed")
	}

	// the real nonce must still be live
	if ok, _ := svc.Matches(addr, nonce); !ok {
		t.Fatal("nonce was deleted by a failed consume")
	}
}

func TestNonceReissueOverwrites(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNonceService(db)

	addr := "0xabc0000000000000000000000000000000000003"
	first, _ := svc.Issue(addr)
	second, _ := svc.Issue(addr)
	if first == second {
		t.Fatal("reissue returned the same nonce")
	}

	if ok, _ := svc.Matches(addr, first); ok {
		t.Fatal("stale nonce still matches after reissue")
	}
	if ok, _ := svc.Matches(addr, second); !ok {
		t.Fatal("fresh nonce does not match")
	}
}
