package services

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestEthereumVerifierRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	payload := CanonicalScorePayload(address, 5000, 1700000000000, "n1")
	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// present the signature the way wallets do, V as 27/28
	sig[64] += 27
	sigHex := "0x" + hex.EncodeToString(sig)

	verifier := EthereumVerifier{}
	if !verifier.Verify(address, payload, sigHex) {
		t.Fatal("valid signature rejected")
	}

	// any serialization mismatch must fail, no fuzzy matching
	tampered := CanonicalScorePayload(address, 5001, 1700000000000, "n1")
	if verifier.Verify(address, tampered, sigHex) {
		t.Fatal("signature accepted for a different payload")
	}

	otherKey, _ := crypto.GenerateKey()
	otherAddr := crypto.PubkeyToAddress(otherKey.PublicKey).Hex()
	if verifier.Verify(otherAddr, payload, sigHex) {
		t.Fatal("signature accepted for a different address")
	}

	if verifier.Verify(address, payload, "0xdeadbeef") {
		t.Fatal("malformed signature accepted")
	}
}

func TestCanonicalPayloadIsCaseInsensitiveOnAddress(t *testing.T) {
	a := CanonicalScorePayload("0xABCDEF0000000000000000000000000000000001", 1, 2, "n")
	b := CanonicalScorePayload("0xabcdef0000000000000000000000000000000001", 1, 2, "n")
	if string(a) != string(b) {
		t.Fatal("address casing changed the canonical payload")
	}
}
