// services/signature.go
package services

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureVerifier checks that a signature over the canonical payload was
// produced by the claimed address. The concrete scheme lives behind this
// interface so tests can stub it out.
type SignatureVerifier interface {
	Verify(address string, payload []byte, signature string) bool
}

// CanonicalScorePayload is the exact byte serialization of a submission that
// the client signs. Any deviation (field order, casing, separators) must fail
// verification, so no normalization beyond address lowercasing happens here.
func CanonicalScorePayload(address string, score int, ts int64, nonce string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d:%s", strings.ToLower(address), score, ts, nonce))
}

// EthereumVerifier recovers the signer from an EIP-191 personal-sign signature
// and compares it against the claimed address.
type EthereumVerifier struct{}

func (EthereumVerifier) Verify(address string, payload []byte, signature string) bool {
	sigHex := strings.TrimPrefix(signature, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != 65 {
		return false
	}
	// wallets emit V as 27/28, crypto.SigToPub wants 0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(payload), sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), address)
}
