package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Verifier checks that an HTTP delivery genuinely originates from the
// platform. The public key is decoded once at construction and shared
// read-only across all concurrent requests.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifier creates a verifier from the platform's hex-encoded public key
func NewVerifier(publicKeyHex string) (*Verifier, error) {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: got %d bytes, want %d", len(key), ed25519.PublicKeySize)
	}

	return &Verifier{publicKey: ed25519.PublicKey(key)}, nil
}

// Verify checks the hex-encoded signature over the raw timestamp bytes
// concatenated with the raw request body. No normalization or re-encoding
// of either part; the bytes are verified exactly as they arrived.
func (v *Verifier) Verify(timestamp string, body []byte, signatureHex string) bool {
	if timestamp == "" || signatureHex == "" {
		return false
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}

	message := make([]byte, 0, len(timestamp)+len(body))
	message = append(message, timestamp...)
	message = append(message, body...)

	return ed25519.Verify(v.publicKey, message, signature)
}
