package stream

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the sensor handshake signature: the nonce, timestamp, and API
// key are hashed, then the hex digest is salted with the secret and hashed
// again. The sensor verifies the same construction server-side.
func Sign(secret, nonce, apiKey, ts string) string {
	h1 := sha256.Sum256([]byte(nonce + ts + apiKey))
	h2 := sha256.Sum256([]byte(hex.EncodeToString(h1[:]) + secret))
	return hex.EncodeToString(h2[:])
}
