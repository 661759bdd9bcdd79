// Package crypto derives the symmetric key the wire codec seals every
// non-discovery packet with. The session layer has no per-peer public-key
// identity — every participant already shares the game password out of
// band — so key agreement collapses from the ECDH-per-recipient scheme
// this derivation pattern is normally paired with down to a single
// HKDF-SHA256 expansion of that shared secret.
package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the derived key length, sized for chacha20poly1305.
const KeySize = 32

// DeriveKey expands secret into a KeySize-byte key via HKDF-SHA256, using
// salt as the HKDF salt and info as the domain-separation label.
func DeriveKey(secret, salt []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
