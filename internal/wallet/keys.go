// Package wallet owns the connection to a blockchain RPC endpoint and one of
// three signing backends, and executes transfers against it. Amounts are
// lamports everywhere inside this package; SOL conversion happens only at the
// presentation boundary.
package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// LamportsPerSOL converts between the chain's native unit and display units.
const LamportsPerSOL uint64 = 1_000_000_000

// Key errors.
var (
	ErrBadAddress = errors.New("invalid wallet address")
	ErrBadSecret  = errors.New("invalid secret key")
)

// Account is one authorized signing identity.
type Account struct {
	Address   string
	PublicKey ed25519.PublicKey
}

// DecodeAddress parses a base58 address into its 32-byte public key.
func DecodeAddress(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadAddress, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// ValidAddress reports whether the string decodes to a well-formed public key.
func ValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// EncodeAddress renders a public key as a base58 address.
func EncodeAddress(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

// DecodeSecret derives an ed25519 private key from a user-supplied secret in
// either base58 or base64 encoding. Accepted payloads are a 64-byte expanded
// key or a 32-byte seed.
func DecodeSecret(secret string) (ed25519.PrivateKey, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadSecret)
	}

	raw, err := base58.Decode(secret)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: neither base58 nor base64", ErrBadSecret)
		}
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("%w: unsupported key length %d", ErrBadSecret, len(raw))
	}
}
