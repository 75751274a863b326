// Package models holds the forum user: an identity keyed by wallet address.
package models

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
)

// User is created on first sight of a wallet address and never mutated.
type User struct {
	ID            id.UserID
	WalletAddress string
	CreatedAt     time.Time
}

func NewUser(userID id.UserID, walletAddress string, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	addr, err := ChecksumAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	return &User{ID: userID, WalletAddress: addr, CreatedAt: now}, nil
}

// ChecksumAddress validates an Ethereum address and returns its EIP-55
// mixed-case form. Input case is ignored, so "0xABC..." and "0xabc..." map
// to the same stored value.
func ChecksumAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", dErrors.New(dErrors.CodeValidation, "wallet_address must start with 0x")
	}
	lower := strings.ToLower(trimmed[2:])
	if len(lower) != 40 {
		return "", dErrors.New(dErrors.CodeValidation, "wallet_address must be 20 bytes")
	}
	if _, err := hex.DecodeString(lower); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "wallet_address must be hex")
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		// High nibble for even positions, low nibble for odd.
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}
