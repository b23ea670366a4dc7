// Package idempotency validates client supplied idempotency keys and derives
// the storage keys replayed replies are kept under.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
	KeyPrefix    = "replay:v1"
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

func Validate(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case !validKeyPattern.MatchString(key):
		return ErrKeyInvalid
	}

	return nil
}

// ReplayKey scopes a client key to the user and the route it was sent to, so
// two users picking the same key never see each other's replies.
func ReplayKey(userID int64, method, path, key string) string {
	h := sha256.New()
	for _, part := range []string{strconv.FormatInt(userID, 10), method, path, key} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	return KeyPrefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// ClaimKey is where the in-flight marker for a replay key lives.
func ClaimKey(replayKey string) string {
	return replayKey + ":claim"
}
