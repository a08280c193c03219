package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// UpdateKey identifies a Telegram update. Redelivered updates keep their ID.
func UpdateKey(updateID int) string {
	return GenerateKey("update", strconv.Itoa(updateID))
}

// CallbackKey identifies a button press when no update ID is available.
func CallbackKey(callbackID string) string {
	return GenerateKey("callback", callbackID)
}

// GenerateKey hashes the joined parts into a fixed-length key.
func GenerateKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
