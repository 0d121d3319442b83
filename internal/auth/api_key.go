package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/telecare/billingcore/internal/config"
)

// HashAPIKey creates a SHA-256 hash of the API key
func HashAPIKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ValidateInternalAPIKey checks the key used by schedulers calling the cron
// endpoints. An unset key rejects every request.
func ValidateInternalAPIKey(cfg *config.Configuration, key string) bool {
	expected := cfg.Server.InternalAPIKey
	if expected == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashAPIKey(key)), []byte(HashAPIKey(expected))) == 1
}
