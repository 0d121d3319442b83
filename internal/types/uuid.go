package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_WEBHOOK_EVENT        = "whe"
	UUID_PREFIX_PATIENT_SUBSCRIPTION = "psub"
	UUID_PREFIX_INVOICE              = "inv"
	UUID_PREFIX_RECOVERY_ATTEMPT     = "rec"
	UUID_PREFIX_NOTIFICATION         = "ntf"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex rec_01HZX3M8Q7Y4V6T2K9B5N0R1CD
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
