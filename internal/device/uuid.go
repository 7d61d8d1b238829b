package device

import (
	"encoding/hex"
	"fmt"

	"github.com/srg/biscuit/internal/bledb"
)

// NormalizeUUID returns the form used for every cache and journal key: lowercase hex with
// no dashes or 0x prefix. SIG base UUIDs collapse to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

// ShortenUUID returns at most the first eight characters, for log fields and goroutine names.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// ValidateUUID normalizes user supplied UUIDs and rejects anything that is not a 16, 32 or
// 128-bit hex UUID.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, raw := range uuids {
		if raw == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		u := NormalizeUUID(raw)
		switch len(u) {
		case 4, 8, 32:
		default:
			return nil, fmt.Errorf("invalid UUID length at index %d: %q", i, raw)
		}
		if _, err := hex.DecodeString(u); err != nil {
			return nil, fmt.Errorf("invalid UUID at index %d: %q is not hex", i, raw)
		}
		result = append(result, u)
	}
	return result, nil
}
