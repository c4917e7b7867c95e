// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "SG"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// UserKey derives the conversation identity from a messaging-channel sender
// address. Channel prefixes such as "whatsapp:" are stripped before the
// number is normalized.
func UserKey(sender string) string {
	trimmed := strings.TrimSpace(sender)
	if idx := strings.IndexByte(trimmed, ':'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return NormalizeE164(trimmed)
}
