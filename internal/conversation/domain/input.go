package domain

import (
	"regexp"
	"strings"
)

// Message is an inbound user message, already normalized by the ingestion
// boundary. Exactly one of Text/ImageRef is semantically primary.
type Message struct {
	SenderKey string
	Text      string
	ImageRef  string
}

// HasImage reports whether the message carries an image.
func (m Message) HasImage() bool {
	return strings.TrimSpace(m.ImageRef) != ""
}

var resetKeywords = map[string]struct{}{
	"stop":   {},
	"reset":  {},
	"cancel": {},
	"menu":   {},
}

// IsResetKeyword reports whether text is a reset/cancel command. Recognized
// in every state.
func IsResetKeyword(text string) bool {
	_, ok := resetKeywords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

var affirmatives = map[string]struct{}{
	"yes":     {},
	"y":       {},
	"yeah":    {},
	"yep":     {},
	"correct": {},
	"ok":      {},
	"okay":    {},
}

var negatives = map[string]struct{}{
	"no":        {},
	"n":         {},
	"nope":      {},
	"incorrect": {},
	"false":     {},
}

// ParseYesNo resolves an explicit yes/no answer. The second return value is
// false when the input is neither, in which case the caller re-prompts.
func ParseYesNo(text string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if _, ok := affirmatives[normalized]; ok {
		return true, true
	}
	if normalized == "true" || normalized == "confirm" {
		return true, true
	}
	if _, ok := negatives[normalized]; ok {
		return false, true
	}
	return false, false
}

// ConfirmInput is the shape of a reply to the classification-confirmation
// question.
type ConfirmInput int

const (
	// ConfirmAffirm keeps the AI-assigned classification.
	ConfirmAffirm ConfirmInput = iota
	// ConfirmCode is a taxonomy-code token to look up directly.
	ConfirmCode
	// ConfirmFreeText is anything else, resolved via the text mapper.
	ConfirmFreeText
)

var codePattern = regexp.MustCompile(`^[A-Za-z]{1,3}[0-9]{1,3}$`)

// ClassifyConfirmInput applies the ordered input classifiers for the
// confirmation step: affirmative keyword first, then taxonomy-code token,
// then free text. First match wins.
func ClassifyConfirmInput(text string) ConfirmInput {
	trimmed := strings.TrimSpace(text)
	if _, ok := affirmatives[strings.ToLower(trimmed)]; ok {
		return ConfirmAffirm
	}
	if codePattern.MatchString(trimmed) {
		return ConfirmCode
	}
	return ConfirmFreeText
}
