// Package domain defines the conversation state machine's core types:
// state tags, the accumulating draft report, and input classification.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StateTag identifies where a conversation is in the reporting flow.
type StateTag string

const (
	StateNone                          StateTag = "NONE"
	StateAwaitingLocation              StateTag = "AWAITING_LOCATION"
	StateAwaitingClassificationConfirm StateTag = "AWAITING_CLASSIFICATION_CONFIRM"
	StateAwaitingBreachSource          StateTag = "AWAITING_BREACH_SOURCE"
	StateAwaitingSeverity              StateTag = "AWAITING_SEVERITY"
	StateAwaitingStopWorkConfirm       StateTag = "AWAITING_STOP_WORK_CONFIRM"
	StateAwaitingResponsiblePerson     StateTag = "AWAITING_RESPONSIBLE_PERSON"
)

// Severity levels accepted at the severity step. High is the tier that
// triggers the stop-work gate.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// ParseSeverity resolves user input to a severity level. It accepts the
// level names case-insensitively and the numeric shortcuts 1/2/3 offered in
// the severity prompt.
func ParseSeverity(input string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "1", "HIGH":
		return SeverityHigh, true
	case "2", "MEDIUM":
		return SeverityMedium, true
	case "3", "LOW":
		return SeverityLow, true
	}
	return "", false
}

// Draft holds the report fields accumulated over the conversation. It is
// persisted as JSON inside the conversation state row.
type Draft struct {
	ObservationType    string     `json:"observationType,omitempty"`
	ClassificationCode string     `json:"classificationCode,omitempty"`
	ClassificationName string     `json:"classificationName,omitempty"`
	Location           string     `json:"location,omitempty"`
	BreachSource       string     `json:"breachSource,omitempty"`
	Severity           string     `json:"severity,omitempty"`
	StopWork           bool       `json:"stopWork,omitempty"`
	ControlMeasure     string     `json:"controlMeasure,omitempty"`
	Reference          string     `json:"reference,omitempty"`
	ResponsiblePerson  string     `json:"responsiblePerson,omitempty"`
	ImageKey           string     `json:"imageKey,omitempty"`
	ImageURL           string     `json:"imageUrl,omitempty"`
	ImageCapturedAt    *time.Time `json:"imageCapturedAt,omitempty"`
}

// State is one user's in-flight conversation. At most one State exists per
// user key; the Nonce identifies this particular conversation attempt and
// keys idempotent finalization.
type State struct {
	UserKey   string
	Tag       StateTag
	Nonce     uuid.UUID
	Draft     Draft
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stale reports whether the state has been inactive longer than ttl.
// Stale states are treated as NONE on the next message.
func (s State) Stale(ttl time.Duration, now time.Time) bool {
	if s.Tag == StateNone {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
