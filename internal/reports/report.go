// Package reports persists finalized, immutable report records.
package reports

import (
	"time"

	"github.com/google/uuid"
)

// StatusCompleted is the only status the engine writes; later lifecycle
// changes are an external administrative concern.
const StatusCompleted = "completed"

// Record is a finalized report. Never mutated or deleted by the engine.
type Record struct {
	ID                 uuid.UUID
	ReportNumber       int64
	Status             string
	SenderKey          string
	ConversationNonce  uuid.UUID
	ObservationType    string
	ClassificationCode string
	ClassificationName string
	Location           string
	Severity           string
	StopWork           bool
	BreachSource       string
	ControlMeasure     string
	Reference          string
	ResponsiblePerson  string
	ImageKey           string
	ImageURL           string
	ImageCapturedAt    *time.Time
	CompletedAt        time.Time
}
