package engine

import (
	"context"

	"safetyreport_backend/internal/conversation/domain"
)

// OutcomeKind is what a handler decided to do with the conversation.
type OutcomeKind int

const (
	// OutcomeStay keeps the current state untouched and re-prompts.
	OutcomeStay OutcomeKind = iota
	// OutcomeAdvance transitions to Next with the updated draft.
	OutcomeAdvance
	// OutcomeFinalize means the report was written; the state row is deleted.
	OutcomeFinalize
)

// Outcome is a handler's verdict on one message. The dispatcher owns all
// persistence; handlers only describe the transition.
type Outcome struct {
	Kind          OutcomeKind
	Next          domain.StateTag
	Draft         domain.Draft
	Reply         string
	ReplyImageURL string
}

// Handler is the logic bound to one or more state tags.
type Handler interface {
	Handle(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error)
}
