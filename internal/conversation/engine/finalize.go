package engine

import (
	"context"
	"strings"
	"time"

	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/internal/reports"
	"safetyreport_backend/platform/logger"
)

// ReportStore writes finalized reports. Create is idempotent on the
// (sender key, conversation nonce) pair: a replay returns the existing
// record with created=false instead of inserting twice.
type ReportStore interface {
	Create(ctx context.Context, rec reports.Record) (reports.Record, bool, error)
}

// FinalizationHandler freezes the draft into an immutable report and ends
// the conversation.
type FinalizationHandler struct {
	reports ReportStore
	now     func() time.Time
	log     *logger.Logger
}

func NewFinalizationHandler(store ReportStore, log *logger.Logger) *FinalizationHandler {
	return &FinalizationHandler{reports: store, now: time.Now, log: log}
}

func (h *FinalizationHandler) Handle(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Outcome{Kind: OutcomeStay, Reply: msgAskResponsiblePerson}, nil
	}

	draft := state.Draft
	draft.ResponsiblePerson = text

	rec := reports.Record{
		SenderKey:          state.UserKey,
		ConversationNonce:  state.Nonce,
		ObservationType:    draft.ObservationType,
		ClassificationCode: draft.ClassificationCode,
		ClassificationName: draft.ClassificationName,
		Location:           draft.Location,
		Severity:           draft.Severity,
		StopWork:           draft.StopWork,
		BreachSource:       draft.BreachSource,
		ControlMeasure:     draft.ControlMeasure,
		Reference:          draft.Reference,
		ResponsiblePerson:  draft.ResponsiblePerson,
		ImageKey:           draft.ImageKey,
		ImageURL:           draft.ImageURL,
		ImageCapturedAt:    draft.ImageCapturedAt,
		CompletedAt:        h.now().UTC(),
	}

	stored, created, err := h.reports.Create(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}
	if !created {
		h.log.Info("report replay detected, reusing existing record",
			"report_number", stored.ReportNumber, "user_key", state.UserKey)
	}

	return Outcome{
		Kind:          OutcomeFinalize,
		Draft:         draft,
		Reply:         summaryReply(stored),
		ReplyImageURL: stored.ImageURL,
	}, nil
}
