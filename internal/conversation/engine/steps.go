package engine

import (
	"context"
	"errors"
	"strings"

	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/platform/logger"
)

// LocationClassificationHandler covers the linear middle of the flow:
// location capture, classification confirmation, and breach source. These
// steps are pure draft mutations; the only external call is the text mapper
// on the free-text correction path.
type LocationClassificationHandler struct {
	mapper   ai.TextMapper
	taxonomy SnapshotProvider
	log      *logger.Logger
}

func NewLocationClassificationHandler(mapper ai.TextMapper, taxonomy SnapshotProvider, log *logger.Logger) *LocationClassificationHandler {
	return &LocationClassificationHandler{mapper: mapper, taxonomy: taxonomy, log: log}
}

func (h *LocationClassificationHandler) Handle(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	switch state.Tag {
	case domain.StateAwaitingLocation:
		return h.handleLocation(state, msg)
	case domain.StateAwaitingClassificationConfirm:
		return h.handleConfirm(ctx, state, msg)
	case domain.StateAwaitingBreachSource:
		return h.handleBreachSource(state, msg)
	}
	return Outcome{Kind: OutcomeStay, Reply: msgInternalError}, nil
}

func (h *LocationClassificationHandler) handleLocation(state domain.State, msg domain.Message) (Outcome, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Outcome{Kind: OutcomeStay, Reply: msgAskLocation}, nil
	}

	draft := state.Draft
	draft.Location = text

	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingClassificationConfirm,
		Draft: draft,
		Reply: confirmReply(draft.ClassificationCode, draft.ClassificationName),
	}, nil
}

func (h *LocationClassificationHandler) handleConfirm(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	draft := state.Draft

	switch domain.ClassifyConfirmInput(msg.Text) {
	case domain.ConfirmAffirm:
		// Keep the AI-assigned classification.

	case domain.ConfirmCode:
		snapshot, err := h.taxonomy.Snapshot(ctx)
		if err != nil {
			return Outcome{}, err
		}
		entry, ok := snapshot.Lookup(strings.TrimSpace(msg.Text))
		if !ok {
			return Outcome{Kind: OutcomeStay, Reply: confirmRetryReply(snapshot)}, nil
		}
		draft.ClassificationCode = entry.Code
		draft.ClassificationName = entry.Name

	case domain.ConfirmFreeText:
		snapshot, err := h.taxonomy.Snapshot(ctx)
		if err != nil {
			return Outcome{}, err
		}
		match, err := h.mapper.MapToTaxonomy(ctx, msg.Text, snapshot)
		if errors.Is(err, ai.ErrNoMatch) {
			return Outcome{Kind: OutcomeStay, Reply: confirmRetryReply(snapshot)}, nil
		}
		if err != nil {
			// Mapper trouble blocks progress the same way a no-match does.
			h.log.AdapterError("text_mapper", err)
			return Outcome{Kind: OutcomeStay, Reply: confirmRetryReply(snapshot)}, nil
		}
		draft.ClassificationCode = match.Code
		draft.ClassificationName = match.Name
	}

	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingBreachSource,
		Draft: draft,
		Reply: msgAskBreachSource,
	}, nil
}

func (h *LocationClassificationHandler) handleBreachSource(state domain.State, msg domain.Message) (Outcome, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Outcome{Kind: OutcomeStay, Reply: msgAskBreachSource}, nil
	}

	draft := state.Draft
	draft.BreachSource = text

	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingSeverity,
		Draft: draft,
		Reply: msgAskSeverity,
	}, nil
}
