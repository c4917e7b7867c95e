package engine

import (
	"context"

	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/platform/logger"
)

// SeverityAdviceHandler records the severity, runs the retrieval-augmented
// safety check, and routes High-severity reports through the stop-work gate.
// Advice is a quality enhancement: retrieval or generation failure degrades
// to a generic advisory and the conversation proceeds.
type SeverityAdviceHandler struct {
	retriever ai.Retriever
	advisor   ai.AdviceGenerator
	log       *logger.Logger
}

func NewSeverityAdviceHandler(retriever ai.Retriever, advisor ai.AdviceGenerator, log *logger.Logger) *SeverityAdviceHandler {
	return &SeverityAdviceHandler{retriever: retriever, advisor: advisor, log: log}
}

func (h *SeverityAdviceHandler) Handle(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	switch state.Tag {
	case domain.StateAwaitingSeverity:
		return h.handleSeverity(ctx, state, msg)
	case domain.StateAwaitingStopWorkConfirm:
		return h.handleStopWork(state, msg)
	}
	return Outcome{Kind: OutcomeStay, Reply: msgInternalError}, nil
}

func (h *SeverityAdviceHandler) handleSeverity(ctx context.Context, state domain.State, msg domain.Message) (Outcome, error) {
	severity, ok := domain.ParseSeverity(msg.Text)
	if !ok {
		return Outcome{Kind: OutcomeStay, Reply: msgAskSeverity}, nil
	}

	draft := state.Draft
	draft.Severity = severity
	draft.ControlMeasure, draft.Reference = h.safetyCheck(ctx, draft, severity)

	if severity == domain.SeverityHigh {
		return Outcome{
			Kind:  OutcomeAdvance,
			Next:  domain.StateAwaitingStopWorkConfirm,
			Draft: draft,
			Reply: severityReply(severity, draft.ControlMeasure, true),
		}, nil
	}

	draft.StopWork = false
	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingResponsiblePerson,
		Draft: draft,
		Reply: severityReply(severity, draft.ControlMeasure, false),
	}, nil
}

// safetyCheck retrieves protocol snippets and generates the control measure.
// Every failure path falls back to the generic advisory with no reference.
func (h *SeverityAdviceHandler) safetyCheck(ctx context.Context, draft domain.Draft, severity string) (advice, reference string) {
	snippets, err := h.retriever.Search(ctx, draft.ClassificationCode, severity)
	if err != nil {
		h.log.AdapterError("retriever", err)
		snippets = nil
	}

	classification := ai.Classification{
		ObservationType: draft.ObservationType,
		Code:            draft.ClassificationCode,
		Name:            draft.ClassificationName,
	}

	generated, err := h.advisor.Generate(ctx, classification, severity, snippets)
	if err != nil {
		h.log.AdapterError("advice_generator", err)
		return genericAdvice, ""
	}
	if generated.Text == "" {
		return genericAdvice, ""
	}

	return generated.Text, generated.SourceRef
}

func (h *SeverityAdviceHandler) handleStopWork(state domain.State, msg domain.Message) (Outcome, error) {
	stopWork, ok := domain.ParseYesNo(msg.Text)
	if !ok {
		return Outcome{Kind: OutcomeStay, Reply: msgAskStopWork}, nil
	}

	draft := state.Draft
	draft.StopWork = stopWork

	return Outcome{
		Kind:  OutcomeAdvance,
		Next:  domain.StateAwaitingResponsiblePerson,
		Draft: draft,
		Reply: msgAskResponsiblePerson,
	}, nil
}
