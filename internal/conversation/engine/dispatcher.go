package engine

import (
	"context"
	"errors"
	"time"

	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/internal/conversation/repository"
	"safetyreport_backend/platform/logger"

	"github.com/google/uuid"
)

// StateStore is the conversation state persistence contract. The dispatcher
// is the only caller; handlers never touch it.
type StateStore interface {
	Get(ctx context.Context, userKey string) (domain.State, error)
	Create(ctx context.Context, state domain.State) error
	UpdateIf(ctx context.Context, userKey string, expected, next domain.StateTag, draft domain.Draft) error
	DeleteIf(ctx context.Context, userKey string, expected domain.StateTag) error
	Delete(ctx context.Context, userKey string) error
}

// Notifier delivers outbound replies. Delivery is best-effort.
type Notifier interface {
	Send(ctx context.Context, recipientKey, text, imageURL string) error
}

// Dispatcher routes one inbound message through the state machine. State is
// always persisted before the reply goes out, and every transition is a
// conditional write: a conflict means a stale duplicate, which is dropped.
type Dispatcher struct {
	states   StateStore
	notifier Notifier
	start    Handler
	handlers map[domain.StateTag]Handler
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewDispatcher(
	states StateStore,
	notifier Notifier,
	start *StartHandler,
	steps *LocationClassificationHandler,
	severity *SeverityAdviceHandler,
	finalize *FinalizationHandler,
	ttl time.Duration,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		states:   states,
		notifier: notifier,
		start:    start,
		handlers: map[domain.StateTag]Handler{
			domain.StateAwaitingLocation:              steps,
			domain.StateAwaitingClassificationConfirm: steps,
			domain.StateAwaitingBreachSource:          steps,
			domain.StateAwaitingSeverity:              severity,
			domain.StateAwaitingStopWorkConfirm:       severity,
			domain.StateAwaitingResponsiblePerson:     finalize,
		},
		ttl: ttl,
		now: time.Now,
		log: log,
	}
}

// Handle processes one delivered queue message. A nil return acknowledges
// the message; an error hands it back to the queue for redelivery.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.Message) error {
	log := d.log.WithUserKey(msg.SenderKey)

	if domain.IsResetKeyword(msg.Text) {
		if err := d.states.Delete(ctx, msg.SenderKey); err != nil {
			log.DatabaseError("reset_delete", err)
			d.reply(ctx, msg.SenderKey, msgInternalError, "")
			return err
		}
		d.reply(ctx, msg.SenderKey, msgResetConfirm, "")
		return nil
	}

	state, err := d.loadState(ctx, msg.SenderKey, log)
	if err != nil {
		d.reply(ctx, msg.SenderKey, msgInternalError, "")
		return err
	}

	handler, prompt := d.selectHandler(state, msg)
	if handler == nil {
		d.reply(ctx, msg.SenderKey, prompt, "")
		return nil
	}

	outcome, err := handler.Handle(ctx, state, msg)
	if err != nil {
		log.Error("handler failed", "state", string(state.Tag), "error", err.Error())
		d.reply(ctx, msg.SenderKey, msgInternalError, "")
		return err
	}

	dropped, err := d.persist(ctx, state, outcome)
	if err != nil {
		log.DatabaseError("persist_transition", err)
		d.reply(ctx, msg.SenderKey, msgInternalError, "")
		return err
	}
	if dropped {
		log.Info("stale duplicate dropped", "state", string(state.Tag))
		return nil
	}

	if outcome.Kind != OutcomeStay {
		next := string(outcome.Next)
		if outcome.Kind == OutcomeFinalize {
			next = "FINALIZED"
		}
		log.StateTransition(msg.SenderKey, string(state.Tag), next)
	}

	d.reply(ctx, msg.SenderKey, outcome.Reply, outcome.ReplyImageURL)
	return nil
}

// loadState fetches the user's state, treating absence and staleness as a
// fresh conversation.
func (d *Dispatcher) loadState(ctx context.Context, userKey string, log *logger.Logger) (domain.State, error) {
	state, err := d.states.Get(ctx, userKey)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.State{UserKey: userKey, Tag: domain.StateNone}, nil
	}
	if err != nil {
		log.DatabaseError("load_state", err)
		return domain.State{}, err
	}

	if state.Stale(d.ttl, d.now()) {
		log.Info("stale conversation discarded", "state", string(state.Tag))
		if err := d.states.Delete(ctx, userKey); err != nil {
			log.DatabaseError("stale_delete", err)
			return domain.State{}, err
		}
		return domain.State{UserKey: userKey, Tag: domain.StateNone}, nil
	}

	return state, nil
}

// selectHandler resolves the handler for the current state. A nil handler
// with a prompt means "reply and acknowledge without dispatching".
func (d *Dispatcher) selectHandler(state domain.State, msg domain.Message) (Handler, string) {
	if state.Tag == domain.StateNone {
		if !msg.HasImage() {
			return nil, msgSendPhotoToStart
		}
		return d.start, ""
	}

	handler, ok := d.handlers[state.Tag]
	if !ok {
		// Unknown tag in storage. The user can still escape via a reset
		// keyword, so reply apologetically and acknowledge.
		d.log.Error("no handler for state", "state", string(state.Tag))
		return nil, msgInternalError
	}
	return handler, ""
}

// persist applies the outcome's state transition. The returned bool reports
// a conditional-write conflict (stale duplicate), which the caller drops
// without replying.
func (d *Dispatcher) persist(ctx context.Context, state domain.State, outcome Outcome) (dropped bool, err error) {
	switch outcome.Kind {
	case OutcomeStay:
		return false, nil

	case OutcomeAdvance:
		if state.Tag == domain.StateNone {
			err = d.states.Create(ctx, domain.State{
				UserKey: state.UserKey,
				Tag:     outcome.Next,
				Nonce:   uuid.New(),
				Draft:   outcome.Draft,
			})
		} else {
			err = d.states.UpdateIf(ctx, state.UserKey, state.Tag, outcome.Next, outcome.Draft)
		}

	case OutcomeFinalize:
		err = d.states.DeleteIf(ctx, state.UserKey, state.Tag)
	}

	if errors.Is(err, repository.ErrStateConflict) {
		return true, nil
	}
	return false, err
}

// reply sends the outbound message. Failures are logged and swallowed: the
// state transition already committed and must not be reprocessed.
func (d *Dispatcher) reply(ctx context.Context, recipientKey, text, imageURL string) {
	if text == "" {
		return
	}
	if err := d.notifier.Send(ctx, recipientKey, text, imageURL); err != nil {
		d.log.DeliveryError(recipientKey, err)
	}
}
