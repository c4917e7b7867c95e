package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation/domain"
	"safetyreport_backend/internal/conversation/repository"
	"safetyreport_backend/internal/reports"
	"safetyreport_backend/internal/storage"
	"safetyreport_backend/internal/taxonomy"
	"safetyreport_backend/platform/logger"
)

const testUser = "+6591234567"

// fakeStateStore mirrors the conditional-write semantics of the pgx
// repository in memory.
type fakeStateStore struct {
	states map[string]domain.State
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]domain.State)}
}

func (s *fakeStateStore) Get(ctx context.Context, userKey string) (domain.State, error) {
	state, ok := s.states[userKey]
	if !ok {
		return domain.State{}, repository.ErrNotFound
	}
	return state, nil
}

func (s *fakeStateStore) Create(ctx context.Context, state domain.State) error {
	if _, exists := s.states[state.UserKey]; exists {
		return repository.ErrStateConflict
	}
	state.UpdatedAt = time.Now()
	s.states[state.UserKey] = state
	return nil
}

func (s *fakeStateStore) UpdateIf(ctx context.Context, userKey string, expected, next domain.StateTag, draft domain.Draft) error {
	state, ok := s.states[userKey]
	if !ok || state.Tag != expected {
		return repository.ErrStateConflict
	}
	state.Tag = next
	state.Draft = draft
	state.UpdatedAt = time.Now()
	s.states[userKey] = state
	return nil
}

func (s *fakeStateStore) DeleteIf(ctx context.Context, userKey string, expected domain.StateTag) error {
	state, ok := s.states[userKey]
	if !ok || state.Tag != expected {
		return repository.ErrStateConflict
	}
	delete(s.states, userKey)
	return nil
}

func (s *fakeStateStore) Delete(ctx context.Context, userKey string) error {
	delete(s.states, userKey)
	return nil
}

// fakeReportStore is idempotent on (senderKey, nonce) like the pgx repo.
type fakeReportStore struct {
	records map[string]reports.Record
	counter int64
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{records: make(map[string]reports.Record)}
}

func (s *fakeReportStore) Create(ctx context.Context, rec reports.Record) (reports.Record, bool, error) {
	key := rec.SenderKey + "/" + rec.ConversationNonce.String()
	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}
	s.counter++
	rec.ReportNumber = s.counter
	rec.Status = reports.StatusCompleted
	s.records[key] = rec
	return rec, true, nil
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) Send(ctx context.Context, recipientKey, text, imageURL string) error {
	n.sent = append(n.sent, text)
	return nil
}

func (n *fakeNotifier) last() string {
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1]
}

type fakeImages struct {
	err error
}

func (f *fakeImages) Save(ctx context.Context, mediaURL, senderKey string) (storage.Image, error) {
	if f.err != nil {
		return storage.Image{}, f.err
	}
	return storage.Image{
		Key:      senderKey + "/test.jpg",
		URL:      "https://storage.example.com/test.jpg",
		MIMEType: "image/jpeg",
		Data:     []byte("jpeg-bytes"),
	}, nil
}

type fakeSnapshots struct{}

func (fakeSnapshots) Snapshot(ctx context.Context) (taxonomy.Snapshot, error) {
	return taxonomy.Snapshot{
		Entries: []taxonomy.Entry{
			{Code: "A1", Name: "Confined Spaces", Category: "Work at Risk"},
			{Code: "A15", Name: "Working at Height", Category: "Work at Risk"},
			{Code: "A99", Name: "Others", Category: "General"},
		},
		Locations: []string{"Site Office", "Tower A"},
	}, nil
}

type fakeVision struct {
	result ai.Classification
	err    error
}

func (f *fakeVision) Classify(ctx context.Context, image ai.ImageInput, snapshot taxonomy.Snapshot) (ai.Classification, error) {
	if f.err != nil {
		return ai.Classification{}, f.err
	}
	return f.result, nil
}

type fakeMapper struct {
	match ai.Match
	err   error
}

func (f *fakeMapper) MapToTaxonomy(ctx context.Context, text string, snapshot taxonomy.Snapshot) (ai.Match, error) {
	if f.err != nil {
		return ai.Match{}, f.err
	}
	return f.match, nil
}

type fakeRetriever struct {
	snippets []ai.Snippet
}

func (f *fakeRetriever) Search(ctx context.Context, code, severity string) ([]ai.Snippet, error) {
	return f.snippets, nil
}

type fakeAdvisor struct {
	advice ai.Advice
	err    error
}

func (f *fakeAdvisor) Generate(ctx context.Context, c ai.Classification, severity string, snippets []ai.Snippet) (ai.Advice, error) {
	if f.err != nil {
		return ai.Advice{}, f.err
	}
	return f.advice, nil
}

type testRig struct {
	dispatcher *Dispatcher
	states     *fakeStateStore
	reports    *fakeReportStore
	notifier   *fakeNotifier
	vision     *fakeVision
	mapper     *fakeMapper
}

func newTestRig() *testRig {
	log := logger.New("development")
	states := newFakeStateStore()
	reportStore := newFakeReportStore()
	notifier := &fakeNotifier{}
	vision := &fakeVision{result: ai.Classification{
		ObservationType: "Unsafe Condition",
		Code:            "A15",
		Name:            "Working at Height",
	}}
	mapper := &fakeMapper{err: ai.ErrNoMatch}

	start := NewStartHandler(&fakeImages{}, fakeSnapshots{}, vision, log)
	steps := NewLocationClassificationHandler(mapper, fakeSnapshots{}, log)
	severity := NewSeverityAdviceHandler(
		&fakeRetriever{snippets: []ai.Snippet{{Text: "Use fall arrest systems.", Source: "safety-manual.pdf"}}},
		&fakeAdvisor{advice: ai.Advice{Text: "Install guardrails and verify harness use.", SourceRef: "safety-manual.pdf"}},
		log,
	)
	finalize := NewFinalizationHandler(reportStore, log)

	dispatcher := NewDispatcher(states, notifier, start, steps, severity, finalize, 24*time.Hour, log)

	return &testRig{
		dispatcher: dispatcher,
		states:     states,
		reports:    reportStore,
		notifier:   notifier,
		vision:     vision,
		mapper:     mapper,
	}
}

func (r *testRig) send(t *testing.T, text, imageRef string) {
	t.Helper()
	err := r.dispatcher.Handle(context.Background(), domain.Message{
		SenderKey: testUser,
		Text:      text,
		ImageRef:  imageRef,
	})
	if err != nil {
		t.Fatalf("Handle(%q, %q) returned error: %v", text, imageRef, err)
	}
}

func (r *testRig) stateTag(t *testing.T) domain.StateTag {
	t.Helper()
	state, ok := r.states.states[testUser]
	if !ok {
		t.Fatal("expected conversation state to exist")
	}
	return state.Tag
}

func TestFullConversationHighSeverity(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	if got := rig.stateTag(t); got != domain.StateAwaitingLocation {
		t.Fatalf("after photo: state = %s, want %s", got, domain.StateAwaitingLocation)
	}
	if !strings.Contains(rig.notifier.last(), "A15 Working at Height") {
		t.Fatalf("classification reply missing category: %q", rig.notifier.last())
	}

	rig.send(t, "Site Office", "")
	if got := rig.stateTag(t); got != domain.StateAwaitingClassificationConfirm {
		t.Fatalf("after location: state = %s", got)
	}

	rig.send(t, "Yes", "")
	if got := rig.stateTag(t); got != domain.StateAwaitingBreachSource {
		t.Fatalf("after confirm: state = %s", got)
	}

	rig.send(t, "Subcontractor", "")
	if got := rig.stateTag(t); got != domain.StateAwaitingSeverity {
		t.Fatalf("after breach source: state = %s", got)
	}

	rig.send(t, "High", "")
	if got := rig.stateTag(t); got != domain.StateAwaitingStopWorkConfirm {
		t.Fatalf("High severity must open the stop-work gate, got %s", got)
	}

	rig.send(t, "Yes", "")
	if got := rig.stateTag(t); got != domain.StateAwaitingResponsiblePerson {
		t.Fatalf("after stop-work: state = %s", got)
	}

	rig.send(t, "J. Smith", "")

	if _, exists := rig.states.states[testUser]; exists {
		t.Fatal("conversation state must be deleted after finalization")
	}
	if len(rig.reports.records) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(rig.reports.records))
	}

	for _, rec := range rig.reports.records {
		if rec.Severity != domain.SeverityHigh {
			t.Fatalf("severity = %q, want High", rec.Severity)
		}
		if !rec.StopWork {
			t.Fatal("stopWork must be true")
		}
		if rec.ResponsiblePerson != "J. Smith" {
			t.Fatalf("responsiblePerson = %q", rec.ResponsiblePerson)
		}
		if rec.Location != "Site Office" || rec.BreachSource != "Subcontractor" {
			t.Fatalf("draft fields not frozen: %+v", rec)
		}
	}

	if !strings.Contains(rig.notifier.last(), "Log ID 1") {
		t.Fatalf("summary missing report number: %q", rig.notifier.last())
	}
}

func TestMediumSeveritySkipsStopWorkGate(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Tower A", "")
	rig.send(t, "Yes", "")
	rig.send(t, "Equipment", "")
	rig.send(t, "2", "")

	if got := rig.stateTag(t); got != domain.StateAwaitingResponsiblePerson {
		t.Fatalf("medium severity must skip the stop-work gate, got %s", got)
	}

	rig.send(t, "Foreman Lee", "")
	for _, rec := range rig.reports.records {
		if rec.StopWork {
			t.Fatal("stopWork must default to false below High severity")
		}
		if rec.Severity != domain.SeverityMedium {
			t.Fatalf("severity = %q, want Medium", rec.Severity)
		}
	}
}

func TestInvalidSeverityIsStable(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Basement", "")
	rig.send(t, "Yes", "")
	rig.send(t, "Worker", "")

	for i := 0; i < 3; i++ {
		rig.send(t, "very bad", "")
		if got := rig.stateTag(t); got != domain.StateAwaitingSeverity {
			t.Fatalf("invalid severity must not advance state, got %s", got)
		}
	}
	if !strings.Contains(rig.notifier.last(), "1. High") {
		t.Fatalf("expected corrective severity prompt, got %q", rig.notifier.last())
	}
}

func TestResetKeywordFromEveryState(t *testing.T) {
	steps := []struct {
		text  string
		image string
	}{
		{"", "https://media.example.com/photo.jpg"},
		{"Site Office", ""},
		{"Yes", ""},
		{"Subcontractor", ""},
		{"High", ""},
		{"Yes", ""},
	}

	for depth := 1; depth <= len(steps); depth++ {
		rig := newTestRig()
		for i := 0; i < depth; i++ {
			rig.send(t, steps[i].text, steps[i].image)
		}

		rig.send(t, "cancel", "")
		if _, exists := rig.states.states[testUser]; exists {
			t.Fatalf("reset at depth %d left conversation state behind", depth)
		}
		if len(rig.reports.records) != 0 {
			t.Fatalf("reset at depth %d must not create a report", depth)
		}
	}
}

func TestVisionFailureLeavesNoState(t *testing.T) {
	rig := newTestRig()
	rig.vision.err = errors.New("model timeout")

	rig.send(t, "", "https://media.example.com/photo.jpg")

	if _, exists := rig.states.states[testUser]; exists {
		t.Fatal("classifier failure must not create conversation state")
	}
	if !strings.Contains(rig.notifier.last(), "try sending it again") {
		t.Fatalf("expected resend prompt, got %q", rig.notifier.last())
	}
}

func TestTextWithoutStatePromptsForPhoto(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "hello", "")

	if _, exists := rig.states.states[testUser]; exists {
		t.Fatal("plain text at NONE must not create state")
	}
	if !strings.Contains(rig.notifier.last(), "send a photo") {
		t.Fatalf("expected photo prompt, got %q", rig.notifier.last())
	}
}

func TestDuplicateDeliveryIsDropped(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Site Office", "")

	// Replay the location message against the already-advanced state by
	// simulating the worker that read the old state.
	stale := domain.State{UserKey: testUser, Tag: domain.StateAwaitingLocation}
	outcome := Outcome{Kind: OutcomeAdvance, Next: domain.StateAwaitingClassificationConfirm, Draft: stale.Draft}
	dropped, err := rig.dispatcher.persist(context.Background(), stale, outcome)
	if err != nil {
		t.Fatalf("persist returned error: %v", err)
	}
	if !dropped {
		t.Fatal("conditional write against a stale tag must be dropped")
	}

	if got := rig.stateTag(t); got != domain.StateAwaitingClassificationConfirm {
		t.Fatalf("duplicate delivery corrupted state: %s", got)
	}
}

func TestFinalizationIsIdempotent(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Site Office", "")
	rig.send(t, "Yes", "")
	rig.send(t, "Subcontractor", "")
	rig.send(t, "3", "")

	// Capture the state as a second worker would have read it.
	replayed := rig.states.states[testUser]

	rig.send(t, "J. Smith", "")
	if len(rig.reports.records) != 1 {
		t.Fatalf("expected one report, got %d", len(rig.reports.records))
	}

	// Redeliver the final message with the pre-finalize state: the report
	// write reuses the existing record and the state delete conflicts.
	finalize := NewFinalizationHandler(rig.reports, logger.New("development"))
	outcome, err := finalize.Handle(context.Background(), replayed, domain.Message{SenderKey: testUser, Text: "J. Smith"})
	if err != nil {
		t.Fatalf("replayed finalize returned error: %v", err)
	}
	if outcome.Kind != OutcomeFinalize {
		t.Fatalf("outcome kind = %d", outcome.Kind)
	}
	if len(rig.reports.records) != 1 {
		t.Fatalf("replay created a second report: %d", len(rig.reports.records))
	}

	dropped, err := rig.dispatcher.persist(context.Background(), replayed, outcome)
	if err != nil {
		t.Fatalf("persist returned error: %v", err)
	}
	if !dropped {
		t.Fatal("replayed finalize delete must conflict and be dropped")
	}
}

func TestStaleStateTreatedAsFresh(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")

	state := rig.states.states[testUser]
	state.UpdatedAt = time.Now().Add(-25 * time.Hour)
	rig.states.states[testUser] = state

	// A text message against a stale conversation prompts for a photo.
	rig.send(t, "Site Office", "")
	if _, exists := rig.states.states[testUser]; exists {
		t.Fatal("stale state must be discarded")
	}
	if !strings.Contains(rig.notifier.last(), "send a photo") {
		t.Fatalf("expected photo prompt after staleness reset, got %q", rig.notifier.last())
	}
}

func TestClassificationCodeOverride(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Site Office", "")
	rig.send(t, "a1", "")

	state := rig.states.states[testUser]
	if state.Draft.ClassificationCode != "A1" || state.Draft.ClassificationName != "Confined Spaces" {
		t.Fatalf("code override not applied: %+v", state.Draft)
	}
	if state.Tag != domain.StateAwaitingBreachSource {
		t.Fatalf("state = %s, want %s", state.Tag, domain.StateAwaitingBreachSource)
	}
}

func TestClassificationFreeTextMapped(t *testing.T) {
	rig := newTestRig()
	rig.mapper.err = nil
	rig.mapper.match = ai.Match{Code: "A1", Name: "Confined Spaces", Confidence: 0.9}

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Site Office", "")
	rig.send(t, "someone stuck in a tank", "")

	state := rig.states.states[testUser]
	if state.Draft.ClassificationCode != "A1" {
		t.Fatalf("mapper result not applied: %+v", state.Draft)
	}
}

func TestClassificationNoMatchReprompts(t *testing.T) {
	rig := newTestRig()

	rig.send(t, "", "https://media.example.com/photo.jpg")
	rig.send(t, "Site Office", "")
	rig.send(t, "no idea what this is", "")

	if got := rig.stateTag(t); got != domain.StateAwaitingClassificationConfirm {
		t.Fatalf("no-match must re-prompt in place, got %s", got)
	}
	if !strings.Contains(rig.notifier.last(), "couldn't match") {
		t.Fatalf("expected retry prompt, got %q", rig.notifier.last())
	}
}

func TestAdviceFallbackOnGeneratorFailure(t *testing.T) {
	log := logger.New("development")
	severity := NewSeverityAdviceHandler(
		&fakeRetriever{},
		&fakeAdvisor{err: fmt.Errorf("model unavailable")},
		log,
	)

	state := domain.State{
		UserKey: testUser,
		Tag:     domain.StateAwaitingSeverity,
		Draft:   domain.Draft{ClassificationCode: "A15", ClassificationName: "Working at Height"},
	}

	outcome, err := severity.Handle(context.Background(), state, domain.Message{SenderKey: testUser, Text: "Low"})
	if err != nil {
		t.Fatalf("advice failure must not block progress: %v", err)
	}
	if outcome.Kind != OutcomeAdvance {
		t.Fatalf("outcome kind = %d, want advance", outcome.Kind)
	}
	if outcome.Draft.ControlMeasure != genericAdvice {
		t.Fatalf("controlMeasure = %q, want generic fallback", outcome.Draft.ControlMeasure)
	}
	if outcome.Draft.Reference != "" {
		t.Fatalf("reference must be empty on fallback, got %q", outcome.Draft.Reference)
	}
}
