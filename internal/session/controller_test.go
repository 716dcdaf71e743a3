// internal/session/controller_test.go
package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"agora/internal/api"
	"agora/internal/stream"
	"agora/internal/transcript"
)

type fakeStream struct {
	events chan stream.Event
	closes int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan stream.Event, 16)}
}

func (f *fakeStream) Events() <-chan stream.Event { return f.events }
func (f *fakeStream) Err() error                  { return nil }
func (f *fakeStream) Close()                      { f.closes++ }

type fakeBackend struct {
	convoID    string
	startErr   error
	streamErr  error
	history    []api.Message
	historyErr error

	startCalls   int
	historyCalls int
	stream       *fakeStream
}

func (f *fakeBackend) StartDeliberation(ctx context.Context, question string, creds api.Credentials, maxRounds int) (string, error) {
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.convoID, nil
}

func (f *fakeBackend) History(ctx context.Context, conversationID string) ([]api.Message, error) {
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeBackend) OpenStream(ctx context.Context, conversationID string) (stream.Subscription, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.stream == nil {
		f.stream = newFakeStream()
	}
	return f.stream, nil
}

type fakeArchive struct {
	conversations map[string]string
	histories     map[string][]api.Message
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		conversations: make(map[string]string),
		histories:     make(map[string][]api.Message),
	}
}

func (f *fakeArchive) SaveConversation(id, question string) error {
	f.conversations[id] = question
	return nil
}

func (f *fakeArchive) SaveHistory(id string, msgs []api.Message) error {
	f.histories[id] = msgs
	return nil
}

func newController(backend Backend, archive Archive) *Controller {
	return New(backend, archive, api.Credentials{}, 3, zerolog.Nop())
}

func TestStartEmptyQuestionIsNoOp(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)

	err := c.Start(context.Background(), "   \t\n ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if backend.startCalls != 0 {
		t.Error("backend must not be called for an empty question")
	}
	if len(c.Entries()) != 0 {
		t.Error("transcript must not be mutated for an empty question")
	}
	if c.Loading() {
		t.Error("loading must stay false")
	}
}

func TestStartAppendsOptimisticUserEntry(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	archive := newFakeArchive()
	c := newController(backend, archive)

	if err := c.Start(context.Background(), "  why is the sky blue?  "); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Participant != transcript.UserParticipant || entries[0].Round != 0 {
		t.Errorf("user entry malformed: %+v", entries[0])
	}
	if entries[0].Content != "why is the sky blue?" {
		t.Errorf("question should be trimmed, got %q", entries[0].Content)
	}
	if !c.Loading() {
		t.Error("loading should be true after a successful start")
	}
	if c.Round() != 1 {
		t.Errorf("round should start at 1, got %d", c.Round())
	}
	if c.ConversationID() != "c1" {
		t.Errorf("conversation id not recorded: %q", c.ConversationID())
	}
	if archive.conversations["c1"] != "why is the sky blue?" {
		t.Error("conversation not archived on start")
	}
	if c.Events() == nil {
		t.Error("live stream should be open")
	}
}

func TestStartBackendFailure(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("connection refused")}
	c := newController(backend, nil)

	err := c.Start(context.Background(), "a question")
	if err == nil {
		t.Fatal("expected start failure")
	}
	if c.Loading() {
		t.Error("loading must be cleared on start failure")
	}
	if len(c.Entries()) != 1 || c.Entries()[0].Participant != transcript.UserParticipant {
		t.Error("the optimistic user entry must survive a failed start")
	}
	if c.LastError() == "" {
		t.Error("start failure must be surfaced")
	}
}

func TestSplitPhaseStart(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	archive := newFakeArchive()
	c := newController(backend, archive)

	if err := c.Begin("  staged question  "); err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if !c.Loading() {
		t.Error("loading should be true once the question is accepted")
	}
	if len(c.Entries()) != 1 || c.Entries()[0].Content != "staged question" {
		t.Errorf("optimistic entry missing or untrimmed: %+v", c.Entries())
	}
	if backend.startCalls != 0 {
		t.Error("Begin must not reach the backend")
	}
	if err := c.Begin("another"); !errors.Is(err, ErrSessionActive) {
		t.Errorf("a second Begin during the dial must be rejected, got %v", err)
	}

	id, sub, err := c.Dial(context.Background(), c.Question())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	if err := c.Attach(id, sub, nil); err != nil {
		t.Fatalf("Attach() failed: %v", err)
	}
	if c.ConversationID() != "c1" {
		t.Errorf("conversation id not recorded: %q", c.ConversationID())
	}
	if archive.conversations["c1"] != "staged question" {
		t.Error("conversation not archived on attach")
	}
	if c.Events() == nil {
		t.Error("live stream should be open")
	}
}

func TestAttachFailureKeepsUserEntry(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("connection refused")}
	c := newController(backend, nil)

	if err := c.Begin("a question"); err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	id, sub, err := c.Dial(context.Background(), c.Question())
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if aerr := c.Attach(id, sub, err); aerr == nil {
		t.Fatal("Attach must propagate the dial error")
	}
	if c.Loading() {
		t.Error("loading must be cleared on a failed dial")
	}
	if len(c.Entries()) != 1 || c.Entries()[0].Participant != transcript.UserParticipant {
		t.Error("the optimistic user entry must survive a failed dial")
	}
	if c.LastError() == "" {
		t.Error("dial failure must be surfaced")
	}
}

func TestStartWhileActive(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)

	if err := c.Start(context.Background(), "first"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := c.Start(context.Background(), "second"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if backend.startCalls != 1 {
		t.Errorf("second start must not reach the backend, got %d calls", backend.startCalls)
	}
}

func TestTokenEventsAccumulate(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ctx := context.Background()
	c.HandleEvent(ctx, stream.Event{Type: stream.EventToken, Agent: "gemini", Content: "Hel", Round: 1})
	c.HandleEvent(ctx, stream.Event{Type: stream.EventToken, Agent: "gemini", Content: "lo", Round: 1})

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected user entry + gemini entry, got %d", len(entries))
	}
	if entries[1].Content != "Hello" {
		t.Errorf("accumulated content = %q", entries[1].Content)
	}
}

func TestRoundUpdateOnlyMovesCounter(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	before := len(c.Entries())
	terminal := c.HandleEvent(context.Background(), stream.Event{Type: stream.EventRoundUpdate, Round: 2})

	if terminal {
		t.Error("round_update is not terminal")
	}
	if c.Round() != 2 {
		t.Errorf("round = %d, want 2", c.Round())
	}
	if len(c.Entries()) != before {
		t.Error("round_update must not touch the transcript")
	}
}

func TestFinalSyncsAuthoritativeHistory(t *testing.T) {
	history := []api.Message{
		{AgentName: "user", Content: "q", RoundNumber: 0},
		{AgentName: "gemini", Content: "reasoning", RoundNumber: 1},
		{AgentName: "arbiter", Content: "the answer", RoundNumber: 2},
	}
	backend := &fakeBackend{convoID: "c1", history: history}
	archive := newFakeArchive()
	c := newController(backend, archive)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ctx := context.Background()
	// Drifted local view: duplicate suppression bugs and dropped events are
	// exactly what the history sync corrects.
	c.HandleEvent(ctx, stream.Event{Type: stream.EventToken, Agent: "gemini", Content: "reas", Round: 1})
	terminal := c.HandleEvent(ctx, stream.Event{Type: stream.EventFinal})

	if !terminal {
		t.Fatal("final must be terminal")
	}
	if c.Loading() {
		t.Error("loading must stop on final")
	}
	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("transcript should equal history, got %d entries", len(entries))
	}
	for i, m := range history {
		if entries[i].Participant != m.AgentName || entries[i].Content != m.Content || entries[i].Round != m.RoundNumber {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], m)
		}
	}
	if backend.stream.closes == 0 {
		t.Error("stream must be closed on final")
	}
	if len(archive.histories["c1"]) != 3 {
		t.Error("authoritative history should be archived")
	}
}

func TestEmptyHistoryKeepsStreamedView(t *testing.T) {
	backend := &fakeBackend{convoID: "c1", history: nil}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ctx := context.Background()
	c.HandleEvent(ctx, stream.Event{Type: stream.EventToken, Agent: "gemini", Content: "partial", Round: 1})
	c.HandleEvent(ctx, stream.Event{Type: stream.EventFinal})

	entries := c.Entries()
	if len(entries) != 2 || entries[1].Content != "partial" {
		t.Errorf("streamed view should survive an empty history, got %+v", entries)
	}
}

func TestErrorEventIsTerminalAndSurfaced(t *testing.T) {
	backend := &fakeBackend{convoID: "c1", history: []api.Message{{AgentName: "user", Content: "q"}}}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	terminal := c.HandleEvent(context.Background(), stream.Event{Type: stream.EventError, Message: "provider quota exhausted"})
	if !terminal {
		t.Fatal("error event must be terminal")
	}
	if c.Loading() {
		t.Error("loading must stop on error")
	}
	if c.LastError() != "provider quota exhausted" {
		t.Errorf("error detail not surfaced: %q", c.LastError())
	}
	if backend.historyCalls != 1 {
		t.Error("error event must trigger a history sync")
	}
}

func TestTransportFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{convoID: "c1", history: []api.Message{{AgentName: "user", Content: "q"}}}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	c.Fail(context.Background(), errors.New("connection reset"))

	if c.Loading() {
		t.Error("loading must never hang after a transport failure")
	}
	if backend.historyCalls != 1 {
		t.Error("transport failure must trigger a history sync")
	}
	if backend.stream.closes == 0 {
		t.Error("stream must be closed")
	}

	// A second Fail (e.g. the closed-channel notification racing the error)
	// is a no-op once the session is no longer loading.
	c.Fail(context.Background(), errors.New("late failure"))
	if backend.historyCalls != 1 {
		t.Error("duplicate failure must not re-sync")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	before := c.Entries()
	c.Close()
	c.Close()

	if len(c.Entries()) != len(before) {
		t.Error("closing twice must not duplicate any mutation")
	}
}

func TestCloseWithoutStream(t *testing.T) {
	c := newController(&fakeBackend{}, nil)
	c.Close() // must not panic
	c.Reset()
}

func TestResetClosesStreamFirst(t *testing.T) {
	backend := &fakeBackend{convoID: "c1"}
	c := newController(backend, nil)
	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	c.Reset()

	if backend.stream.closes == 0 {
		t.Error("reset must close the in-flight stream")
	}
	if c.ConversationID() != "" || c.Loading() || c.Round() != 0 || len(c.Entries()) != 0 {
		t.Error("reset must discard session state")
	}
	if c.Events() != nil {
		t.Error("no stream should remain after reset")
	}
}

func TestFromHistory(t *testing.T) {
	entries := FromHistory([]api.Message{
		{AgentName: "user", Content: "q", RoundNumber: 0},
		{AgentName: "deepseek", Content: "r", RoundNumber: 1},
	})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Participant != "deepseek" || entries[1].Round != 1 {
		t.Errorf("conversion mangled: %+v", entries[1])
	}
}
