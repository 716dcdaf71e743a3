// internal/session/controller.go
// Session controller: owns one deliberation from submission to completion.
// The live stream is read elsewhere; every state mutation funnels through
// this type from a single goroutine, so there is no locking discipline.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agora/internal/api"
	"agora/internal/stream"
	"agora/internal/transcript"
)

var (
	// ErrEmptyQuestion is returned when the trimmed question is empty.
	// Callers treat it as a no-op: nothing was sent, nothing changed.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrSessionActive is returned when a deliberation is already running.
	ErrSessionActive = errors.New("a deliberation is already in progress")
)

// Backend is the slice of the deliberation service the controller needs.
// *api.Client implements it; tests substitute a fake.
type Backend interface {
	StartDeliberation(ctx context.Context, question string, creds api.Credentials, maxRounds int) (string, error)
	History(ctx context.Context, conversationID string) ([]api.Message, error)
	OpenStream(ctx context.Context, conversationID string) (stream.Subscription, error)
}

// Archive stores finished conversations locally. Optional; a nil archive
// disables it.
type Archive interface {
	SaveConversation(conversationID, question string) error
	SaveHistory(conversationID string, msgs []api.Message) error
}

// Controller manages one end-to-end deliberation session.
type Controller struct {
	backend Backend
	archive Archive
	log     zerolog.Logger

	creds     api.Credentials
	maxRounds int

	convoID  string
	question string
	round    int
	loading  bool
	entries  []transcript.Entry
	lastErr  string

	sub stream.Subscription
}

// New creates a controller for the given credentials and deliberation depth.
// archive may be nil.
func New(backend Backend, archive Archive, creds api.Credentials, maxRounds int, log zerolog.Logger) *Controller {
	return &Controller{
		backend:   backend,
		archive:   archive,
		creds:     creds,
		maxRounds: maxRounds,
		log:       log.With().Str("session", uuid.New().String()[:8]).Logger(),
	}
}

// Entries returns the current transcript.
func (c *Controller) Entries() []transcript.Entry { return c.entries }

// Round returns the deliberation round currently in progress.
func (c *Controller) Round() int { return c.round }

// Loading reports whether a deliberation is running.
func (c *Controller) Loading() bool { return c.loading }

// ConversationID returns the backend-issued conversation id, if any.
func (c *Controller) ConversationID() string { return c.convoID }

// Question returns the question the session was started with.
func (c *Controller) Question() string { return c.question }

// LastError returns the most recent surfaced error message, if any.
func (c *Controller) LastError() string { return c.lastErr }

// Events exposes the live stream's channel, or nil when no stream is open.
func (c *Controller) Events() <-chan stream.Event {
	if c.sub == nil {
		return nil
	}
	return c.sub.Events()
}

// Start submits a question, shows it optimistically, and opens the live
// stream for the conversation the backend creates. It blocks through the
// backend calls; interactive callers split the phases with Begin, Dial and
// Attach instead.
func (c *Controller) Start(ctx context.Context, question string) error {
	if err := c.Begin(question); err != nil {
		return err
	}
	convoID, sub, err := c.Dial(ctx, c.question)
	return c.Attach(convoID, sub, err)
}

// Begin validates the question and records it optimistically. It only
// mutates session state, so the owning goroutine can call it and then run
// the blocking Dial elsewhere.
func (c *Controller) Begin(question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return ErrEmptyQuestion
	}
	if c.loading {
		return ErrSessionActive
	}

	c.entries = []transcript.Entry{{Participant: transcript.UserParticipant, Content: q, Round: 0}}
	c.question = q
	c.loading = true
	c.round = 1 // deliberation begins at round one
	c.lastErr = ""
	c.convoID = ""
	return nil
}

// Dial starts the deliberation and opens its live stream. It reads only
// fields fixed at construction, so it may run on another goroutine while
// the owner keeps handling input; feed its results to Attach on the owning
// goroutine.
func (c *Controller) Dial(ctx context.Context, question string) (string, stream.Subscription, error) {
	convoID, err := c.backend.StartDeliberation(ctx, question, c.creds, c.maxRounds)
	if err != nil {
		return "", nil, fmt.Errorf("start deliberation: %w", err)
	}
	sub, err := c.backend.OpenStream(ctx, convoID)
	if err != nil {
		return convoID, nil, fmt.Errorf("open stream: %w", err)
	}
	return convoID, sub, nil
}

// Attach records Dial's outcome. On failure the user entry stays in the
// transcript, so the user sees what was attempted.
func (c *Controller) Attach(convoID string, sub stream.Subscription, err error) error {
	c.convoID = convoID

	if convoID != "" && c.archive != nil {
		if aerr := c.archive.SaveConversation(convoID, c.question); aerr != nil {
			c.log.Warn().Err(aerr).Str("conversation", convoID).Msg("archive write failed")
		}
	}

	if err != nil {
		c.loading = false
		c.lastErr = err.Error()
		return err
	}

	c.sub = sub
	c.log.Info().Str("conversation", convoID).Msg("live stream open")
	return nil
}

// HandleEvent folds one stream event into the session. It returns true when
// the event was terminal: the authoritative history has been fetched and the
// stream closed.
func (c *Controller) HandleEvent(ctx context.Context, ev stream.Event) bool {
	switch ev.Type {
	case stream.EventRoundUpdate:
		c.round = ev.Round

	case stream.EventFinal:
		c.finish(ctx, "")
		return true

	case stream.EventError:
		c.log.Error().Str("conversation", c.convoID).Str("detail", ev.Message).Msg("backend reported error")
		c.finish(ctx, ev.Message)
		return true

	default:
		c.entries = transcript.Apply(c.entries, ev)
	}
	return false
}

// Fail handles a transport-level stream failure. It is terminal: the session
// falls back to authoritative history rather than hanging in a loading state.
func (c *Controller) Fail(ctx context.Context, err error) {
	if !c.loading {
		return
	}
	msg := "stream interrupted"
	if err != nil {
		msg = err.Error()
		c.log.Error().Err(err).Str("conversation", c.convoID).Msg("stream transport failure")
	}
	c.finish(ctx, msg)
}

func (c *Controller) finish(ctx context.Context, errMsg string) {
	c.syncHistory(ctx)
	c.loading = false
	c.lastErr = errMsg
	c.Close()
}

// syncHistory replaces the streamed transcript with the backend's canonical
// message list. The incremental merge is best effort; history is the single
// source of truth at terminal points. An empty or failed fetch keeps the
// streamed view.
func (c *Controller) syncHistory(ctx context.Context) {
	if c.convoID == "" {
		return
	}

	history, err := c.backend.History(ctx, c.convoID)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation", c.convoID).Msg("history sync failed")
		return
	}
	if len(history) == 0 {
		return
	}

	c.entries = FromHistory(history)

	if c.archive != nil {
		if err := c.archive.SaveHistory(c.convoID, history); err != nil {
			c.log.Warn().Err(err).Str("conversation", c.convoID).Msg("archive write failed")
		}
	}
}

// Close shuts the live stream down. Safe to call repeatedly, including when
// no stream was ever opened.
func (c *Controller) Close() {
	if c.sub != nil {
		c.sub.Close()
	}
}

// Reset cancels any in-flight stream first, then discards session state, so a
// late event cannot resurrect a discarded session.
func (c *Controller) Reset() {
	c.Close()
	c.sub = nil
	c.convoID = ""
	c.question = ""
	c.round = 0
	c.loading = false
	c.entries = nil
	c.lastErr = ""
}

// FromHistory converts the backend's message records into transcript entries.
func FromHistory(msgs []api.Message) []transcript.Entry {
	entries := make([]transcript.Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, transcript.Entry{
			Participant: m.AgentName,
			Content:     m.Content,
			Round:       m.RoundNumber,
		})
	}
	return entries
}
