// internal/stream/event.go
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates deliberation stream payloads.
type EventType string

const (
	// EventToken carries an incremental text fragment for an in-progress message.
	EventToken EventType = "token"
	// EventMessage carries a complete message for an agent and round.
	EventMessage EventType = "message"
	// EventRoundUpdate advances the displayed round counter.
	EventRoundUpdate EventType = "round_update"
	// EventFinal signals the deliberation is complete.
	EventFinal EventType = "final"
	// EventError signals the backend aborted the deliberation.
	EventError EventType = "error"
	// EventPing is a keep-alive; it carries nothing.
	EventPing EventType = "ping"
)

// ErrUnknownType is returned for payloads with an unrecognized discriminator.
var ErrUnknownType = errors.New("unknown event type")

// Event is one payload from the deliberation stream.
type Event struct {
	Type    EventType `json:"type"`
	Agent   string    `json:"agent"`
	Content string    `json:"content"`
	Round   int       `json:"round"`
	Message string    `json:"message"` // error detail when Type is "error"
}

// Parse decodes a single stream payload. A payload without a type
// discriminator is treated as a legacy complete message. A missing round
// decodes as 0.
func Parse(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	if ev.Type == "" {
		ev.Type = EventMessage
	}

	switch ev.Type {
	case EventToken, EventMessage, EventRoundUpdate, EventFinal, EventError, EventPing:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
}
