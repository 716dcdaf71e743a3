// internal/transcript/transcript.go
package transcript

import (
	"strings"

	"agora/internal/stream"
)

// Participants with fixed roles in a deliberation.
const (
	UserParticipant    = "user"
	ArbiterParticipant = "arbiter"
)

// Entry is one utterance by a participant in one round. Insertion order is
// rendered order; a logical message is identified by (Participant, Round),
// not by index.
type Entry struct {
	Participant string
	Content     string
	Round       int
	Streaming   bool
}

// Apply folds one stream event into the transcript and returns the next
// transcript. The input slice is never mutated.
//
// Token events append their fragment to the entry matching (agent, round),
// creating it on first sight. Message events confirm an entry: if any entry
// for the same (agent, round) already holds content at least as long as the
// incoming body, the event is a duplicate and is dropped. That length check is
// the backend's contract as observed, not a guarantee; a genuinely shorter
// repeat from the same agent and round is indistinguishable from a duplicate.
func Apply(entries []Entry, ev stream.Event) []Entry {
	switch ev.Type {
	case stream.EventToken:
		if i := find(entries, ev.Agent, ev.Round); i >= 0 {
			next := clone(entries)
			next[i].Content += ev.Content
			return next
		}
		next := clone(entries)
		return append(next, Entry{
			Participant: ev.Agent,
			Content:     ev.Content,
			Round:       ev.Round,
			Streaming:   true,
		})

	case stream.EventMessage:
		// An entry for the same key may exist more than once when a message
		// longer than the streamed tokens appended alongside the partial, so
		// every same-key entry is a dedupe candidate.
		if covered(entries, ev) {
			next := clone(entries)
			for i := range next {
				if next[i].Participant == ev.Agent && next[i].Round == ev.Round {
					next[i].Streaming = false
				}
			}
			return next
		}
		next := clone(entries)
		return append(next, Entry{
			Participant: ev.Agent,
			Content:     ev.Content,
			Round:       ev.Round,
		})

	default:
		// round_update, final and error never touch the transcript directly.
		return entries
	}
}

// Visible projects the transcript for display. With reasoning hidden, only
// the user's question and the arbiter's synthesis remain; the underlying
// transcript is untouched, so toggling back restores everything.
func Visible(entries []Entry, showReasoning bool) []Entry {
	if showReasoning {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		switch strings.ToLower(e.Participant) {
		case UserParticipant, ArbiterParticipant:
			out = append(out, e)
		}
	}
	return out
}

// covered reports whether any (agent, round) entry already holds content at
// least as long as the event's body.
func covered(entries []Entry, ev stream.Event) bool {
	for _, e := range entries {
		if e.Participant == ev.Agent && e.Round == ev.Round && len(e.Content) >= len(ev.Content) {
			return true
		}
	}
	return false
}

func find(entries []Entry, participant string, round int) int {
	for i, e := range entries {
		if e.Participant == participant && e.Round == round {
			return i
		}
	}
	return -1
}

func clone(entries []Entry) []Entry {
	next := make([]Entry, len(entries))
	copy(next, entries)
	return next
}
