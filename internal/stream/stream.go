// internal/stream/stream.go
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Subscription is a live feed of deliberation events. Events is closed when
// the stream ends for any reason; Close is safe to call any number of times
// and guarantees no further event is delivered once the channel drains.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close()
}

type sse struct {
	resp   *http.Response
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	log    zerolog.Logger

	once sync.Once

	mu  sync.Mutex
	err error
}

// Open connects to an SSE endpoint and starts a reader goroutine. The caller
// owns the returned subscription and must Close it.
func Open(ctx context.Context, client *http.Client, url string, log zerolog.Logger) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream status %d", resp.StatusCode)
	}

	s := &sse{
		resp:   resp,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 64),
		log:    log,
	}
	go s.read()
	return s, nil
}

func (s *sse) Events() <-chan Event {
	return s.events
}

func (s *sse) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the underlying request, which unblocks the reader and closes
// the events channel.
func (s *sse) Close() {
	s.once.Do(s.cancel)
}

func (s *sse) read() {
	defer close(s.events)
	defer s.resp.Body.Close()

	scanner := bufio.NewScanner(s.resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	// SSE framing: "data:" lines accumulate until a blank line ends the event.
	// "event:"/"id:"/"retry:" fields and comments carry nothing we need.
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				s.dispatch(data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if data.Len() > 0 {
		s.dispatch(data.String())
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && s.ctx.Err() == nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

func (s *sse) dispatch(payload string) {
	// The backend's initial keep-alive is "data: connected", not JSON.
	if payload == "" || payload == "connected" {
		return
	}

	ev, err := Parse([]byte(payload))
	if err != nil {
		// A bad payload is isolated: skip it, the session continues.
		s.log.Warn().Err(err).Str("payload", clip(payload, 120)).Msg("skipping malformed stream payload")
		return
	}
	if ev.Type == EventPing {
		return
	}

	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
