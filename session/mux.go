package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

type eventSource int

const (
	srcSocket eventSource = iota
	srcInput
)

// muxEvent is one listener completion: either an inbound transport message
// (or the error that ended the transport) or one line of local input.
type muxEvent struct {
	src  eventSource
	data []byte
	err  error

	// done is closed by the dispatcher once the event is fully processed,
	// including any resulting send. The producing listener waits for it
	// before issuing its next read.
	done chan struct{}
}

// mux owns the two perpetual listeners and merges their completions into a
// single ordered channel consumed by the dispatcher. Each listener re-arms
// only after its previous completion has been processed, so completions are
// never reordered or dropped.
type mux struct {
	log    *zap.SugaredLogger
	events chan muxEvent
}

func newMux(log *zap.SugaredLogger) *mux {
	return &mux{
		log:    log.Named("mux"),
		events: make(chan muxEvent),
	}
}

// publish hands one completion to the dispatcher and blocks until it has
// been processed. Returns false when the dispatcher is gone.
func (m *mux) publish(ctx context.Context, ev muxEvent) bool {
	select {
	case m.events <- ev:
	case <-ctx.Done():
		return false
	}
	select {
	case <-ev.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// listenSocket waits for inbound transport messages forever. A read error is
// published too: transport failure is the dispatcher's signal to unwind.
func (m *mux) listenSocket(ctx context.Context, conn Conn) {
	for {
		_, data, err := conn.Read(ctx)
		ev := muxEvent{src: srcSocket, data: data, err: err, done: make(chan struct{})}
		if !m.publish(ctx, ev) {
			return
		}
		if err != nil {
			m.log.Debugf("socket listener stopping: %s", err)
			return
		}
	}
}

// listenInput reads newline-terminated lines from local input forever,
// publishing each with its trailing newline stripped. EOF stops the listener
// without failing the session; a final unterminated line is still delivered.
func (m *mux) listenInput(ctx context.Context, r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err == nil || line != "" {
			line = strings.TrimSuffix(line, "\n")
			ev := muxEvent{src: srcInput, data: []byte(line), done: make(chan struct{})}
			if !m.publish(ctx, ev) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.log.Debugf("input listener stopping: %s", err)
			}
			return
		}
	}
}
