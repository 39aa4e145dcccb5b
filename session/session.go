package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/replrun/replrun/wire"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const readLimit = 32768

// ErrSessionKilled is returned when the backend disconnects the session
// before the remote process reports its exit.
var ErrSessionKilled = errors.New("session killed by server")

// Conn is the ordered, message-oriented duplex transport the session drives.
// *websocket.Conn satisfies it.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// File pairs a remote file name with its contents.
type File struct {
	Name string
	Code string
}

// Config carries the immutable inputs of a session.
type Config struct {
	// URL is the backend's WebSocket endpoint.
	URL string
	// Files to upload, in order. The first entry is the one executed.
	Files []File
	// Args are passed to the remote process.
	Args []string
}

// Session is the single long-lived entity: it owns the transport connection
// for its lifetime and runs the dispatcher that feeds the state machine.
type Session struct {
	log        *zap.SugaredLogger
	cfg        Config
	httpClient *http.Client
	input      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	machine *Machine
	conn    Conn

	closeConnOnce sync.Once
}

type Option func(s *Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.log = l.Named("session").Sugar()
		s.machine = NewMachine(s.log)
	}
}

// WithHTTPClient sets the HTTP client used for the WebSocket dial.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithInput sets the local input source. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Session) { s.input = r }
}

// WithStdout sets the destination for remote stdout. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(s *Session) { s.stdout = w }
}

// WithStderr sets the destination for remote stderr. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(s *Session) { s.stderr = w }
}

func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("no backend URL")
	}
	if len(cfg.Files) == 0 {
		return nil, errors.New("no files to run")
	}
	log := zap.NewNop().Sugar()
	s := &Session{
		log:     log,
		cfg:     cfg,
		input:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		machine: NewMachine(log),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run dials the backend and bridges the terminal until the remote process
// exits, returning its exit status. It returns an error on protocol
// violations, transport failures, and server-initiated disconnects; the
// remote process failing is not an error, just a non-zero status.
func (s *Session) Run(ctx context.Context) (int, error) {
	s.log.Debugw("dialing WebSocket", "URL", s.cfg.URL)
	conn, _, err := websocket.Dial(ctx, s.cfg.URL, &websocket.DialOptions{
		HTTPClient: s.httpClient,
	})
	if err != nil {
		return 0, fmt.Errorf("establishing WebSocket conn: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return s.run(ctx, conn)
}

func (s *Session) run(ctx context.Context, conn Conn) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.conn = conn
	defer s.close(websocket.StatusInternalError, "session ended")

	// A termination signal closes the transport, which fails the socket
	// listener's pending read and unwinds the session.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.log.Infof("received %s, closing connection", sig)
			s.close(websocket.StatusNormalClosure, "terminated")
		case <-ctx.Done():
		}
	}()

	s.machine.TransportOpened()

	m := newMux(s.log)
	go m.listenSocket(ctx, conn)
	go m.listenInput(ctx, s.input)

	for {
		var ev muxEvent
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case ev = <-m.events:
		}
		status, terminal, err := s.handle(ctx, ev)
		close(ev.done)
		if err != nil {
			return 0, err
		}
		if terminal {
			return status, nil
		}
	}
}

// handle processes one listener completion to completion, including any
// resulting send.
func (s *Session) handle(ctx context.Context, ev muxEvent) (status int, terminal bool, err error) {
	if ev.src == srcInput {
		// Sent regardless of the machine's state: the user may type ahead.
		return 0, false, s.sendMessage(ctx, string(ev.data))
	}
	if ev.err != nil {
		return 0, false, fmt.Errorf("reading from transport: %w", ev.err)
	}
	s.log.Debugf("receiving (raw): %q", ev.data)

	var p wire.Packet
	if s.machine.Expecting() {
		p = wire.RawPacket(ev.data)
	} else {
		p, err = wire.Decode(ev.data)
		if err != nil {
			return 0, false, err
		}
	}

	eff, err := s.machine.Step(p)
	if err != nil {
		return 0, false, err
	}
	return s.apply(ctx, eff)
}

func (s *Session) apply(ctx context.Context, eff Effect) (int, bool, error) {
	switch eff.Action {
	case ActionSendRun:
		if err := s.sendRunRequest(ctx); err != nil {
			return 0, false, err
		}
		s.machine.RunSent()
	case ActionWriteStdout:
		if _, err := s.stdout.Write(eff.Payload); err != nil {
			return 0, false, fmt.Errorf("writing remote output: %w", err)
		}
	case ActionWriteStderr:
		if _, err := s.stderr.Write(eff.Payload); err != nil {
			return 0, false, fmt.Errorf("writing remote error output: %w", err)
		}
	case ActionTerminate:
		if eff.Critical {
			s.log.Errorf("exiting: %q", eff.Message)
		} else {
			s.log.Infof("exiting: %q", eff.Message)
		}
		s.close(websocket.StatusNormalClosure, "")
		return eff.Status, true, nil
	case ActionKilled:
		s.close(websocket.StatusNormalClosure, "")
		return 0, false, ErrSessionKilled
	}
	return 0, false, nil
}

type runFile struct {
	Code     string `json:"code"`
	FileName string `json:"file_name"`
}

// sendRunRequest uploads the files and arguments and asks the backend to
// begin execution. The first file is the entry file.
func (s *Session) sendRunRequest(ctx context.Context) error {
	files := make([]runFile, 0, len(s.cfg.Files))
	for _, f := range s.cfg.Files {
		files = append(files, runFile{Code: f.Code, FileName: f.Name})
	}
	msg, err := wire.EncodeEvent("code", files, strings.Join(s.cfg.Args, " "), s.cfg.Files[0].Name)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Session) sendMessage(ctx context.Context, line string) error {
	msg, err := wire.EncodeEvent("message", line)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Session) send(ctx context.Context, msg []byte) error {
	s.log.Debugf("sending (raw): %q", msg)
	if err := s.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("writing to transport: %w", err)
	}
	return nil
}

func (s *Session) close(code websocket.StatusCode, reason string) {
	s.closeConnOnce.Do(func() {
		if err := s.conn.Close(code, reason); err != nil {
			s.log.Debugf("error closing conn: %s", err)
		}
	})
}
