package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/replrun/replrun/wire"
	"go.uber.org/zap"
)

// ErrUnexpectedPacket indicates a packet that the current session state has
// no transition for. The backend's event ordering is asserted, not
// negotiated, so this aborts the session.
var ErrUnexpectedPacket = errors.New("unexpected packet")

// State is the session's position in the backend's event ordering.
type State int

const (
	Disconnected State = iota
	Connected
	Initialized
	WaitingForCode
	Running
	ExpectingOutput
	SessionKilled
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Initialized:
		return "initialized"
	case WaitingForCode:
		return "waiting_for_code"
	case Running:
		return "running"
	case ExpectingOutput:
		return "expecting_output"
	case SessionKilled:
		return "session_killed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

type outputKind int

const (
	kindNone outputKind = iota
	kindStdout
	kindStderr
	kindInput
)

// Action tells the driver what side effect a transition requires.
type Action int

const (
	// ActionNone requires nothing beyond the state change.
	ActionNone Action = iota
	// ActionSendRun requires the driver to send the run request and then
	// call RunSent.
	ActionSendRun
	// ActionWriteStdout and ActionWriteStderr carry a payload to relay to
	// the corresponding local stream.
	ActionWriteStdout
	ActionWriteStderr
	// ActionTerminate ends the whole process with Status.
	ActionTerminate
	// ActionKilled means the server disconnected the session; the driver
	// closes the transport and stops.
	ActionKilled
)

// Effect is the side effect demanded by a transition. The machine never
// performs I/O itself; the driver executes effects against the transport and
// the local streams.
type Effect struct {
	Action  Action
	Payload []byte

	// Terminate details.
	Status   int
	Message  string
	Critical bool
}

// Machine interprets decoded packets against the session state. It is not
// safe for concurrent use; the dispatcher feeds it one packet at a time.
type Machine struct {
	log     *zap.SugaredLogger
	state   State
	pending outputKind
}

func NewMachine(log *zap.SugaredLogger) *Machine {
	return &Machine{log: log.Named("fsm")}
}

func (m *Machine) State() State { return m.state }

// Expecting reports whether the next inbound message is a header payload and
// must bypass frame classification.
func (m *Machine) Expecting() bool { return m.state == ExpectingOutput }

// TransportOpened moves the machine out of its initial state once the
// transport connection is established.
func (m *Machine) TransportOpened() {
	m.setState(Connected)
}

// RunSent completes the run-request handoff after the driver has performed
// the send required by ActionSendRun.
func (m *Machine) RunSent() {
	m.setState(Running)
}

// Step applies one decoded packet and returns the effect the driver must
// execute. On error the state is left unchanged.
func (m *Machine) Step(p wire.Packet) (Effect, error) {
	switch m.state {
	case Connected:
		if p.Kind == wire.Open {
			m.setState(Initialized)
			return Effect{}, nil
		}

	case Initialized:
		if p.Kind == wire.Ack {
			m.setState(WaitingForCode)
			return Effect{Action: ActionSendRun}, nil
		}

	case Running:
		switch p.Kind {
		case wire.HeaderEvent:
			var kind outputKind
			switch p.Name {
			case "output":
				kind = kindStdout
			case "err":
				kind = kindStderr
			case "input":
				kind = kindInput
			default:
				return Effect{}, fmt.Errorf("header event %q in state %s: %w", p.Name, m.state, ErrUnexpectedPacket)
			}
			m.pending = kind
			m.setState(ExpectingOutput)
			return Effect{}, nil
		case wire.Event:
			if p.Name != "exit" {
				return Effect{}, fmt.Errorf("event %q in state %s: %w", p.Name, m.state, ErrUnexpectedPacket)
			}
			return m.exitEffect(p.Args)
		case wire.Disconnect:
			m.setState(SessionKilled)
			return Effect{Action: ActionKilled}, nil
		}

	case ExpectingOutput:
		if p.Kind == wire.Raw {
			kind := m.pending
			m.pending = kindNone
			m.setState(Running)
			switch kind {
			case kindStdout:
				return Effect{Action: ActionWriteStdout, Payload: p.Body}, nil
			case kindStderr:
				return Effect{Action: ActionWriteStderr, Payload: p.Body}, nil
			default:
				// The remote is merely signalling that it wants input;
				// actual input arrives through the stdin listener.
				return Effect{}, nil
			}
		}
	}
	return Effect{}, fmt.Errorf("%s packet in state %s: %w", p.Kind, m.state, ErrUnexpectedPacket)
}

func (m *Machine) exitEffect(args []any) (Effect, error) {
	var message string
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			message = s
		}
	}
	status := 0
	if len(args) > 1 && args[1] != nil {
		code, ok := args[1].(float64)
		if !ok {
			return Effect{}, fmt.Errorf("exit code %v is not a number: %w", args[1], ErrUnexpectedPacket)
		}
		status = int(code)
	}
	return Effect{
		Action:   ActionTerminate,
		Status:   status,
		Message:  message,
		Critical: !strings.Contains(message, "Process exited"),
	}, nil
}

func (m *Machine) setState(s State) {
	m.log.Infof("state: %s", s)
	m.state = s
}
