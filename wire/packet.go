package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrProtocol indicates a frame that does not conform to the backend's
// dialect. It is never retryable; the session aborts on it.
var ErrProtocol = errors.New("protocol violation")

// Kind identifies the framing type of a decoded packet.
type Kind int

const (
	Open Kind = iota
	Ack
	Disconnect
	Event
	HeaderEvent
	Raw
)

func (k Kind) String() string {
	switch k {
	case Open:
		return "open"
	case Ack:
		return "ack"
	case Disconnect:
		return "disconnect"
	case Event:
		return "event"
	case HeaderEvent:
		return "header-event"
	case Raw:
		return "raw"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Packet is a decoded inbound frame. Name and Args are set for Event and
// HeaderEvent, Index for HeaderEvent, Body for Open and Raw.
type Packet struct {
	Kind  Kind
	Name  string
	Args  []any
	Index int
	Body  []byte
}

// RawPacket wraps an inbound message that must not be classified because a
// preceding header event claimed it as its payload.
func RawPacket(payload []byte) Packet {
	return Packet{Kind: Raw, Body: payload}
}

// Decode parses one inbound frame. It only classifies the frame; whether the
// event name is acceptable in the current session state is the state
// machine's concern.
func Decode(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, fmt.Errorf("empty frame: %w", ErrProtocol)
	}
	if string(raw) == "40" {
		return Packet{Kind: Ack}, nil
	}
	if string(raw) == "41" {
		return Packet{Kind: Disconnect}, nil
	}
	switch {
	case raw[0] == '0':
		body := raw[1:]
		if len(body) > 0 && !json.Valid(body) {
			return Packet{}, fmt.Errorf("malformed handshake body %q: %w", body, ErrProtocol)
		}
		return Packet{Kind: Open, Body: body}, nil
	case bytes.HasPrefix(raw, []byte("42")):
		name, args, err := decodeEventBody(raw[2:])
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: Event, Name: name, Args: args}, nil
	case bytes.HasPrefix(raw, []byte("45-")):
		rest := raw[3:]
		sep := bytes.IndexByte(rest, '-')
		if sep < 1 {
			return Packet{}, fmt.Errorf("header frame %q missing sub-index: %w", raw, ErrProtocol)
		}
		index, err := strconv.Atoi(string(rest[:sep]))
		if err != nil {
			return Packet{}, fmt.Errorf("header frame sub-index %q: %w", rest[:sep], ErrProtocol)
		}
		name, args, err := decodeEventBody(rest[sep+1:])
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: HeaderEvent, Name: name, Args: args, Index: index}, nil
	}
	return Packet{}, fmt.Errorf("unrecognized frame prefix in %q: %w", truncate(raw), ErrProtocol)
}

func decodeEventBody(body []byte) (string, []any, error) {
	var arr []any
	if err := json.Unmarshal(body, &arr); err != nil {
		return "", nil, fmt.Errorf("decoding event body %q: %v: %w", truncate(body), err, ErrProtocol)
	}
	if len(arr) == 0 {
		return "", nil, fmt.Errorf("event body %q has no name: %w", truncate(body), ErrProtocol)
	}
	name, ok := arr[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("event name %v is not a string: %w", arr[0], ErrProtocol)
	}
	return name, arr[1:], nil
}

// EncodeEvent frames a named event with positional arguments as an outbound
// 42 message.
func EncodeEvent(name string, args ...any) ([]byte, error) {
	b, err := json.Marshal(append([]any{name}, args...))
	if err != nil {
		return nil, fmt.Errorf("encoding event %q: %w", name, err)
	}
	return append([]byte("42"), b...), nil
}

// EncodeDisconnect frames a session termination request. The backend expects
// the bare literal with no JSON body.
func EncodeDisconnect() []byte {
	return []byte("41")
}

func truncate(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}
