package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		exp  Packet
	}{
		{
			name: "handshake",
			raw:  `0{"sid":"abc","pingInterval":25000}`,
			exp:  Packet{Kind: Open, Body: []byte(`{"sid":"abc","pingInterval":25000}`)},
		},
		{
			name: "handshake without body",
			raw:  "0",
			exp:  Packet{Kind: Open, Body: []byte{}},
		},
		{
			name: "namespace ack",
			raw:  "40",
			exp:  Packet{Kind: Ack},
		},
		{
			name: "disconnect",
			raw:  "41",
			exp:  Packet{Kind: Disconnect},
		},
		{
			name: "exit event",
			raw:  `42["exit","Process exited with code 1",1]`,
			exp:  Packet{Kind: Event, Name: "exit", Args: []any{"Process exited with code 1", float64(1)}},
		},
		{
			name: "exit event with null code",
			raw:  `42["exit","Process exited with code 0",null]`,
			exp:  Packet{Kind: Event, Name: "exit", Args: []any{"Process exited with code 0", nil}},
		},
		{
			name: "output header",
			raw:  `45-0-["output"]`,
			exp:  Packet{Kind: HeaderEvent, Name: "output", Args: []any{}},
		},
		{
			name: "error header with sub-index",
			raw:  `45-12-["err"]`,
			exp:  Packet{Kind: HeaderEvent, Name: "err", Args: []any{}, Index: 12},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := Decode([]byte(c.raw))
			require.NoError(t, err)
			assert.Equal(t, c.exp.Kind, p.Kind)
			assert.Equal(t, c.exp.Name, p.Name)
			assert.Equal(t, c.exp.Index, p.Index)
			if c.exp.Args != nil {
				assert.Equal(t, c.exp.Args, p.Args)
			}
			if c.exp.Body != nil {
				assert.Equal(t, string(c.exp.Body), string(p.Body))
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty frame", raw: ""},
		{name: "unknown prefix", raw: "7something"},
		{name: "event body not an array", raw: `42{"a":1}`},
		{name: "event body empty array", raw: "42[]"},
		{name: "event name not a string", raw: "42[1,2]"},
		{name: "event body malformed", raw: `42["exit"`},
		{name: "header missing sub-index", raw: `45-["output"]`},
		{name: "header sub-index not numeric", raw: `45-x-["output"]`},
		{name: "header body empty array", raw: "45-0-[]"},
		{name: "handshake body malformed", raw: "0not-json"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode([]byte(c.raw))
			require.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	b, err := EncodeEvent("message", "hello")
	require.NoError(t, err)
	assert.Equal(t, `42["message","hello"]`, string(b))

	b, err = EncodeEvent("message", "")
	require.NoError(t, err)
	assert.Equal(t, `42["message",""]`, string(b))
}

func TestEncodeDisconnect(t *testing.T) {
	assert.Equal(t, "41", string(EncodeDisconnect()))
}

func TestRunRequestRoundTrip(t *testing.T) {
	type file struct {
		Code     string `json:"code"`
		FileName string `json:"file_name"`
	}
	b, err := EncodeEvent("code", []file{{Code: "print(1)", FileName: "a.py"}}, "", "a.py")
	require.NoError(t, err)

	p, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, Event, p.Kind)
	assert.Equal(t, "code", p.Name)
	require.Len(t, p.Args, 3)

	files, ok := p.Args[0].([]any)
	require.True(t, ok)
	require.Len(t, files, 1)
	assert.Equal(t, map[string]any{"code": "print(1)", "file_name": "a.py"}, files[0])
	assert.Equal(t, "", p.Args[1])
	assert.Equal(t, "a.py", p.Args[2])
}

func TestRawPacket(t *testing.T) {
	p := RawPacket([]byte("hello"))
	assert.Equal(t, Raw, p.Kind)
	assert.Equal(t, "hello", string(p.Body))
}
