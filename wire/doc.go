/*
Package wire implements the framing dialect spoken by the execution backend.

Inbound messages are short engine.io-style frames: a one-or-two-digit numeric
type code, occasionally followed by a JSON document.

	0<json-object>      handshake announcement
	40                  namespace ack
	41                  disconnect
	42<json-array>      event: [name, ...args]
	45-<n>-<json-array> header event: the literal next inbound message is the
	                    raw payload belonging to this header, not a new frame

Outbound messages are always 42-framed events (named "code" or "message"), or
the bare literal 41 to request termination.
*/
package wire
