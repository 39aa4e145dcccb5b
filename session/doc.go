/*
Package session drives one remote-execution session against the backend. It
dials the backend's WebSocket endpoint, uploads the source files and
invocation arguments, and then bridges the local terminal to the remote
process until it exits.

The protocol proceeds as follows:

1. The client opens a WebSocket connection with the backend.
2. The backend sends a handshake announcement (0-frame) and a namespace ack (40).
3. The client sends one "code" event uploading the files, the joined
invocation arguments, and the entry file name.
4. While the remote process runs, the backend interleaves header events
announcing stdout/stderr payloads (each followed by one raw payload message)
with input-wanted signals; the client forwards each local stdin line as a
"message" event.
5. The backend sends an "exit" event carrying the remote exit code, which the
driver propagates as this process's own exit status.

The backend's event ordering is strict: any packet the current state does not
expect aborts the session rather than being skipped. Nothing is retried; a
transport failure is fatal.
*/
package session
