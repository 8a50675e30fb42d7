package protocol

import "encoding/json"

// TypeEvent marks server-pushed notifications on the local socket.
const TypeEvent = "event"

// Event ops published over the local socket.
const (
	OpCanvasCreated         = "canvas.created"
	OpCanvasLockUpdated     = "canvas.lock.updated"
	OpTaskStatusUpdated     = "task.status.updated"
	OpAgentStatusUpdated    = "agent.status.updated"
	OpTerminalScreenUpdated = "terminal.screen.updated"
)

type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Event builds an event envelope around the given payload.
func Event(id, op string, payload any) Message {
	return Message{ID: id, Type: TypeEvent, Op: op, Payload: MustRaw(payload)}
}
