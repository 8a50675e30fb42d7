// Package termtransport opens terminal sessions and delivers their
// output as incremental termbuf events. The concrete implementation
// runs each terminal inside a detached tmux session on a private
// socket; callers only see the Transport contract.
package termtransport

import "gitcanvas/cli/internal/termbuf"

// Key is a named keystroke understood by the transport.
type Key string

const (
	KeyEnter    Key = "Enter"
	KeyEscape   Key = "Escape"
	KeyCtrlC    Key = "C-c"
	KeyCtrlD    Key = "C-d"
	KeyShiftTab Key = "BTab"
	KeyTab      Key = "Tab"
)

// Minimum grid accepted for a driven CLI session. Callers may request
// larger, never smaller.
const (
	MinRows = 24
	MinCols = 80
)

// Spec describes the terminal session to open.
type Spec struct {
	Rows       int
	Cols       int
	WorkingDir string
	Command    string
	Env        map[string]string
}

// Normalize clamps the grid up to the supported minimum.
func (s Spec) Normalize() Spec {
	if s.Rows < MinRows {
		s.Rows = MinRows
	}
	if s.Cols < MinCols {
		s.Cols = MinCols
	}
	return s
}

// Transport is the terminal collaborator contract. Events for one
// terminal are delivered in arrival order on a single goroutine.
type Transport interface {
	Connect(spec Spec) (string, error)
	SendRawInput(terminalID, data string) error
	SendKeys(terminalID string, keys ...Key) error
	Resize(terminalID string, rows, cols int) error
	Kill(terminalID string) error
	OnEvent(terminalID string, fn func([]termbuf.Event)) error
	OnDisconnect(terminalID string, fn func()) error
	IsAlive(terminalID string) bool
}
