package termbuf

import "strings"

// Buffer is the reconstructed line grid of one terminal. It is owned
// by a single driver instance; callers must not apply events from more
// than one goroutine. Events are applied strictly in arrival order and
// none may be dropped.
type Buffer struct {
	lines      [][]LineItem
	cursorLine int
	cursorCol  int
}

func NewBuffer() *Buffer {
	return &Buffer{lines: [][]LineItem{}}
}

// Apply mutates the buffer according to one event.
func (b *Buffer) Apply(ev Event) {
	if b == nil || ev == nil {
		return
	}
	switch e := ev.(type) {
	case ScreenUpdate:
		next := make([][]LineItem, len(e.Screen))
		copy(next, e.Screen)
		b.lines = next
		b.cursorLine = e.CursorLine
		b.cursorCol = e.CursorCol
	case NewLines:
		b.lines = append(b.lines, e.Lines...)
	case Patch:
		// Out-of-range indices are an expected condition, never an
		// error. Negative ones come off the wire too; drop them.
		if e.Line < 0 {
			return
		}
		// An index past the end pads with empty lines first.
		for len(b.lines) <= e.Line {
			b.lines = append(b.lines, []LineItem{})
		}
		b.lines[e.Line] = e.Items
	case CursorMove:
		b.cursorLine = e.Line
		b.cursorCol = e.Col
	case Scroll:
		// Viewport-only. Line content is unaffected.
	}
}

// ApplyAll applies a batch in order.
func (b *Buffer) ApplyAll(events []Event) {
	for _, ev := range events {
		b.Apply(ev)
	}
}

func (b *Buffer) LineCount() int {
	if b == nil {
		return 0
	}
	return len(b.lines)
}

func (b *Buffer) Cursor() (line, col int) {
	if b == nil {
		return 0, 0
	}
	return b.cursorLine, b.cursorCol
}

// VisibleWindow returns the last h lines in original order. Fewer
// lines are returned when the buffer is shorter than h.
func (b *Buffer) VisibleWindow(h int) [][]LineItem {
	if b == nil || h <= 0 {
		return [][]LineItem{}
	}
	start := len(b.lines) - h
	if start < 0 {
		start = 0
	}
	out := make([][]LineItem, len(b.lines)-start)
	copy(out, b.lines[start:])
	return out
}

// LineText flattens one line's items into plain text.
func (b *Buffer) LineText(i int) string {
	if b == nil || i < 0 || i >= len(b.lines) {
		return ""
	}
	return lineText(b.lines[i])
}

// WindowText flattens the visible window of height h into plain text,
// one line per row.
func (b *Buffer) WindowText(h int) string {
	window := b.VisibleWindow(h)
	rows := make([]string, len(window))
	for i, line := range window {
		rows[i] = lineText(line)
	}
	return strings.Join(rows, "\n")
}

// Text flattens the whole buffer into plain text.
func (b *Buffer) Text() string {
	if b == nil {
		return ""
	}
	return b.WindowText(len(b.lines))
}

func lineText(items []LineItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.Lexeme)
	}
	return sb.String()
}
