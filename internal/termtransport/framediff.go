package termtransport

import "gitcanvas/cli/internal/termbuf"

// Frame is one captured pane snapshot.
type Frame struct {
	Lines      []string
	CursorLine int
	CursorCol  int
}

// DiffFrames turns two successive snapshots into the smallest event
// sequence that carries the change: nothing for identical frames,
// newLines for pure growth at the bottom, patch for a single changed
// line, and a full screenUpdate for anything larger. A cursor change
// alone becomes cursorMove.
func DiffFrames(prev, curr Frame) []termbuf.Event {
	events := []termbuf.Event{}

	switch {
	case equalLines(prev.Lines, curr.Lines):
		// content unchanged
	case isPrefix(prev.Lines, curr.Lines):
		added := make([][]termbuf.LineItem, 0, len(curr.Lines)-len(prev.Lines))
		for _, line := range curr.Lines[len(prev.Lines):] {
			added = append(added, termbuf.PlainLine(line))
		}
		events = append(events, termbuf.NewLines{Lines: added})
	default:
		if idx, ok := singleChangedLine(prev.Lines, curr.Lines); ok {
			events = append(events, termbuf.Patch{Line: idx, Items: termbuf.PlainLine(curr.Lines[idx])})
			break
		}
		screen := make([][]termbuf.LineItem, 0, len(curr.Lines))
		for _, line := range curr.Lines {
			screen = append(screen, termbuf.PlainLine(line))
		}
		return []termbuf.Event{termbuf.ScreenUpdate{
			Screen:     screen,
			CursorLine: curr.CursorLine,
			CursorCol:  curr.CursorCol,
		}}
	}

	if prev.CursorLine != curr.CursorLine || prev.CursorCol != curr.CursorCol {
		events = append(events, termbuf.CursorMove{Line: curr.CursorLine, Col: curr.CursorCol})
	}
	return events
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isPrefix(prev, curr []string) bool {
	if len(prev) >= len(curr) {
		return false
	}
	for i := range prev {
		if prev[i] != curr[i] {
			return false
		}
	}
	return true
}

func singleChangedLine(prev, curr []string) (int, bool) {
	if len(prev) != len(curr) {
		return 0, false
	}
	idx := -1
	for i := range prev {
		if prev[i] != curr[i] {
			if idx >= 0 {
				return 0, false
			}
			idx = i
		}
	}
	if idx < 0 {
		return 0, false
	}
	return idx, true
}
