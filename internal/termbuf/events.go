package termbuf

import (
	"encoding/json"
	"fmt"
)

// Color is a terminal palette reference. Named entries use the ANSI
// name; the 256-color palette and truecolor use the ExtendedColor and
// RGBColor constructors.
type Color string

const (
	ColorDefault       Color = "default"
	ColorBlack         Color = "black"
	ColorRed           Color = "red"
	ColorGreen         Color = "green"
	ColorYellow        Color = "yellow"
	ColorBlue          Color = "blue"
	ColorMagenta       Color = "magenta"
	ColorCyan          Color = "cyan"
	ColorWhite         Color = "white"
	ColorBrightBlack   Color = "brightBlack"
	ColorBrightRed     Color = "brightRed"
	ColorBrightGreen   Color = "brightGreen"
	ColorBrightYellow  Color = "brightYellow"
	ColorBrightBlue    Color = "brightBlue"
	ColorBrightMagenta Color = "brightMagenta"
	ColorBrightCyan    Color = "brightCyan"
	ColorBrightWhite   Color = "brightWhite"
)

func ExtendedColor(index uint8) Color {
	return Color(fmt.Sprintf("extended:%d", index))
}

func RGBColor(r, g, b uint8) Color {
	return Color(fmt.Sprintf("rgb:%d,%d,%d", r, g, b))
}

// LineItem is one styled run of text within a terminal line.
type LineItem struct {
	Lexeme      string `json:"lexeme"`
	Width       int    `json:"width"`
	IsBold      bool   `json:"is_bold,omitempty"`
	IsItalic    bool   `json:"is_italic,omitempty"`
	IsUnderline bool   `json:"is_underline,omitempty"`
	Foreground  Color  `json:"foreground_color,omitempty"`
	Background  Color  `json:"background_color,omitempty"`
}

// PlainItem builds an unstyled item for the given text.
func PlainItem(text string) LineItem {
	return LineItem{Lexeme: text, Width: len([]rune(text))}
}

// PlainLine builds a single-item unstyled line.
func PlainLine(text string) []LineItem {
	if text == "" {
		return []LineItem{}
	}
	return []LineItem{PlainItem(text)}
}

type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// Event is one incremental terminal update. The set is closed: every
// consumer switches exhaustively over the concrete types below.
type Event interface {
	eventType() string
}

// ScreenUpdate replaces the entire buffer after a bulk redraw.
type ScreenUpdate struct {
	Screen     [][]LineItem `json:"screen"`
	CursorLine int          `json:"cursor_line"`
	CursorCol  int          `json:"cursor_col"`
}

// NewLines appends lines to the end of the buffer.
type NewLines struct {
	Lines [][]LineItem `json:"lines"`
}

// Patch replaces exactly one line in place.
type Patch struct {
	Line  int        `json:"line"`
	Items []LineItem `json:"items"`
}

// CursorMove updates the cursor position without touching line content.
type CursorMove struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Scroll is carried on the wire for viewport navigation. It never
// mutates buffer contents.
type Scroll struct {
	Direction ScrollDirection `json:"direction"`
	Amount    int             `json:"amount"`
}

func (ScreenUpdate) eventType() string { return "screenUpdate" }
func (NewLines) eventType() string     { return "newLines" }
func (Patch) eventType() string        { return "patch" }
func (CursorMove) eventType() string   { return "cursorMove" }
func (Scroll) eventType() string       { return "scroll" }

type eventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEvent encodes an event with its type discriminator.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("event is nil")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{Type: ev.eventType(), Payload: payload})
}

// UnmarshalEvent decodes an event envelope produced by MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "screenUpdate":
		var ev ScreenUpdate
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "newLines":
		var ev NewLines
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "patch":
		var ev Patch
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "cursorMove":
		var ev CursorMove
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "scroll":
		var ev Scroll
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown terminal event type %q", env.Type)
	}
}
