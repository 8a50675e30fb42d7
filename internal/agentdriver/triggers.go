package agentdriver

import "strings"

// TriggerAction is what the driver does when a trigger matches.
type TriggerAction string

const (
	// ActionConfirmTrust answers the folder-trust question with Enter.
	ActionConfirmTrust TriggerAction = "confirm_trust"
	// ActionSkipSessionPrompt picks the "don't ask again this session"
	// option with Shift+Tab.
	ActionSkipSessionPrompt TriggerAction = "skip_session_prompt"
	// ActionInjectPrompt types the task prompt and submits it.
	ActionInjectPrompt TriggerAction = "inject_prompt"
	// ActionEndInput sends end-of-input twice to leave the interactive
	// loop once the tool is idle again.
	ActionEndInput TriggerAction = "end_input"
	// ActionWait does nothing; the tool is still working.
	ActionWait TriggerAction = "wait"
)

// TriggerState is the per-run automation state a predicate may consult.
type TriggerState struct {
	PromptInjected bool
}

// Trigger pairs a predicate over the visible window text with an
// action. The table is evaluated in order on every buffer change and
// the first match wins. Detection is substring based, not a protocol:
// upstream UI text changes can break a predicate, which is why the
// table is injectable and each predicate is tested against captured
// snapshots.
type Trigger struct {
	Name   string
	Match  func(window string, state TriggerState) bool
	Action TriggerAction
}

// Evaluate returns the first matching trigger for this window.
func Evaluate(triggers []Trigger, window string, state TriggerState) (Trigger, bool) {
	for _, trigger := range triggers {
		if trigger.Match != nil && trigger.Match(window, state) {
			return trigger, true
		}
	}
	return Trigger{}, false
}

// DefaultTriggers is the table tuned for the claude CLI's text UI.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Name: "trust_folder_confirm",
			Match: func(window string, _ TriggerState) bool {
				lower := strings.ToLower(window)
				return strings.Contains(lower, "do you trust the files in this folder") &&
					strings.Contains(lower, "confirm")
			},
			Action: ActionConfirmTrust,
		},
		{
			Name: "skip_session_prompt",
			Match: func(window string, _ TriggerState) bool {
				return strings.Contains(strings.ToLower(window), "don't ask again")
			},
			Action: ActionSkipSessionPrompt,
		},
		{
			Name: "empty_prompt_inject",
			Match: func(window string, state TriggerState) bool {
				return !state.PromptInjected && hasEmptyPromptMarker(window)
			},
			Action: ActionInjectPrompt,
		},
		{
			Name: "idle_prompt_end_input",
			Match: func(window string, state TriggerState) bool {
				return state.PromptInjected &&
					hasPromptMarker(window) &&
					!hasTryHint(window)
			},
			Action: ActionEndInput,
		},
		{
			Name: "still_processing",
			Match: func(window string, _ TriggerState) bool {
				return strings.Contains(strings.ToLower(window), "esc to interrupt")
			},
			Action: ActionWait,
		},
	}
}

// hasPromptMarker finds the tool's input prompt, with or without text
// typed into it.
func hasPromptMarker(window string) bool {
	for _, line := range strings.Split(window, "\n") {
		trimmed := strings.TrimSpace(stripBoxChars(line))
		if trimmed == ">" || strings.HasPrefix(trimmed, "> ") {
			return true
		}
	}
	return false
}

// hasEmptyPromptMarker finds an input prompt with nothing typed yet.
func hasEmptyPromptMarker(window string) bool {
	for _, line := range strings.Split(window, "\n") {
		trimmed := strings.TrimSpace(stripBoxChars(line))
		if trimmed == ">" {
			return true
		}
	}
	return false
}

// hasTryHint matches the placeholder suggestion the tool renders in an
// idle prompt before any task ran (e.g. `Try "fix the build"`).
func hasTryHint(window string) bool {
	return strings.Contains(strings.ToLower(window), `try "`)
}

func stripBoxChars(line string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '│', '╭', '╮', '╰', '╯', '─', '┃', '┌', '┐', '└', '┘':
			return ' '
		}
		return r
	}, line)
}

var doneKeywords = []string{"done", "finished", "completed"}

// LooksDone is the secondary completion guess: one of the last five
// lines mentions a completion word and the tail of the window shows an
// idle shell prompt. Best effort only, never authoritative; the caller
// arms a delayed callback that further activity cancels.
func LooksDone(window string) bool {
	lines := strings.Split(window, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	keyword := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, word := range doneKeywords {
			if strings.Contains(lower, word) {
				keyword = true
			}
		}
	}
	if !keyword {
		return false
	}
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		return trimmed == "$" || trimmed == "%" || trimmed == "#" ||
			strings.HasSuffix(trimmed, "$") || strings.HasSuffix(trimmed, "%")
	}
	return false
}
