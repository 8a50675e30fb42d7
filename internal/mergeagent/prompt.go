package mergeagent

import (
	"fmt"
	"strings"
)

// BuildMergePrompt renders the instructions handed to the driven CLI
// for one conflict-resolution cycle. Historical prompts give the
// agent the intent behind the canvas's changes.
func BuildMergePrompt(mc MergeContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A git merge of branch %q into %q is in progress in this repository and has conflicts.\n",
		mc.CanvasBranch, mc.RootBranch)
	b.WriteString("Resolve every conflict, keeping the intent of both sides. Stage the resolved files but do not commit.\n")

	if len(mc.ConflictFiles) > 0 {
		b.WriteString("\nConflicted files:\n")
		for _, f := range mc.ConflictFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(mc.HistoricalPrompts) > 0 {
		b.WriteString("\nThe branch being merged was produced by these tasks, in order:\n")
		for i, p := range mc.HistoricalPrompts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
	}

	if mc.MaxAttempts > 0 {
		fmt.Fprintf(&b, "\nThis is attempt %d of %d.\n", mc.Attempt, mc.MaxAttempts)
	}
	return b.String()
}
