package taskledger

import "testing"

func completedTask(t *testing.T, l *Ledger, prompt, commit string) string {
	t.Helper()
	id := l.CreatePromptingTask(prompt)
	if !l.StartTask(id, "proc-"+id[:4]) {
		t.Fatalf("StartTask failed for %s", id)
	}
	if !l.CompleteTask(id, commit) {
		t.Fatalf("CompleteTask failed for %s", id)
	}
	return id
}

func TestLedger_ForwardOnlyTransitions(t *testing.T) {
	l := NewLedger()
	id := l.CreatePromptingTask("do the thing")

	if l.CompleteTask(id, "abc") {
		t.Fatalf("CompleteTask must fail while Prompting")
	}
	if !l.StartTask(id, "p1") {
		t.Fatalf("StartTask failed")
	}
	if l.StartTask(id, "p1") {
		t.Fatalf("StartTask must fail once InProgress")
	}
	if l.UpdateTaskPrompt(id, "edited") {
		t.Fatalf("prompt edits only legal while Prompting")
	}
	if !l.CompleteTask(id, "abc") {
		t.Fatalf("CompleteTask failed")
	}
	if l.CompleteTask(id, "def") {
		t.Fatalf("CompleteTask must fail once Completed")
	}
	task, _ := l.Task(id)
	if task.CommitHash != "abc" || task.IsReverted {
		t.Fatalf("unexpected completed task: %#v", task)
	}
}

func TestLedger_StartUnknownTask(t *testing.T) {
	l := NewLedger()
	if l.StartTask("missing", "") {
		t.Fatalf("StartTask should fail for unknown id")
	}
}

func TestLedger_UpdatePromptWhilePrompting(t *testing.T) {
	l := NewLedger()
	id := l.CreatePromptingTask("v1")
	if !l.UpdateTaskPrompt(id, "v2") {
		t.Fatalf("UpdateTaskPrompt failed")
	}
	task, _ := l.Task(id)
	if task.Prompt != "v2" {
		t.Fatalf("prompt not updated: %q", task.Prompt)
	}
}

func TestLedger_CurrentQueries(t *testing.T) {
	l := NewLedger()
	first := l.CreatePromptingTask("first")
	second := l.CreatePromptingTask("second")

	current, ok := l.CurrentPromptingTask()
	if !ok || current.ID != second {
		t.Fatalf("expected most recent prompting task, got %#v", current)
	}

	if !l.StartTask(first, "p1") {
		t.Fatalf("StartTask failed")
	}
	inProgress, ok := l.CurrentInProgressTask()
	if !ok || inProgress.ID != first {
		t.Fatalf("expected first task in progress, got %#v", inProgress)
	}

	// After a valid create->start->complete sequence only one task can
	// ever be InProgress at a time through these queries.
	if !l.CompleteTask(first, NoChangesCommit) {
		t.Fatalf("CompleteTask failed")
	}
	if _, ok := l.CurrentInProgressTask(); ok {
		t.Fatalf("no task should remain in progress")
	}
}

func TestLedger_RevertMarksTaskAndEverythingAfter(t *testing.T) {
	l := NewLedger()
	a := completedTask(t, l, "a", "hash-a")
	b := completedTask(t, l, "b", "hash-b")
	c := completedTask(t, l, "c", "hash-c")

	if !l.RevertTask(b) {
		t.Fatalf("RevertTask failed")
	}
	ta, _ := l.Task(a)
	tb, _ := l.Task(b)
	tc, _ := l.Task(c)
	if ta.IsReverted {
		t.Fatalf("task before revert point must stay applied")
	}
	if !tb.IsReverted || !tc.IsReverted {
		t.Fatalf("revert must cover the task and everything after: %v %v", tb.IsReverted, tc.IsReverted)
	}
}

func TestLedger_RestoreAfterRevertAsymmetry(t *testing.T) {
	l := NewLedger()
	a := completedTask(t, l, "a", "hash-a")
	b := completedTask(t, l, "b", "hash-b")
	c := completedTask(t, l, "c", "hash-c")

	if !l.RevertTask(a) {
		t.Fatalf("RevertTask failed")
	}
	if !l.RestoreTask(b) {
		t.Fatalf("RestoreTask failed")
	}
	ta, _ := l.Task(a)
	tb, _ := l.Task(b)
	tc, _ := l.Task(c)
	if ta.IsReverted || tb.IsReverted {
		t.Fatalf("restore must clear start..b: %v %v", ta.IsReverted, tb.IsReverted)
	}
	// c stays exactly as the revert left it.
	if !tc.IsReverted {
		t.Fatalf("restore must not touch tasks after the restore point")
	}
}

func TestLedger_RevertThenRestoreSameTask(t *testing.T) {
	l := NewLedger()
	a := completedTask(t, l, "a", "hash-a")
	b := completedTask(t, l, "b", "hash-b")
	c := completedTask(t, l, "c", "hash-c")

	if !l.RevertTask(b) || !l.RestoreTask(b) {
		t.Fatalf("revert/restore failed")
	}
	ta, _ := l.Task(a)
	tb, _ := l.Task(b)
	tc, _ := l.Task(c)
	if ta.IsReverted || tb.IsReverted {
		t.Fatalf("start..b must be restored")
	}
	if !tc.IsReverted {
		t.Fatalf("tasks after b keep the revert")
	}
}

func TestLedger_RevertTargetCommitSkipsSentinels(t *testing.T) {
	l := NewLedger()
	completedTask(t, l, "a", "hash-a")
	completedTask(t, l, "b", NoChangesCommit)
	completedTask(t, l, "c", "")
	d := completedTask(t, l, "d", "hash-d")

	target, ok := l.RevertTargetCommit(d)
	if !ok || target != "hash-a" {
		t.Fatalf("expected hash-a, got %q (%v)", target, ok)
	}
}

func TestLedger_RevertTargetCommitBeforeFirst(t *testing.T) {
	l := NewLedger()
	a := completedTask(t, l, "a", NoChangesCommit)
	target, ok := l.RevertTargetCommit(a)
	if !ok || target != RevertTargetBeforeFirst {
		t.Fatalf("expected before-first sentinel, got %q (%v)", target, ok)
	}
}

func TestLedger_RevertUnknownOrIncompleteTask(t *testing.T) {
	l := NewLedger()
	id := l.CreatePromptingTask("pending")
	if l.RevertTask(id) {
		t.Fatalf("revert should fail for non-completed tasks")
	}
	if l.RevertTask("missing") {
		t.Fatalf("revert should fail for unknown ids")
	}
}

func TestLedger_HistoricalPromptsSkipReverted(t *testing.T) {
	l := NewLedger()
	completedTask(t, l, "keep one", "h1")
	b := completedTask(t, l, "drop", "h2")
	completedTask(t, l, "keep two", "h3")
	pending := l.CreatePromptingTask("not yet run")
	_ = pending

	if !l.RevertTask(b) {
		t.Fatalf("RevertTask failed")
	}
	if !l.RestoreTask(b) {
		t.Fatalf("RestoreTask failed")
	}
	// b restored, but the task after it is still reverted.
	prompts := l.HistoricalPrompts()
	if len(prompts) != 2 || prompts[0] != "keep one" || prompts[1] != "drop" {
		t.Fatalf("unexpected prompts: %v", prompts)
	}
}
