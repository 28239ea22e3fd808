package watcher

import (
	"bytes"
	"testing"
	"time"
)

func TestNotifyFallback_Format(t *testing.T) {
	var buf bytes.Buffer
	err := notifyFallback(&buf, Alert{
		Level:   "critical",
		Title:   "Pause recommended: C1/S1",
		Message: "Spent $15.00 with 0 sales.",
		Time:    time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[critical] Pause recommended: C1/S1: Spent $15.00 with 0 sales.\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNotify_DoesNotPanic(t *testing.T) {
	// The result depends on the desktop environment; only the absence of a
	// panic is checked.
	_ = Notify(Alert{Level: "info", Title: "Report updated", Message: "2 rows", Time: time.Now()})
	_ = Notify(Alert{})
}
