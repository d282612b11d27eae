package sidecar

import (
	"context"
	"strings"
	"testing"
	"time"
)

// collectEvents drains the handle's event channel with a timeout so a broken
// pump cannot hang the test suite.
func collectEvents(t *testing.T, h *Handle) []Event {
	t.Helper()

	var events []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("Timed out waiting for events, got %d so far", len(events))
		}
	}
}

func linesOf(events []Event, kind EventKind) []string {
	var lines []string
	for _, ev := range events {
		if ev.Kind == kind {
			lines = append(lines, ev.Line)
		}
	}
	return lines
}

func TestSpawnForwardsStdoutInOrder(t *testing.T) {
	h, err := Spawn(context.Background(), "/bin/sh", []string{"-c", "echo one; echo two; echo three"}, nil, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	events := collectEvents(t, h)

	got := linesOf(events, Stdout)
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d stdout lines, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	last := events[len(events)-1]
	if last.Kind != Exit {
		t.Errorf("Expected final event to be Exit, got %v", last.Kind)
	}
	if last.Err != nil {
		t.Errorf("Expected clean exit, got %v", last.Err)
	}
}

func TestSpawnForwardsStderrAndExitError(t *testing.T) {
	h, err := Spawn(context.Background(), "/bin/sh", []string{"-c", "echo oops 1>&2; exit 3"}, nil, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	events := collectEvents(t, h)

	stderr := linesOf(events, Stderr)
	if len(stderr) != 1 || stderr[0] != "oops" {
		t.Errorf("Expected stderr [oops], got %v", stderr)
	}

	last := events[len(events)-1]
	if last.Kind != Exit {
		t.Fatalf("Expected final event to be Exit, got %v", last.Kind)
	}
	if last.Err == nil {
		t.Error("Expected exit error for non-zero exit code")
	}
}

func TestSpawnPassesEnvironment(t *testing.T) {
	env := []string{"PORT=3000", "NODE_ENV=production", "PATH=/usr/bin:/bin"}
	h, err := Spawn(context.Background(), "/bin/sh", []string{"-c", `echo "$PORT-$NODE_ENV"`}, env, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	events := collectEvents(t, h)
	stdout := linesOf(events, Stdout)
	if len(stdout) != 1 || stdout[0] != "3000-production" {
		t.Errorf("Expected stdout [3000-production], got %v", stdout)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	h, err := Spawn(context.Background(), "/nonexistent/binary", nil, nil, "")
	if err == nil {
		t.Fatal("Expected error spawning missing binary")
	}
	if h != nil {
		t.Error("Expected nil handle on spawn failure")
	}
}

func TestSpawnReportsPID(t *testing.T) {
	h, err := Spawn(context.Background(), "/bin/sh", []string{"-c", "true"}, nil, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if h.PID() <= 0 {
		t.Errorf("Expected positive PID, got %d", h.PID())
	}
	collectEvents(t, h)
}

func TestSpawnContextCancellationKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "sleep 60"}, nil, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	cancel()

	events := collectEvents(t, h)
	last := events[len(events)-1]
	if last.Kind != Exit {
		t.Fatalf("Expected Exit event after cancellation, got %v", last.Kind)
	}
	if last.Err == nil {
		t.Error("Expected exit error after the child was killed")
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind     EventKind
		expected string
	}{
		{Stdout, "stdout"},
		{Stderr, "stderr"},
		{Exit, "exit"},
		{EventKind(42), "invalid"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestSpawnInterleavesStreamsWithoutLoss(t *testing.T) {
	script := "for i in 1 2 3 4 5; do echo out$i; echo err$i 1>&2; done"
	h, err := Spawn(context.Background(), "/bin/sh", []string{"-c", script}, nil, "")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	events := collectEvents(t, h)

	stdout := linesOf(events, Stdout)
	stderr := linesOf(events, Stderr)
	if len(stdout) != 5 || len(stderr) != 5 {
		t.Fatalf("Expected 5 lines per stream, got stdout=%v stderr=%v", stdout, stderr)
	}
	// Interleaving across streams is unspecified; per-stream order is not.
	if strings.Join(stdout, ",") != "out1,out2,out3,out4,out5" {
		t.Errorf("Stdout out of order: %v", stdout)
	}
	if strings.Join(stderr, ",") != "err1,err2,err3,err4,err5" {
		t.Errorf("Stderr out of order: %v", stderr)
	}
}
