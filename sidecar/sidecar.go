// Package sidecar spawns the bundled server executable as a child process and
// exposes its output as a finite sequence of events.
//
// A Handle owns exactly one child process. Its event channel carries every
// stdout and stderr line in emission order, followed by a single Exit event,
// and is then closed. Consuming the channel to exhaustion is the only
// lifecycle obligation a caller has.
package sidecar

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"
)

// EventKind identifies what a child process event carries.
type EventKind int

const (
	// Stdout is a single line written to the child's standard output.
	Stdout EventKind = iota
	// Stderr is a single line written to the child's standard error.
	Stderr
	// Exit is the terminal event; the channel closes after it.
	Exit
)

// String returns a string representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case Exit:
		return "exit"
	default:
		return "invalid"
	}
}

// Event is one item in the child's output sequence.
type Event struct {
	Kind EventKind
	Line string // Set for Stdout and Stderr events.
	Err  error  // Set on Exit when the process terminated abnormally.
}

// Handle owns a spawned child process and its output event channel.
type Handle struct {
	cmd    *exec.Cmd
	events chan Event
}

// Spawn starts bin with the given arguments, environment and working
// directory, and begins pumping its output into the returned Handle's event
// channel. The process is bound to ctx: cancelling it kills the child.
//
// A nil env inherits the parent environment, matching os/exec.
func Spawn(ctx context.Context, bin string, args []string, env []string, dir string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = env
	cmd.Dir = dir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{
		cmd:    cmd,
		events: make(chan Event, 64),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go h.pump(stdoutPipe, Stdout, &wg)
	go h.pump(stderrPipe, Stderr, &wg)

	// Wait must not run until both pipes are drained, or lines can be lost.
	go func() {
		wg.Wait()
		err := cmd.Wait()
		h.events <- Event{Kind: Exit, Err: err}
		close(h.events)
	}()

	return h, nil
}

// Events returns the channel of output events. It is closed once the child
// has terminated and the Exit event has been delivered.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// PID returns the operating system process ID of the child.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

func (h *Handle) pump(r io.Reader, kind EventKind, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.events <- Event{Kind: kind, Line: scanner.Text()}
	}
	// A scanner error here usually means the pipe closed mid-line because
	// the process died; the Exit event reports the interesting part.
}
