// Package bootstrap implements the launch sequence of the desktop shell:
// locate the bundled server, spawn it, mirror its output into the window
// console, wait for it to become reachable, and point the window at it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/appfoundry/appshell/history"
	"github.com/appfoundry/appshell/launchkey"
	"github.com/appfoundry/appshell/probe"
	"github.com/appfoundry/appshell/sidecar"
	"github.com/appfoundry/appshell/window"
)

const (
	// DefaultPort is the port the bundled server listens on.
	DefaultPort = 3000
	// DefaultEntryPoint is the server's main script inside the resource
	// directory.
	DefaultEntryPoint = "index.js"
	// DefaultRuntime is the executable the entry point is handed to.
	DefaultRuntime = "node"
)

// ProcessHandle is the bootstrapper's view of a spawned server process.
type ProcessHandle interface {
	PID() int
	Events() <-chan sidecar.Event
}

// Spawner launches the server executable. The default implementation is
// backed by the sidecar package; tests substitute their own.
type Spawner interface {
	Spawn(ctx context.Context, bin string, args []string, env []string, dir string) (ProcessHandle, error)
}

type sidecarSpawner struct{}

func (sidecarSpawner) Spawn(ctx context.Context, bin string, args []string, env []string, dir string) (ProcessHandle, error) {
	h, err := sidecar.Spawn(ctx, bin, args, env, dir)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Config holds configuration options for the Bootstrapper.
type Config struct {
	Window        window.Window  // Required. The application window handle.
	Logger        *slog.Logger   // Optional, defaults to slog.Default().
	History       *history.Store // Optional launch history; nil disables it.
	ServerDir     string         // Optional. Overrides executable-relative resolution.
	EntryPoint    string         // Optional, defaults to index.js.
	Runtime       string         // Optional, defaults to node.
	Port          int            // Optional, defaults to 3000.
	ProbeAttempts int            // Optional, defaults to probe.DefaultAttempts.
	ProbeInterval time.Duration  // Optional, defaults to probe.DefaultInterval.
	HTTPClient    *http.Client   // Optional client for readiness probes.
	Spawner       Spawner        // Optional, defaults to the sidecar package.
}

// Bootstrapper starts the bundled server and wires it to the window.
type Bootstrapper struct {
	window        window.Window
	logger        *slog.Logger
	history       *history.Store
	serverDir     string
	entryPoint    string
	runtime       string
	port          int
	probeAttempts int
	probeInterval time.Duration
	httpClient    *http.Client
	spawner       Spawner
}

// New creates a Bootstrapper, applying defaults for unset options.
func New(config Config) (*Bootstrapper, error) {
	if config.Window == nil {
		return nil, fmt.Errorf("a window handle is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	entryPoint := config.EntryPoint
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	runtime := config.Runtime
	if runtime == "" {
		runtime = DefaultRuntime
	}
	port := config.Port
	if port == 0 {
		port = DefaultPort
	}
	attempts := config.ProbeAttempts
	if attempts == 0 {
		attempts = probe.DefaultAttempts
	}
	interval := config.ProbeInterval
	if interval == 0 {
		interval = probe.DefaultInterval
	}
	spawner := config.Spawner
	if spawner == nil {
		spawner = sidecarSpawner{}
	}

	return &Bootstrapper{
		window:        config.Window,
		logger:        logger.With("component", "Bootstrapper"),
		history:       config.History,
		serverDir:     config.ServerDir,
		entryPoint:    entryPoint,
		runtime:       runtime,
		port:          port,
		probeAttempts: attempts,
		probeInterval: interval,
		httpClient:    config.HTTPClient,
		spawner:       spawner,
	}, nil
}

// ServerURL returns the local URL the server is expected to listen on.
func (b *Bootstrapper) ServerURL() string {
	return fmt.Sprintf("http://localhost:%d", b.port)
}

// StartServer runs the bootstrap sequence once: resolve the entry point,
// spawn the server, monitor its output in the background, wait for it to
// answer HTTP, then navigate the window to it.
//
// A probe timeout is not an error: the window is redirected regardless, on
// the assumption the server may still come up shortly after. Only path
// resolution, a missing entry point, and spawn refusal are terminal.
func (b *Bootstrapper) StartServer(ctx context.Context) error {
	key, err := launchkey.New()
	if err != nil {
		return fmt.Errorf("failed to create launch key: %w", err)
	}
	logger := b.logger.With("launchID", key.LaunchID)

	serverDir, entryPoint, err := b.resolveEntryPoint()
	if err != nil {
		return err
	}
	logger.Info("Resolved server entry point", "path", entryPoint)

	b.recordLaunch(key.LaunchID, entryPoint)

	if _, err := os.Stat(entryPoint); err != nil {
		launchErr := &ServerNotFoundError{Path: entryPoint, Err: err}
		b.recordOutcome(key.LaunchID, history.OutcomeFailed, launchErr.Error())
		return launchErr
	}

	cfg := NewLaunchConfig(b.port, key)
	env := append(os.Environ(), cfg.Environ()...)
	bin, args := b.launchCommand(serverDir, entryPoint)

	logger.Info("Spawning server", "bin", bin, "args", args, "dir", serverDir)
	handle, err := b.spawner.Spawn(ctx, bin, args, env, serverDir)
	if err != nil {
		launchErr := &SpawnError{Path: entryPoint, Err: err}
		b.recordOutcome(key.LaunchID, history.OutcomeFailed, launchErr.Error())
		return launchErr
	}
	logger.Info("Server process started", "pid", handle.PID())
	b.recordSpawn(key.LaunchID, handle.PID())

	// The monitor has no cancellation of its own: it runs until the event
	// channel closes, which happens when the server terminates or ctx kills
	// it at application shutdown.
	go b.monitor(handle, logger)

	ready, attempts := b.waitReady(ctx, key, logger)
	if !ready {
		logger.Warn("Server not confirmed ready, proceeding anyway",
			"url", b.ServerURL(), "attempts", attempts)
	}
	b.recordProbe(key.LaunchID, attempts, ready)

	if err := b.window.Navigate(b.ServerURL()); err != nil {
		logger.Warn("Failed to navigate window", "url", b.ServerURL(), "error", err)
	} else {
		logger.Info("Window redirected", "url", b.ServerURL())
	}

	b.recordOutcome(key.LaunchID, history.OutcomeRunning, "")
	return nil
}

// resolveEntryPoint derives the server directory and entry point path. By
// default the server lives in resources/build next to the shell executable.
func (b *Bootstrapper) resolveEntryPoint() (string, string, error) {
	dir := b.serverDir
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", "", &PathResolutionError{Err: err}
		}
		dir = filepath.Join(filepath.Dir(exe), "resources", "build")
	}
	return dir, filepath.Join(dir, b.entryPoint), nil
}

// launchCommand picks the binary and arguments for the spawn. A runtime
// bundled next to the entry point wins over one found on PATH.
func (b *Bootstrapper) launchCommand(serverDir, entryPoint string) (string, []string) {
	bundled := filepath.Join(serverDir, b.runtime)
	if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
		return bundled, []string{entryPoint}
	}
	return b.runtime, []string{entryPoint}
}

// waitReady runs the readiness probe loop against the server URL.
func (b *Bootstrapper) waitReady(ctx context.Context, key *launchkey.Key, logger *slog.Logger) (bool, int) {
	budget := time.Duration(b.probeAttempts)*b.probeInterval + time.Minute
	token, err := key.Sign(budget)
	if err != nil {
		// The probe works unauthenticated; the token only marks it as ours.
		logger.Warn("Failed to sign launch token, probing without it", "error", err)
		token = ""
	}

	prober, err := probe.New(probe.Config{
		URL:         b.ServerURL(),
		Attempts:    b.probeAttempts,
		Interval:    b.probeInterval,
		Client:      b.httpClient,
		Logger:      logger,
		BearerToken: token,
	})
	if err != nil {
		logger.Warn("Failed to create prober, skipping readiness wait", "error", err)
		return false, 0
	}

	return prober.WaitReady(ctx)
}

// monitor forwards every output event from the server into the window
// console and the process log, until the event sequence is exhausted.
func (b *Bootstrapper) monitor(handle ProcessHandle, logger *slog.Logger) {
	pid := handle.PID()
	for ev := range handle.Events() {
		switch ev.Kind {
		case sidecar.Stdout:
			b.window.ConsoleLog(ev.Line)
			logger.Info("Server stdout", "pid", pid, "line", ev.Line)
		case sidecar.Stderr:
			b.window.ConsoleError(ev.Line)
			logger.Error("Server stderr", "pid", pid, "line", ev.Line)
		case sidecar.Exit:
			if ev.Err != nil {
				b.window.ConsoleError(fmt.Sprintf("server process terminated: %v", ev.Err))
				logger.Error("Server process terminated", "pid", pid, "error", ev.Err)
			} else {
				b.window.ConsoleLog("server process terminated")
				logger.Info("Server process terminated", "pid", pid)
			}
		}
	}
}

// History writes are best-effort: a broken history database must never block
// a launch.

func (b *Bootstrapper) recordLaunch(launchID, entryPoint string) {
	if b.history == nil {
		return
	}
	if err := b.history.RecordLaunch(launchID, entryPoint); err != nil {
		b.logger.Warn("Failed to record launch", "launchID", launchID, "error", err)
	}
}

func (b *Bootstrapper) recordSpawn(launchID string, pid int) {
	if b.history == nil {
		return
	}
	if err := b.history.RecordSpawn(launchID, pid); err != nil {
		b.logger.Warn("Failed to record spawn", "launchID", launchID, "error", err)
	}
}

func (b *Bootstrapper) recordProbe(launchID string, attempts int, ready bool) {
	if b.history == nil {
		return
	}
	if err := b.history.RecordProbe(launchID, attempts, ready); err != nil {
		b.logger.Warn("Failed to record probe result", "launchID", launchID, "error", err)
	}
}

func (b *Bootstrapper) recordOutcome(launchID, outcome, detail string) {
	if b.history == nil {
		return
	}
	if err := b.history.RecordOutcome(launchID, outcome, detail); err != nil {
		b.logger.Warn("Failed to record outcome", "launchID", launchID, "error", err)
	}
}
