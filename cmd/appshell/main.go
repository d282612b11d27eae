// Package main implements the AppShell desktop application: a thin shell that
// starts the bundled Node.js server as a child process and presents it in a
// local Chrome window.
//
// On launch the shell resolves the bundled server at
// <application_directory>/resources/build/index.js, spawns it with a fixed
// environment (NODE_ENV=production, PORT=3000), mirrors its output into the
// window console, waits for http://localhost:3000 to answer, and navigates
// the window there. The launch sequence is also exposed to the page as the
// `startServer` function, so the front end can re-run it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/appfoundry/appshell/bootstrap"
	"github.com/appfoundry/appshell/history"
	"github.com/appfoundry/appshell/probe"
	"github.com/appfoundry/appshell/window"
)

func main() {
	var (
		port          = flag.Int("port", bootstrap.DefaultPort, "Port the bundled server listens on")
		serverDir     = flag.String("server-dir", "", "Server directory (default: resources/build next to the executable)")
		entryPoint    = flag.String("entry", bootstrap.DefaultEntryPoint, "Server entry point inside the server directory")
		runtime       = flag.String("runtime", bootstrap.DefaultRuntime, "Runtime executable the entry point is handed to")
		probeAttempts = flag.Int("probe-attempts", probe.DefaultAttempts, "Maximum readiness probe attempts")
		probeInterval = flag.Duration("probe-interval", probe.DefaultInterval, "Pacing between readiness probe attempts")
		historyPath   = flag.String("history", "", "Launch history database path (default: per-user config dir)")
		useBrowser    = flag.Bool("browser", false, "Open in the system browser instead of a Chrome window")
		width         = flag.Int("width", 1280, "Window width")
		height        = flag.Int("height", 850, "Window height")
		debug         = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("Starting AppShell")

	store := openHistory(*historyPath, logger)
	if store != nil {
		defer store.Close()
	}

	win, chrome := openWindow(*useBrowser, *width, *height, logger)

	boot, err := bootstrap.New(bootstrap.Config{
		Window:        win,
		Logger:        logger,
		History:       store,
		ServerDir:     *serverDir,
		EntryPoint:    *entryPoint,
		Runtime:       *runtime,
		Port:          *port,
		ProbeAttempts: *probeAttempts,
		ProbeInterval: *probeInterval,
	})
	if err != nil {
		logger.Error("Failed to create bootstrapper", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launch := func() {
		if err := boot.StartServer(ctx); err != nil {
			logger.Error("Server launch failed", "error", err)
			win.Alert(fmt.Sprintf("Failed to start server: %v", err))
			return
		}
		logger.Info("Server launch sequence complete", "url", boot.ServerURL())
	}

	if chrome != nil {
		if err := chrome.Bind("startServer", launch); err != nil {
			logger.Error("Failed to bind startServer command", "error", err)
		}
	}

	// Start the server as soon as the shell is up.
	go launch()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if chrome != nil {
		select {
		case <-chrome.Done():
			logger.Info("Window closed, shutting down")
		case sig := <-sigChan:
			logger.Info("Received signal, shutting down", "signal", sig.String())
		}
		// Cancelling the context tears down the server process.
		cancel()
		if err := chrome.Close(); err != nil {
			logger.Error("Error closing window", "error", err)
		}
	} else {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}

	// Give the sidecar a moment to exit before the process goes away.
	time.Sleep(100 * time.Millisecond)
	logger.Info("AppShell stopped")
}

// openHistory opens the launch history database. History is best-effort: on
// any failure the shell runs without it.
func openHistory(path string, logger *slog.Logger) *history.Store {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			logger.Warn("Cannot determine config directory, launch history disabled", "error", err)
			return nil
		}
		path = filepath.Join(configDir, "appshell", "launches.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("Cannot create history directory, launch history disabled", "path", path, "error", err)
		return nil
	}

	store, err := history.Open(path)
	if err != nil {
		logger.Warn("Cannot open launch history, continuing without it", "path", path, "error", err)
		return nil
	}
	logger.Info("Launch history enabled", "path", path)
	return store
}

// openWindow opens the Chrome window, or falls back to the system browser
// when Chrome is unavailable. The second return value is non-nil only for a
// real Chrome window.
func openWindow(useBrowser bool, width, height int, logger *slog.Logger) (window.Window, *window.ChromeWindow) {
	if useBrowser {
		return window.NewBrowser(logger), nil
	}

	chrome, err := window.NewChrome("AppShell", width, height, logger)
	if err != nil {
		logger.Warn("Failed to open Chrome window, falling back to the system browser", "error", err)
		return window.NewBrowser(logger), nil
	}
	return chrome, chrome
}
