package window

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// BrowserWindow is the fallback used when no Chrome installation is
// available: navigation opens a tab in the system default browser, and
// console output lands in the process log instead of a window.
type BrowserWindow struct {
	logger *slog.Logger
}

// NewBrowser creates the fallback window handle.
func NewBrowser(logger *slog.Logger) *BrowserWindow {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserWindow{logger: logger.With("component", "BrowserWindow")}
}

func (w *BrowserWindow) Navigate(url string) error {
	w.logger.Info("Opening in default browser", "url", url)
	return openBrowser(url)
}

func (w *BrowserWindow) ConsoleLog(line string) {
	w.logger.Info("Server output", "line", line)
}

func (w *BrowserWindow) ConsoleError(line string) {
	w.logger.Error("Server output", "line", line)
}

func (w *BrowserWindow) Alert(message string) {
	// No window to block; the log is the best we can do here.
	w.logger.Error("Alert", "message", message)
}

// openBrowser launches the platform's URL handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
