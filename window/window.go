// Package window wraps the host application window the bootstrapper talks to.
//
// The primary implementation drives a local Chrome installation through
// github.com/zserge/lorca. A degraded fallback opens the system browser
// instead, for machines without Chrome.
package window

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/zserge/lorca"
)

// Window is the handle the bootstrapper holds on the application window.
// Implementations must be safe for concurrent use from multiple goroutines.
type Window interface {
	// Navigate points the window at url.
	Navigate(url string) error
	// ConsoleLog mirrors a line into the window's console stream.
	ConsoleLog(line string)
	// ConsoleError mirrors a line into the window's error stream.
	ConsoleError(line string)
	// Alert shows a blocking modal dialog with the given message.
	Alert(message string)
}

// ChromeWindow renders the application in a dedicated Chrome window.
// lorca serializes Eval calls over a single devtools connection, so the
// handle may be shared across goroutines.
type ChromeWindow struct {
	ui     lorca.UI
	logger *slog.Logger
}

// NewChrome opens a Chrome window showing a minimal splash page. It fails if
// no usable Chrome installation is found.
func NewChrome(title string, width, height int, logger *slog.Logger) (*ChromeWindow, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ui, err := lorca.New("data:text/html,"+url.PathEscape(splashPage(title)), "", width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to open Chrome window: %w", err)
	}

	return &ChromeWindow{
		ui:     ui,
		logger: logger.With("component", "ChromeWindow"),
	}, nil
}

// Navigate loads url in the window.
func (w *ChromeWindow) Navigate(url string) error {
	return w.ui.Load(url)
}

// ConsoleLog writes a line to the page's console.
func (w *ChromeWindow) ConsoleLog(line string) {
	w.eval("console.log", line)
}

// ConsoleError writes a line to the page's error console.
func (w *ChromeWindow) ConsoleError(line string) {
	w.eval("console.error", line)
}

// Alert shows a blocking alert dialog in the window.
func (w *ChromeWindow) Alert(message string) {
	w.eval("alert", message)
}

// Bind exposes a Go function to the page under the given name.
func (w *ChromeWindow) Bind(name string, fn interface{}) error {
	return w.ui.Bind(name, fn)
}

// Done returns a channel that closes when the window is closed by the user.
func (w *ChromeWindow) Done() <-chan struct{} {
	return w.ui.Done()
}

// Close tears the window down.
func (w *ChromeWindow) Close() error {
	return w.ui.Close()
}

func (w *ChromeWindow) eval(fn, arg string) {
	v := w.ui.Eval(fn + "(" + jsString(arg) + ")")
	if err := v.Err(); err != nil {
		// The page may be mid-navigation; losing a console line is acceptable.
		w.logger.Debug("Window eval failed", "fn", fn, "error", err)
	}
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func splashPage(title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head>
<body style="font-family: sans-serif; display: flex; align-items: center; justify-content: center; height: 100%%">
<div>Starting server&hellip;</div>
</body></html>`, title)
}
