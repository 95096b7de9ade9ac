package sink

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/chaz8081/vadscribe/internal/pipeline"
)

// Keyboard is the desktop automation surface the injector drives.
type Keyboard interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	KeyTap(key string, modifiers ...string) error
}

// robotKeyboard drives the real desktop through robotgo.
type robotKeyboard struct{}

func (robotKeyboard) Type(text string)                 { robotgo.Type(text) }
func (robotKeyboard) ReadClipboard() (string, error)   { return robotgo.ReadAll() }
func (robotKeyboard) WriteClipboard(text string) error { return robotgo.WriteAll(text) }
func (robotKeyboard) KeyTap(key string, mods ...string) error {
	args := make([]any, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

// Injector types or pastes live fragments into the active application,
// one at a time and in arrival order.
type Injector struct {
	kb     Keyboard
	method string // "type" or "paste"
	log    *slog.Logger

	mu sync.Mutex
}

var _ pipeline.LiveSink = (*Injector)(nil)

// NewInjector creates an Injector with the given method.
// method must be "type" (keystroke simulation) or "paste" (clipboard).
func NewInjector(method string, log *slog.Logger) *Injector {
	return newInjector(robotKeyboard{}, method, log)
}

func newInjector(kb Keyboard, method string, log *slog.Logger) *Injector {
	if log == nil {
		log = slog.Default()
	}
	return &Injector{kb: kb, method: method, log: log}
}

// Deliver implements pipeline.LiveSink. Injection failures are logged.
func (inj *Injector) Deliver(f pipeline.Fragment) {
	if err := inj.Inject(f.Text); err != nil {
		inj.log.Warn("injecting fragment", "index", f.Index, "error", err)
	}
}

// Inject sends text followed by a space to the active application.
func (inj *Injector) Inject(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text += " "

	inj.mu.Lock()
	defer inj.mu.Unlock()

	switch inj.method {
	case "paste":
		return inj.paste(text)
	default: // "type"
		inj.kb.Type(text)
		return nil
	}
}

// paste copies text to the clipboard, pastes it, and restores the previous
// clipboard contents.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.kb.ReadClipboard()

	if err := inj.kb.WriteClipboard(text); err != nil {
		return fmt.Errorf("sink: write to clipboard: %w", err)
	}
	if err := inj.kb.KeyTap("v", pasteModifier()); err != nil {
		return fmt.Errorf("sink: key tap paste: %w", err)
	}

	// Best effort.
	_ = inj.kb.WriteClipboard(prev)
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
