// Package hotkey drives live sessions from a global key combination using
// gohook. In "hold" mode a session runs while the keys are held; in
// "toggle" mode each press starts or stops one.
package hotkey

import (
	"context"
	"fmt"
	"sync"

	hook "github.com/robotn/gohook"
)

// Action is what a key event asks the session controller to do.
type Action int

const (
	// Start begins a recording session.
	Start Action = iota
	// Stop ends the running session.
	Stop
)

func (a Action) String() string {
	if a == Start {
		return "start"
	}
	return "stop"
}

// Machine maps raw key-down and key-up events to session actions. It
// swallows auto-repeat downs and ups that do not end a session.
type Machine struct {
	mode      string
	recording bool
}

// NewMachine returns a Machine for "hold" or "toggle" mode.
func NewMachine(mode string) (*Machine, error) {
	switch mode {
	case "hold", "toggle":
		return &Machine{mode: mode}, nil
	default:
		return nil, fmt.Errorf("hotkey: unknown mode %q", mode)
	}
}

// Down handles the combination being pressed.
func (m *Machine) Down() (Action, bool) {
	if m.mode == "toggle" {
		m.recording = !m.recording
		if m.recording {
			return Start, true
		}
		return Stop, true
	}
	if m.recording {
		return 0, false
	}
	m.recording = true
	return Start, true
}

// Up handles the combination being released.
func (m *Machine) Up() (Action, bool) {
	if m.mode == "toggle" || !m.recording {
		return 0, false
	}
	m.recording = false
	return Stop, true
}

// Sync tells the machine whether a session is actually running, for
// example after a start failed.
func (m *Machine) Sync(recording bool) {
	m.recording = recording
}

// Listener manages a global hotkey and emits session actions.
type Listener struct {
	keys []string
	ch   chan Action

	mu sync.Mutex
	m  *Machine

	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "r"]).
func NewListener(keys []string, mode string) (*Listener, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hotkey: no keys configured")
	}
	m, err := NewMachine(mode)
	if err != nil {
		return nil, err
	}
	return &Listener{
		keys: keys,
		m:    m,
		ch:   make(chan Action, 16),
		done: make(chan struct{}),
	}, nil
}

// Actions returns the channel that receives session actions.
// The channel is closed when the listener stops.
func (l *Listener) Actions() <-chan Action {
	return l.ch
}

// Run listens for the global hotkey until ctx is done or Stop is called.
// It blocks; run it in a goroutine.
func (l *Listener) Run(ctx context.Context) {
	emit := func(step func() (Action, bool)) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if a, ok := step(); ok {
			select {
			case l.ch <- a:
			default: // don't block if channel is full
			}
		}
	}

	hook.Register(hook.KeyDown, l.keys, func(hook.Event) { emit(l.m.Down) })
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) { emit(l.m.Up) })

	evChan := hook.Start()
	go func() {
		select {
		case <-l.done:
		case <-ctx.Done():
		}
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Sync corrects the listener's view of whether a session is running.
func (l *Listener) Sync(recording bool) {
	l.mu.Lock()
	l.m.Sync(recording)
	l.mu.Unlock()
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
