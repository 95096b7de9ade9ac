package hotkey

import "testing"

type step struct {
	down bool
	want Action
	ok   bool
}

func TestMachine(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		steps []step
	}{
		{
			name: "toggle",
			mode: "toggle",
			steps: []step{
				{down: true, want: Start, ok: true},
				{down: false},
				{down: true, want: Stop, ok: true},
				{down: false},
				{down: true, want: Start, ok: true},
			},
		},
		{
			name: "hold",
			mode: "hold",
			steps: []step{
				{down: true, want: Start, ok: true},
				{down: true}, // auto-repeat
				{down: false, want: Stop, ok: true},
				{down: false},
				{down: true, want: Start, ok: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMachine(tt.mode)
			if err != nil {
				t.Fatalf("NewMachine(%q): %v", tt.mode, err)
			}
			for i, s := range tt.steps {
				var got Action
				var ok bool
				if s.down {
					got, ok = m.Down()
				} else {
					got, ok = m.Up()
				}
				if ok != s.ok || (ok && got != s.want) {
					t.Fatalf("step %d: got (%v, %v), want (%v, %v)", i, got, ok, s.want, s.ok)
				}
			}
		})
	}
}

func TestMachineSync(t *testing.T) {
	m, _ := NewMachine("toggle")
	if a, _ := m.Down(); a != Start {
		t.Fatalf("first press = %v, want start", a)
	}
	// The session failed to start.
	m.Sync(false)
	if a, _ := m.Down(); a != Start {
		t.Fatalf("press after failed start = %v, want start", a)
	}
}

func TestNewMachineUnknownMode(t *testing.T) {
	if _, err := NewMachine("double-tap"); err == nil {
		t.Fatal("NewMachine should reject unknown modes")
	}
}

func TestNewListenerValidation(t *testing.T) {
	if _, err := NewListener(nil, "toggle"); err == nil {
		t.Error("NewListener with no keys should return error")
	}
	if _, err := NewListener([]string{"f9"}, "sometimes"); err == nil {
		t.Error("NewListener with bad mode should return error")
	}
	l, err := NewListener([]string{"f9"}, "hold")
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	l.Stop()
	l.Stop()
}

func TestActionString(t *testing.T) {
	if Start.String() != "start" || Stop.String() != "stop" {
		t.Errorf("Action strings = %q, %q", Start, Stop)
	}
}
