package consent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var sampleRequest = Request{
	Title:           "Rates",
	PackageName:     "rates-app",
	CurrentVersion:  "1.0.0",
	RequiredVersion: "1.2.0",
}

func TestDecisionString(t *testing.T) {
	tests := map[Decision]string{
		Defer:        "defer",
		Approve:      "approve",
		Ignore:       "ignore",
		Decision(42): "defer",
	}
	for d, want := range tests {
		if got := d.String(); got != want {
			t.Errorf("Decision(%d).String() = %q, want %q", int(d), got, want)
		}
	}

	var zero Decision
	if zero != Defer {
		t.Error("zero Decision should be Defer")
	}
}

func TestRequestText(t *testing.T) {
	if got := sampleRequest.Headline(); got != "Rates has an available update." {
		t.Errorf("Headline() = %q", got)
	}

	noTitle := Request{PackageName: "rates-app", RequiredVersion: "2.0.0"}
	if got := noTitle.Headline(); got != "rates-app has an available update." {
		t.Errorf("Headline() without title = %q", got)
	}
	details := noTitle.Details()
	if !strings.Contains(details[0], "unknown") || !strings.Contains(details[1], "2.0.0") {
		t.Errorf("Details() = %v", details)
	}
}

func TestParseAnswer(t *testing.T) {
	tests := map[string]Decision{
		"1\n":     Approve,
		"u":       Approve,
		"Update":  Approve,
		" yes ":   Approve,
		"2":       Defer,
		"":        Defer,
		"later":   Defer,
		"3":       Ignore,
		"I\r\n":   Ignore,
		"ignore":  Ignore,
		"garbage": Defer,
	}
	for in, want := range tests {
		if got := ParseAnswer(in); got != want {
			t.Errorf("ParseAnswer(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTerminalPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader("3\n"), &out)

	got, err := p.Prompt(context.Background(), sampleRequest)
	if err != nil {
		t.Fatalf("Prompt() error: %v", err)
	}
	if got != Ignore {
		t.Errorf("Prompt() = %v, want ignore", got)
	}
	for _, want := range []string{"Rates has an available update.", "1.0.0", "1.2.0", "Update Now", "Later", "Ignore This Version"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestTerminalPrompterEOFDefers(t *testing.T) {
	p := NewTerminalPrompter(strings.NewReader(""), io.Discard)
	got, err := p.Prompt(context.Background(), sampleRequest)
	if err != nil {
		t.Fatalf("Prompt() error: %v", err)
	}
	if got != Defer {
		t.Errorf("Prompt() = %v, want defer", got)
	}
}

func TestTerminalPrompterContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := NewTerminalPrompter(pr, io.Discard).Prompt(ctx, sampleRequest)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Prompt() error = %v, want deadline exceeded", err)
	}
	if got != Defer {
		t.Errorf("Prompt() = %v, want defer", got)
	}
}

func TestHeadless(t *testing.T) {
	var calls int32
	inner := PrompterFunc(func(context.Context, Request) (Decision, error) {
		atomic.AddInt32(&calls, 1)
		return Approve, nil
	})

	got, err := Headless(inner, func() bool { return false }).Prompt(context.Background(), sampleRequest)
	if err != nil || got != Defer {
		t.Errorf("headless Prompt() = %v, %v; want defer, nil", got, err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("inner prompter should not be consulted without a display")
	}

	got, _ = Headless(inner, func() bool { return true }).Prompt(context.Background(), sampleRequest)
	if got != Approve {
		t.Errorf("interactive Prompt() = %v, want approve", got)
	}

	got, _ = Headless(nil, func() bool { return true }).Prompt(context.Background(), sampleRequest)
	if got != Defer {
		t.Errorf("nil prompter should defer, got %v", got)
	}
}

func TestIsInteractiveNil(t *testing.T) {
	if IsInteractive(nil, nil) {
		t.Error("IsInteractive(nil, nil) should be false")
	}
}

func asciiRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

func sendKey(t *testing.T, m dialogModel, msg tea.KeyMsg) (dialogModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(dialogModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return dm, cmd
}

func TestDialogModelShortcuts(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want Decision
	}{
		{"u approves", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}}, Approve},
		{"i ignores", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}}, Ignore},
		{"l defers", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}}, Defer},
		{"esc defers", tea.KeyMsg{Type: tea.KeyEsc}, Defer},
		{"enter on default defers", tea.KeyMsg{Type: tea.KeyEnter}, Defer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newDialogModel(sampleRequest, asciiRenderer())
			m, cmd := sendKey(t, m, tt.key)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if !m.done || m.decision != tt.want {
				t.Errorf("done=%v decision=%v, want %v", m.done, m.decision, tt.want)
			}
		})
	}
}

func TestDialogModelNavigation(t *testing.T) {
	m := newDialogModel(sampleRequest, asciiRenderer())
	if m.selected != defaultButton || dialogButtons[m.selected].decision != Approve {
		t.Fatalf("selected = %d, want Update Now", m.selected)
	}

	m, cmd := sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || m.decision != Approve {
		t.Errorf("enter decision = %v, want approve", m.decision)
	}

	m = newDialogModel(sampleRequest, asciiRenderer())
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.decision != Defer {
		t.Errorf("tab+enter decision = %v, want defer", m.decision)
	}

	m = newDialogModel(sampleRequest, asciiRenderer())
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.decision != Ignore {
		t.Errorf("left+enter decision = %v, want ignore", m.decision)
	}

	m = newDialogModel(sampleRequest, asciiRenderer())
	for i := 0; i < len(dialogButtons); i++ {
		m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyRight})
	}
	if m.selected != defaultButton {
		t.Errorf("selection should wrap, got %d", m.selected)
	}
}

func TestDialogModelView(t *testing.T) {
	m := newDialogModel(sampleRequest, asciiRenderer())
	view := m.View()
	for _, want := range []string{"Rates has an available update.", "Update Now", "Later", "Ignore This Version", "1.2.0"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}

	m, _ = sendKey(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.View() != "" {
		t.Error("View() should be empty once finished")
	}
}

func TestInlineThread(t *testing.T) {
	ran := false
	if err := (InlineThread{}).RunSync(context.Background(), func(context.Context) { ran = true }); err != nil {
		t.Fatalf("RunSync() error: %v", err)
	}
	if !ran {
		t.Error("InlineThread should run fn in place")
	}
}

func TestQueueThread(t *testing.T) {
	q := NewQueueThread()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ownerDone := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(ownerDone)
	}()

	var order []string
	err := q.RunSync(context.Background(), func(uiCtx context.Context) {
		order = append(order, "outer")
		// Nested submission from the owner goroutine must not deadlock.
		_ = q.RunSync(uiCtx, func(context.Context) {
			order = append(order, "inner")
		})
	})
	if err != nil {
		t.Fatalf("RunSync() error: %v", err)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v", order)
	}

	q.Close()
	select {
	case <-ownerDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Close")
	}

	if err := q.RunSync(context.Background(), func(context.Context) {}); !errors.Is(err, ErrThreadClosed) {
		t.Errorf("RunSync() after Close = %v, want ErrThreadClosed", err)
	}
}

func TestQueueThreadContextCancelled(t *testing.T) {
	q := NewQueueThread()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.RunSync(ctx, func(context.Context) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("RunSync() = %v, want context.Canceled", err)
	}
}
