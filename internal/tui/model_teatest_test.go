package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/exp/teatest/v2"

	"github.com/evanschultz/initboard/internal/domain"
)

func newProgramModel(src *fakeSource) Model {
	return NewModel(src,
		WithInitiative(domain.Initiative{ID: "i1", Name: "Launch"}),
		WithUserID("u1"),
	)
}

// TestModelWithTeatest renders the loaded board through a real program loop.
func TestModelWithTeatest(t *testing.T) {
	tm := teatest.NewTestModel(t, newProgramModel(newFakeSource(sampleTasks()...)), teatest.WithInitialTermSize(120, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Task A") && strings.Contains(string(out), "Task D")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

// TestModelWithTeatestKeyboardMoveSaves moves a card and waits for the saved notice.
func TestModelWithTeatestKeyboardMoveSaves(t *testing.T) {
	src := newFakeSource(sampleTasks()...)
	tm := teatest.NewTestModel(t, newProgramModel(src), teatest.WithInitialTermSize(120, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Task A")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: ']', Text: "]"})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Task moved")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	final, ok := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(Model)
	if !ok {
		t.Fatal("expected final Model")
	}
	assertColumn(t, final, domain.StatusProgress, "a", "d")
	if src.saveCount() != 1 {
		t.Fatalf("expected one save, got %d", src.saveCount())
	}
}
