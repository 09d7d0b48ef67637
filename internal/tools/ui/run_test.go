package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelRendersResult(t *testing.T) {
	m := newModel("migrate up", time.Second, func(context.Context) ([]string, error) { return nil, nil })
	if view := m.View(); !strings.Contains(view, "running") {
		t.Fatalf("expected running view, got %q", view)
	}

	next, cmd := m.Update(doneMsg{details: []string{"schema migration applied"}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	done := next.(model)
	view := done.View()
	if !strings.Contains(view, "OK") || !strings.Contains(view, "schema migration applied") {
		t.Fatalf("unexpected view %q", view)
	}
}

func TestModelRendersFailure(t *testing.T) {
	m := newModel("seed apply", time.Second, nil)
	next, _ := m.Update(doneMsg{err: errors.New("db down")})
	if view := next.(model).View(); !strings.Contains(view, "FAILED") || !strings.Contains(view, "db down") {
		t.Fatalf("unexpected view %q", view)
	}
}

func TestModelInterrupt(t *testing.T) {
	m := newModel("seed apply", time.Second, nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || next.(model).err == nil {
		t.Fatal("expected interrupt to quit with an error")
	}
}

func TestModelTickStopsAfterDone(t *testing.T) {
	m := newModel("seed apply", time.Second, nil)
	m.done = true
	if _, cmd := m.Update(tickMsg(time.Now())); cmd != nil {
		t.Fatal("tick should not reschedule after completion")
	}
}
