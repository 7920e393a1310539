package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m model, keys ...string) (model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(model)
	}
	return m, cmd
}

func TestPickPreset(t *testing.T) {
	m := newModel()
	if len(m.scenes) != 3 || m.scenes[0] != "chain" {
		t.Fatalf("unexpected scenes: %v", m.scenes)
	}

	m, _ = press(m, "down", "enter")
	if m.state != statePreset || m.scene != "cloth" {
		t.Fatalf("expected cloth presets, got state %d scene %q", m.state, m.scene)
	}
	if !strings.Contains(m.View(), "substeps") {
		t.Error("preset view should describe presets")
	}

	m, cmd := press(m, "down", "enter")
	if cmd == nil {
		t.Fatal("expected quit after choosing a preset")
	}
	if m.choice == nil || *m.choice != (Choice{Scene: "cloth", Preset: "xpbd"}) {
		t.Errorf("unexpected choice: %+v", m.choice)
	}
}

func TestPickBackAndQuit(t *testing.T) {
	m := newModel()
	m, _ = press(m, "down", "down", "enter", "esc")
	if m.state != stateScene || m.cursor != 2 {
		t.Errorf("expected scene list with cursor on rigid_chain, got state %d cursor %d", m.state, m.cursor)
	}

	m, _ = press(m, "down", "down", "up", "up", "up", "up")
	if m.cursor != 0 {
		t.Errorf("cursor should clamp to 0, got %d", m.cursor)
	}

	m, cmd := press(m, "q")
	if cmd == nil || m.choice != nil {
		t.Error("q should quit without a choice")
	}
}
