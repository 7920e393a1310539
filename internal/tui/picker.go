// Package tui is the launcher menu shown when framesim starts without a
// subcommand.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/framesim/internal/config"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

var sceneInfo = map[string]string{
	"chain":       "particles joined by springs",
	"cloth":       "triangle cloth over a mesh",
	"rigid_chain": "articulated boxes on revolute joints",
}

// Choice is what the user picked.
type Choice struct {
	Scene  string
	Preset string
}

type state int

const (
	stateScene state = iota
	statePreset
)

type model struct {
	state   state
	cursor  int
	scenes  []string
	presets []string

	scene  string
	choice *Choice
	width  int
}

func newModel() model {
	return model{scenes: config.Scenes(), width: 80}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	items := m.items()
	switch msg.String() {
	case "q", "ctrl+c":
		m.choice = nil
		return m, tea.Quit
	case "esc", "backspace", "left", "h":
		if m.state == statePreset {
			m.state = stateScene
			m.cursor = indexOf(m.scenes, m.scene)
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "enter", " ", "right", "l":
		if len(items) == 0 {
			return m, nil
		}
		if m.state == stateScene {
			m.scene = items[m.cursor]
			m.presets = config.ListPresets(m.scene)
			m.state = statePreset
			m.cursor = 0
			return m, nil
		}
		m.choice = &Choice{Scene: m.scene, Preset: items[m.cursor]}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) items() []string {
	if m.state == statePreset {
		return m.presets
	}
	return m.scenes
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("          " + cyan.Render("f r a m e s i m") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	if m.state == statePreset {
		b.WriteString("      " + yellow.Render(m.scene) + "\n\n")
	}
	for i, name := range m.items() {
		desc := m.describe(name)
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-16s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-16s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	if m.state == statePreset {
		b.WriteString(dim.Render("      ↑↓ select   enter run   esc back   q quit") + "\n")
	} else {
		b.WriteString(dim.Render("      ↑↓ select   enter presets   q quit") + "\n")
	}
	return b.String()
}

func (m model) describe(name string) string {
	if m.state == stateScene {
		return sceneInfo[name]
	}
	cfg := config.GetPreset(m.scene, name)
	if cfg == nil {
		return ""
	}
	frames := fmt.Sprintf("%d frames", cfg.Frames)
	if cfg.Unbounded() {
		frames = "until closed"
	}
	return fmt.Sprintf("%s, %d substeps, %s", cfg.Integrator, cfg.Substeps, frames)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}

// Pick shows the menu and returns the chosen scene and preset. ok is false
// when the user quit without choosing.
func Pick(opts ...tea.ProgramOption) (choice Choice, ok bool, err error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(newModel(), opts...).Run()
	if err != nil {
		return Choice{}, false, err
	}
	m, _ := final.(model)
	if m.choice == nil {
		return Choice{}, false, nil
	}
	return *m.choice, true, nil
}
