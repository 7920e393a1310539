package viz

import (
	"fmt"
	"image"
	"image/gif"
	"os"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/framesim/internal/metrics"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

const (
	canvasWidth     = 80
	canvasHeight    = 24
	historyCapacity = 300
)

type frameMsg struct {
	t      float64
	frame  int64
	edges  []Edge
	energy float64
	lo, hi mgl64.Vec3
}

type gifBuffer struct {
	frames []*image.Paletted
}

type WindowOption func(*Window)

func WithTheme(name string) WindowOption {
	return func(w *Window) { w.theme = name }
}

// WithMaxFrames shows progress toward a bounded run.
func WithMaxFrames(n int) WindowOption {
	return func(w *Window) { w.maxFrames = n }
}

// WithGIF writes frames recorded with the G key to path on Save.
func WithGIF(path string) WindowOption {
	return func(w *Window) { w.gifPath = path }
}

func WithProgramOptions(opts ...tea.ProgramOption) WindowOption {
	return func(w *Window) { w.progOpts = append(w.progOpts, opts...) }
}

// Window is an interactive terminal renderer. The Bubble Tea program starts
// with the first frame and runs until the user quits or Save is called.
type Window struct {
	model     *scene.Model
	title     string
	theme     string
	maxFrames int
	gifPath   string
	progOpts  []tea.ProgramOption

	static *Wireframe
	wire   Wireframe
	t      float64
	frame  int64
	energy float64
	lo, hi mgl64.Vec3

	program *tea.Program
	gif     *gifBuffer
	paused  atomic.Bool
	exited  atomic.Bool
	done    chan struct{}
	err     error
}

func NewWindow(m *scene.Model, title string, opts ...WindowOption) *Window {
	w := &Window{
		model:  m,
		title:  title,
		static: StaticWireframe(m),
		gif:    &gifBuffer{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) start() {
	v := newView(w.title, w.static, &w.paused, themeIndex(w.theme), w.maxFrames, w.gif)
	opts := append([]tea.ProgramOption{tea.WithAltScreen()}, w.progOpts...)
	w.program = tea.NewProgram(v, opts...)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		_, w.err = w.program.Run()
		w.exited.Store(true)
	}()
}

func (w *Window) BeginFrame(t float64) error {
	if w.program == nil {
		w.start()
	}
	w.t = t
	w.wire.Clear()
	return nil
}

func (w *Window) Render(s *sim.State) error {
	DynamicWireframe(&w.wire, w.model, s)
	w.energy = metrics.TotalEnergy(w.model, s)
	w.lo, w.hi = metrics.Extent(s)
	return nil
}

func (w *Window) EndFrame() error {
	w.frame++
	edges := make([]Edge, len(w.wire.Edges))
	copy(edges, w.wire.Edges)
	w.program.Send(frameMsg{t: w.t, frame: w.frame, edges: edges, energy: w.energy, lo: w.lo, hi: w.hi})
	return nil
}

func (w *Window) HasExit() bool { return w.exited.Load() }

// Paused reports whether the user has paused stepping.
func (w *Window) Paused() bool { return w.paused.Load() }

// Save closes the window and writes any recorded GIF.
func (w *Window) Save() error {
	if w.program == nil {
		return nil
	}
	if !w.exited.Load() {
		w.program.Quit()
	}
	<-w.done
	if err := w.saveGIF(); err != nil {
		return err
	}
	return w.err
}

func (w *Window) saveGIF() error {
	if w.gifPath == "" || len(w.gif.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range w.gif.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}
	f, err := os.Create(w.gifPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, &anim)
}

type view struct {
	title     string
	canvas    *Canvas
	cam       *Camera
	static    *Wireframe
	wire      *Wireframe
	frame     frameMsg
	energy    []float64
	paused    *atomic.Bool
	theme     int
	st        styles
	fitted    bool
	showHelp  bool
	recording bool
	gif       *gifBuffer
	maxFrames int
}

func newView(title string, static *Wireframe, paused *atomic.Bool, theme, maxFrames int, buf *gifBuffer) view {
	return view{
		title:     title,
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		cam:       NewCamera(),
		static:    static,
		wire:      &Wireframe{},
		energy:    make([]float64, 0, historyCapacity),
		paused:    paused,
		theme:     theme,
		st:        newStyles(Themes[theme]),
		gif:       buf,
		maxFrames: maxFrames,
	}
}

func (v view) Init() tea.Cmd { return nil }

func (v view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		v.frame = msg
		if len(v.energy) == historyCapacity {
			v.energy = v.energy[1:]
		}
		v.energy = append(v.energy, msg.energy)
		if !v.fitted {
			v.cam.Fit(msg.lo, msg.hi)
			v.fitted = true
		}
		if v.recording {
			v.draw()
			v.gif.frames = append(v.gif.frames, v.canvas.Image(2))
		}
	case tea.WindowSizeMsg:
		v.canvas.Resize(max(20, msg.Width-48), max(8, msg.Height-4))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case " ":
			v.paused.Store(!v.paused.Load())
		case "left", "h":
			v.cam.RotateYaw(-0.1)
		case "right", "l":
			v.cam.RotateYaw(0.1)
		case "up", "k":
			v.cam.RotatePitch(0.1)
		case "down", "j":
			v.cam.RotatePitch(-0.1)
		case "+", "=":
			v.cam.ZoomIn()
		case "-":
			v.cam.ZoomOut()
		case "f":
			v.fitted = false
		case "t":
			v.theme = (v.theme + 1) % len(Themes)
			v.st = newStyles(Themes[v.theme])
		case "g":
			v.recording = !v.recording
		case "?":
			v.showHelp = !v.showHelp
		}
	}
	return v, nil
}

func (v view) draw() {
	v.canvas.Clear()
	v.wire.Edges = append(append(v.wire.Edges[:0], v.static.Edges...), v.frame.edges...)
	Render3D(v.canvas, v.wire, v.cam)
}

func (v view) View() string {
	v.draw()
	canvasView := v.st.canvas.Render(v.canvas.String())

	var s strings.Builder
	s.WriteString(v.st.header.Render(strings.ToUpper(v.title)) + "\n")

	status := v.st.running.Render(AnimatedSpinner(int(v.frame.frame)) + " RUNNING")
	if v.paused.Load() {
		status = v.st.paused.Render("PAUSED")
	}
	if v.recording {
		status += "  " + v.st.recording.Render("● REC")
	}
	s.WriteString(status + "\n\n")

	if len(v.energy) > 1 {
		chart := asciigraph.Plot(v.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(v.st.graph.Render(chart) + "\n\n")
	}

	s.WriteString(v.st.label.Render("Time") + v.st.value.Render(fmt.Sprintf("%.3fs", v.frame.t)) + "\n")
	s.WriteString(v.st.label.Render("Frame") + v.st.value.Render(fmt.Sprintf("%d", v.frame.frame)) + "\n")
	s.WriteString(v.st.label.Render("Energy") + v.st.value.Render(fmt.Sprintf("%.4g", v.frame.energy)) + "\n")
	s.WriteString(v.st.label.Render("Theme") + v.st.value.Render(Themes[v.theme].Name) + "\n")
	if v.maxFrames > 0 {
		s.WriteString("\n" + v.st.progressBar(float64(v.frame.frame)/float64(v.maxFrames), 24) + "\n")
	}

	if v.showHelp {
		s.WriteString(v.st.keyHint.Render("\nSpace  pause/resume\n←→↑↓   orbit\n+/-    zoom\nF      refit camera\nT      theme\nG      record GIF\nQ      quit"))
	} else {
		s.WriteString(v.st.keyHint.Render("\nSP:Pause Q:Quit ?:Help"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, v.st.panel.Render(s.String()))
}
