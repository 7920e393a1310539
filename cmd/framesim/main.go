package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/framesim/internal/analysis"
	"github.com/san-kum/framesim/internal/automation"
	"github.com/san-kum/framesim/internal/config"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/experiment"
	"github.com/san-kum/framesim/internal/export"
	"github.com/san-kum/framesim/internal/optim"
	"github.com/san-kum/framesim/internal/storage"
	"github.com/san-kum/framesim/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	preset     string
	configFile string
	integrator string
	iterations int
	fps        float64
	substeps   int
	frames     int
	deviceName string
	workers    int
	headless   bool
	ground     bool
	noCapture  bool
	noRecord   bool

	column   string
	outPath  string
	benchFrm int
	frameIdx int
	particle int
	useBody  bool
	plane    string

	sweepParams []string
	metricName  string
	trials      int
	perturb     float64
	seed        int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "framesim",
		Short:         "fixed-rate physics stepping with frame capture and replay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          launch,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".framesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "integrator (semi_implicit, xpbd, featherstone)")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "xpbd constraint iterations")
	runCmd.Flags().Float64Var(&fps, "fps", 0, "frames per second")
	runCmd.Flags().IntVar(&substeps, "substeps", 0, "substeps per frame")
	runCmd.Flags().IntVar(&frames, "frames", 0, "frames to run (-1 runs until the window closes)")
	runCmd.Flags().StringVar(&deviceName, "device", "", fmt.Sprintf("device %v", device.Names()))
	runCmd.Flags().IntVar(&workers, "workers", 0, "kernel worker goroutines")
	runCmd.Flags().BoolVar(&headless, "headless", true, "run without a window")
	runCmd.Flags().BoolVar(&ground, "ground", false, "enable the ground plane")
	runCmd.Flags().BoolVar(&noCapture, "no-capture", false, "disable frame capture")
	runCmd.Flags().BoolVar(&noRecord, "no-record", false, "do not write the run to the data directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a recorded column over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "column to plot (default: last particle height)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and frames as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes := config.Scenes()
			if len(args) > 0 {
				scenes = args
			}
			for _, scene := range scenes {
				presets := config.ListPresets(scene)
				if len(presets) == 0 {
					fmt.Printf("no presets for scene: %s\n", scene)
					continue
				}
				fmt.Printf("presets for %s:\n", scene)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list scenes, integrators and devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			fmt.Printf("scenes:      %s\n", strings.Join(reg.ListScenes(), ", "))
			fmt.Printf("integrators: %s\n", strings.Join(reg.ListIntegrators(), ", "))
			fmt.Printf("devices:     %s\n", strings.Join(device.Names(), ", "))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file with default or preset values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = findPreset("", preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s", preset)
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "compare direct dispatch with captured replay",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScene,
	}
	benchCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	benchCmd.Flags().IntVar(&benchFrm, "frames", 120, "frames per measurement")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "statistics and dominant frequency of a recorded column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "", "column to analyze (default: last particle height)")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "export a trajectory or a single frame as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	svgCmd.Flags().IntVar(&frameIdx, "frame", -1, "draw every point of this frame instead of a trajectory")
	svgCmd.Flags().IntVar(&particle, "particle", -1, "particle (or body) whose path to draw (default: last)")
	svgCmd.Flags().BoolVar(&useBody, "body", false, "trace a body instead of a particle")
	svgCmd.Flags().StringVar(&plane, "plane", "xy", "projection plane (xy, xz, zy)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "grid search parameters for the lowest metric",
		Long: "runs every combination of --param values and reports the one with the lowest --metric.\n" +
			"parameters: " + strings.Join(config.Params(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: sweepScene,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter grid, e.g. substeps=2,4,8 (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().IntVar(&frames, "frames", 120, "frames per trial")
	sweepCmd.Flags().BoolVar(&noRecord, "no-record", false, "do not write trials to the data directory")
	sweepCmd.MarkFlagRequired("param")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [scene]",
		Short: "count diverging runs under random parameter perturbation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  monteCarlo,
	}
	monteCarloCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	monteCarloCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter to perturb, e.g. chain.spring_ke=1e6 (repeatable)")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturbation", 0.2, "relative perturbation")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	monteCarloCmd.Flags().IntVar(&frames, "frames", 120, "frames per trial")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, presetsCmd, scenesCmd, initCmd, benchCmd, analyzeCmd, svgCmd,
		sweepCmd, scenarioCmd, monteCarloCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.Kitchen})
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", logLevel)
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// findPreset looks a preset up in scene, or in every scene when scene is
// empty.
func findPreset(scene, name string) *config.Config {
	if scene != "" {
		return config.GetPreset(scene, name)
	}
	for _, s := range config.Scenes() {
		if cfg := config.GetPreset(s, name); cfg != nil {
			return cfg
		}
	}
	return nil
}

// resolveConfig layers defaults, preset, config file and flags, in that
// order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	scene := ""
	if len(args) > 0 {
		scene = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = findPreset(scene, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scene))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if scene != "" {
		cfg.Scene = scene
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("fps") {
		cfg.FPS = fps
	}
	if flags.Changed("substeps") {
		cfg.Substeps = substeps
	}
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Changed("device") {
		cfg.Device = deviceName
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("ground") {
		cfg.Ground = ground
	}
	if noCapture {
		cfg.Capture = false
	}
	cfg.Output = dataDir
	if noRecord {
		cfg.Output = ""
	}
	return cfg, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()

	sess, err := experiment.NewSession(cfg, experiment.WithLogger(logger), experiment.WithPreset(preset))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := sess.Run(ctx)
	if sum != nil && sum.RunID != "" {
		fmt.Printf("run: %s\n", sum.RunID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("frames: %d (%d substeps, %.3fs simulated)\n", sum.Frames, sum.Steps, sum.SimTime)
	if sum.Frames > 0 {
		fmt.Printf("step time: %v (%v/frame)\n", sum.StepTime, sum.StepTime/time.Duration(sum.Frames))
		fmt.Printf("render time: %v (%v/frame)\n", sum.RenderTime, sum.RenderTime/time.Duration(sum.Frames))
	}
	if sum.Captured {
		fmt.Printf("captured: yes (%d replays)\n", sum.Replays)
	} else {
		fmt.Println("captured: no")
	}
	if len(sum.Metrics) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nMETRIC\tVALUE")
		for _, name := range []string{"energy", "energy_drift", "stability", "strain", "lowest_point"} {
			if v, ok := sum.Metrics[name]; ok {
				fmt.Fprintf(w, "%s\t%.6g\n", name, v)
			}
		}
		return w.Flush()
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tFRAMES\tSUBSTEPS\tINTEG\tDEVICE\tCAPTURED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%t\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Substeps,
			run.Integrator,
			run.Device,
			run.Captured,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	data, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(data.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	col, series, err := selectColumn(meta, data, column)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("frames: %d\n\n", len(data.Rows))

	graph := asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(col+" vs frame"),
	)
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if outPath == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := st.ExportJSON(f, args[0]); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	base := config.DefaultConfig()
	if preset != "" {
		if base = findPreset(args[0], preset); base == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(args[0]))
		}
	}
	base.Scene = args[0]
	base.Frames = benchFrm
	base.Headless = true
	base.Output = ""
	logger := newLogger()
	logger.SetLevel(log.WarnLevel)

	fmt.Printf("benchmarking %s (%s, %d substeps)\n\n", base.Scene, base.Integrator, base.Substeps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tDEVICE\tFRAMES\tTIME\tFRAMES/SEC")

	for _, mode := range []struct {
		name    string
		device  string
		capture bool
	}{
		{"direct", "cpu", false},
		{"eager", "cpu-eager", true},
		{"replay", "cpu", true},
	} {
		cfg := *base
		cfg.Device = mode.device
		cfg.Capture = mode.capture

		sess, err := experiment.NewSession(&cfg, experiment.WithLogger(logger))
		if err != nil {
			return err
		}
		sum, err := sess.Run(context.Background())
		if err != nil {
			return err
		}
		perSec := float64(sum.Frames) / sum.StepTime.Seconds()
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%.1f\n", mode.name, mode.device, sum.Frames, sum.StepTime, perSec)
	}
	return w.Flush()
}

// selectColumn defaults to the height of the last particle, or of the last
// body when there are no particles.
func selectColumn(meta *storage.RunMetadata, data *storage.Frames, col string) (string, []float64, error) {
	if col == "" {
		switch {
		case meta.Particles > 0:
			col = fmt.Sprintf("p%d_y", meta.Particles-1)
		case meta.Bodies > 0:
			col = fmt.Sprintf("b%d_y", meta.Bodies-1)
		default:
			return "", nil, fmt.Errorf("run has no particles or bodies")
		}
	}
	series := data.Column(col)
	if series == nil {
		return "", nil, fmt.Errorf("unknown column: %s", col)
	}
	return col, series, nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	data, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}
	col, series, err := selectColumn(meta, data, column)
	if err != nil {
		return err
	}

	sum := analysis.Describe(series)
	power := analysis.Spectrum(series, meta.FPS)

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("column: %s (%d samples at %g fps)\n\n", col, len(series), meta.FPS)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "min\t%.6g\n", sum.Min)
	fmt.Fprintf(w, "max\t%.6g\n", sum.Max)
	fmt.Fprintf(w, "mean\t%.6g\n", sum.Mean)
	fmt.Fprintf(w, "std\t%.6g\n", sum.Std)
	fmt.Fprintf(w, "final\t%.6g\n", sum.FinalValue)
	fmt.Fprintf(w, "dominant frequency\t%.4g Hz\n", power.Dominant())
	if err := w.Flush(); err != nil {
		return err
	}

	if len(power.Amplitudes) > 2 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(power.Amplitudes[1:],
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("amplitude spectrum"),
		))
	}
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	planes := map[string]export.Plane{"xy": export.PlaneXY, "xz": export.PlaneXZ, "zy": export.PlaneZY}
	pl, ok := planes[plane]
	if !ok {
		return fmt.Errorf("unknown plane: %s", plane)
	}

	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	data, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}

	var svg string
	if frameIdx >= 0 {
		pts, err := export.Frame(data, frameIdx, pl)
		if err != nil {
			return err
		}
		svg = export.PointsToSVG(pts, 800, 600, "#00ff88")
	} else {
		idx := particle
		if idx < 0 {
			idx = meta.Particles - 1
			if useBody {
				idx = meta.Bodies - 1
			}
		}
		pts, err := export.Trajectory(data, idx, useBody, pl)
		if err != nil {
			return err
		}
		svg = export.TrajectoryToSVG(pts, 800, 600, "#00ff88")
	}

	if outPath == "" {
		fmt.Println(svg)
		return nil
	}
	return os.WriteFile(outPath, []byte(svg), 0644)
}

// launch shows the scene menu and runs the pick in a window.
func launch(cmd *cobra.Command, args []string) error {
	choice, ok, err := tui.Pick()
	if err != nil || !ok {
		return err
	}
	cfg := config.GetPreset(choice.Scene, choice.Preset)
	cfg.Headless = false
	cfg.Output = dataDir

	sess, err := experiment.NewSession(cfg, experiment.WithLogger(newLogger()), experiment.WithPreset(choice.Preset))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := sess.Run(ctx)
	if sum != nil && sum.RunID != "" {
		fmt.Printf("run: %s\n", sum.RunID)
	}
	return err
}

func sweepScene(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Headless = true
	cfg.Frames = frames
	params := make([]optim.Param, 0, len(sweepParams))
	for _, s := range sweepParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g := optim.NewGridSearch(params, optim.WithLogger(newLogger()))
	fmt.Printf("sweeping %d configurations of %s\n", g.Size(), cfg.Scene)
	res, err := g.Search(ctx, cfg, metricName)
	if res != nil && len(res.Trials) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "\nPARAMS\t%s\tRUN\n", strings.ToUpper(metricName))
		for _, tr := range res.Trials {
			val := fmt.Sprintf("%.6g", tr.Value)
			if tr.Err != nil {
				val = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", optim.FormatParams(tr.Params), val, tr.RunID)
		}
		w.Flush()
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nbest: %s (%s = %.6g)\n", optim.FormatParams(res.Best), metricName, res.BestValue)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger := newLogger()
	if sc.Description != "" {
		logger.Info("scenario", "name", sc.Name, "description", sc.Description)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunScenario(ctx, sc, dataDir, automation.RunSession(logger), logger)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN\tFRAMES\tCAPTURED\tENERGY_DRIFT")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.6g\n", i+1, r.RunID, r.Frames, r.Captured, r.Metrics["energy_drift"])
	}
	w.Flush()
	return err
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Headless = true
	cfg.Frames = frames
	cfg.Output = ""

	params := make(map[string]float64, len(sweepParams))
	for _, s := range sweepParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		if len(p.Values) != 1 {
			return fmt.Errorf("--param %s: expected one base value", p.Name)
		}
		params[p.Name] = p.Values[0]
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mc := &automation.MonteCarloConfig{Base: cfg, Params: params, Perturbation: perturb, NumTrials: trials, Seed: seed}
	quiet := log.New(io.Discard)
	results, err := automation.RunMonteCarlo(ctx, mc, func(ctx context.Context, c *config.Config, preset string) (*experiment.Summary, error) {
		sess, err := experiment.NewSession(c, experiment.WithLogger(quiet))
		if err != nil {
			return nil, err
		}
		return sess.Run(ctx)
	}, logger)
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("stable: %d  diverged: %d  (%.1f%% stable)\n", stable, unstable, 100*float64(stable)/float64(len(results)))
	for _, r := range results {
		if !r.Stable {
			fmt.Printf("  trial %d: %s after %d frames\n", r.TrialID, optim.FormatParams(r.Params), r.Frames)
		}
	}
	return nil
}
