package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/invlab/internal/analysis"
	"github.com/san-kum/invlab/internal/automation"
	"github.com/san-kum/invlab/internal/config"
	"github.com/san-kum/invlab/internal/dataio"
	"github.com/san-kum/invlab/internal/experiment"
	"github.com/san-kum/invlab/internal/export"
	"github.com/san-kum/invlab/internal/invert"
	"github.com/san-kum/invlab/internal/logging"
	"github.com/san-kum/invlab/internal/metrics"
	"github.com/san-kum/invlab/internal/optim"
	"github.com/san-kum/invlab/internal/storage"
	"github.com/san-kum/invlab/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	modelName  string
	// Model shape
	degree int
	terms  int
	peaks  int
	// Parameter space
	transform string
	lo        float64
	up        float64
	// Lambda schedule
	policy     string
	coolFactor float64
	// Engine settings
	lambda          float64
	maxIter         int
	targetChi2      float64
	chi2Tol         float64
	minDecrease     float64
	scheme          string
	epsRel          float64
	epsAbs          float64
	workers         int
	stepPolicy      string
	maxStepCuts     int
	constraintOrder int
	reference       string
	startVals       []float64
	startValue      float64
	// Multi-start
	starts int
	spread float64
	seed   int64
	// Error model for files without an error column
	noiseAbs float64
	noiseRel float64
	verbose  bool
	// Synthesis grid
	truthVals []float64
	nPoints   int
	xMin      float64
	xMax      float64
	outFile   string
	// Lambda scans
	lambdaMin   float64
	lambdaMax   float64
	lambdaCount int
	maxProbes   int
	// Noise study
	trials int
	// Terminal plots
	plotWidth  int
	plotHeight int
	bins       int
	// SVG output
	svgWidth  int
	svgHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "invlab",
		Short: "nonlinear inversion lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".invlab", "data directory")

	fitCmd := &cobra.Command{
		Use:   "fit [data-file]",
		Short: "invert observations from a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runFit,
	}
	addFitFlags(fitCmd)

	synthCmd := &cobra.Command{
		Use:   "synth [model]",
		Short: "generate noisy synthetic observations",
		Args:  cobra.ExactArgs(1),
		RunE:  runSynth,
	}
	synthCmd.Flags().Float64SliceVar(&truthVals, "truth", nil, "true parameters (comma separated)")
	synthCmd.Flags().IntVar(&degree, "degree", 1, "polynomial degree")
	synthCmd.Flags().IntVar(&terms, "terms", 1, "exponential terms")
	synthCmd.Flags().IntVar(&peaks, "peaks", 1, "gaussian peaks")
	synthCmd.Flags().IntVar(&nPoints, "points", 25, "number of samples")
	synthCmd.Flags().Float64Var(&xMin, "x-min", 0, "first abscissa")
	synthCmd.Flags().Float64Var(&xMax, "x-max", 10, "last abscissa")
	synthCmd.Flags().Float64Var(&noiseAbs, "noise-abs", config.DefaultNoiseAbs, "absolute noise level")
	synthCmd.Flags().Float64Var(&noiseRel, "noise-rel", config.DefaultNoiseRel, "relative noise level")
	synthCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	synthCmd.Flags().StringVar(&outFile, "out", "synth.dat", "output file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run details",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored fit",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 64, "plot width in cells")
	plotCmd.Flags().IntVar(&plotHeight, "height", 18, "plot height in cells")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "residual diagnostics for a stored fit",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&plotWidth, "width", 64, "plot width in cells")
	analyzeCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height in cells")
	analyzeCmd.Flags().IntVar(&bins, "bins", 9, "histogram bins")

	lcurveCmd := &cobra.Command{
		Use:   "lcurve [data-file]",
		Short: "scan lambda and tabulate the misfit-roughness trade-off",
		Args:  cobra.ExactArgs(1),
		RunE:  runLCurve,
	}
	addFitFlags(lcurveCmd)
	lcurveCmd.Flags().Float64Var(&lambdaMin, "lambda-min", 1e-3, "smallest lambda")
	lcurveCmd.Flags().Float64Var(&lambdaMax, "lambda-max", 1e3, "largest lambda")
	lcurveCmd.Flags().IntVar(&lambdaCount, "lambda-count", 13, "number of probes")

	occamCmd := &cobra.Command{
		Use:   "occam [data-file]",
		Short: "bisect for the smoothest model that still fits",
		Args:  cobra.ExactArgs(1),
		RunE:  runOccam,
	}
	addFitFlags(occamCmd)
	occamCmd.Flags().Float64Var(&lambdaMin, "lambda-min", 1e-4, "bracket low end")
	occamCmd.Flags().Float64Var(&lambdaMax, "lambda-max", 1e4, "bracket high end")
	occamCmd.Flags().IntVar(&maxProbes, "probes", 24, "bisection probe budget")

	liveCmd := &cobra.Command{
		Use:   "live [data-file]",
		Short: "invert with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addFitFlags(liveCmd)

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the stored fit table to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export the full run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a stored fit as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  renderSVG,
	}
	svgCmd.Flags().StringVar(&outFile, "out", "", "output file (default <run_id>.svg)")
	svgCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	svgCmd.Flags().IntVar(&svgHeight, "height", 500, "image height")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			sort.Strings(presets)
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list forward models and lambda policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			models := reg.ListModels()
			sort.Strings(models)
			fmt.Println("models:")
			for _, m := range models {
				fmt.Printf("  %s\n", m)
			}
			policies := reg.ListPolicies()
			sort.Strings(policies)
			fmt.Println("\nlambda policies:")
			for _, p := range policies {
				fmt.Printf("  %s\n", p)
			}
			fmt.Println("\ntransforms:")
			fmt.Println("  none")
			fmt.Println("  log")
			fmt.Println("  loglu")
			return nil
		},
	}

	studyCmd := &cobra.Command{
		Use:   "study",
		Short: "measure parameter recovery over repeated noise draws",
		RunE:  runStudy,
	}
	addFitFlags(studyCmd)
	studyCmd.Flags().Float64SliceVar(&truthVals, "truth", nil, "true parameters (comma separated)")
	studyCmd.Flags().IntVar(&trials, "trials", 50, "number of noise draws")
	studyCmd.Flags().IntVar(&nPoints, "points", 25, "number of samples")
	studyCmd.Flags().Float64Var(&xMin, "x-min", 0, "first abscissa")
	studyCmd.Flags().Float64Var(&xMax, "x-max", 10, "last abscissa")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scripted fit scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(fitCmd, synthCmd, listCmd, showCmd, plotCmd, analyzeCmd,
		lcurveCmd, occamCmd, liveCmd, exportCmd, exportCSVCmd, exportJSONCmd,
		svgCmd, presetsCmd, modelsCmd, studyCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&modelName, "model", "polynomial", "forward model")
	f.StringVar(&preset, "preset", "", "preset configuration")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.IntVar(&degree, "degree", 1, "polynomial degree")
	f.IntVar(&terms, "terms", 1, "exponential terms")
	f.IntVar(&peaks, "peaks", 1, "gaussian peaks")
	f.StringVar(&transform, "transform", "none", "parameter transform (none|log|loglu)")
	f.Float64Var(&lo, "lo", 0, "lower bound (loglu)")
	f.Float64Var(&up, "up", 0, "upper bound (loglu)")
	f.StringVar(&policy, "policy", "fixed", "lambda policy (fixed|cooling|marquardt)")
	f.Float64Var(&coolFactor, "cool-factor", 0.8, "cooling factor per iteration")
	f.Float64Var(&lambda, "lambda", config.DefaultLambda, "regularization strength")
	f.IntVar(&maxIter, "max-iter", config.DefaultMaxIter, "iteration budget")
	f.Float64Var(&targetChi2, "target-chi2", config.DefaultTargetChiSq, "target chi-square")
	f.Float64Var(&chi2Tol, "chi2-tol", config.DefaultChiSqTol, "chi-square plateau tolerance")
	f.Float64Var(&minDecrease, "min-decrease", config.DefaultMinDecrease, "stagnation threshold")
	f.StringVar(&scheme, "scheme", "forward", "jacobian scheme (forward|central)")
	f.Float64Var(&epsRel, "eps-rel", config.DefaultEps, "relative difference step")
	f.Float64Var(&epsAbs, "eps-abs", config.DefaultEps, "absolute difference step")
	f.IntVar(&workers, "workers", 1, "parallel jacobian workers")
	f.StringVar(&stepPolicy, "step-policy", "linesearch", "step policy (linesearch|fixed)")
	f.IntVar(&maxStepCuts, "max-step-cuts", config.DefaultMaxStepCuts, "line search halvings")
	f.IntVar(&constraintOrder, "constraint-order", 0, "roughness operator order (0|1|2)")
	f.StringVar(&reference, "reference", "zero", "damping reference (zero|start)")
	f.Float64SliceVar(&startVals, "start", nil, "starting model (comma separated)")
	f.Float64Var(&startValue, "start-value", config.DefaultStartValue, "uniform starting value")
	f.IntVar(&starts, "starts", 1, "number of perturbed starts")
	f.Float64Var(&spread, "spread", config.DefaultSpread, "relative start spread")
	f.Int64Var(&seed, "seed", 0, "random seed")
	f.Float64Var(&noiseAbs, "noise-abs", config.DefaultNoiseAbs, "absolute error when the file has none")
	f.Float64Var(&noiseRel, "noise-rel", config.DefaultNoiseRel, "relative error when the file has none")
	f.BoolVar(&verbose, "verbose", false, "log every iteration")
}

// resolveConfig layers the fit configuration: defaults, then preset, then
// config file, then explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(modelName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(modelName))
		}
		c := *p
		cfg = &c
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Model = modelName
	}
	if f.Changed("degree") {
		cfg.Shape.Degree = degree
	}
	if f.Changed("terms") {
		cfg.Shape.Terms = terms
	}
	if f.Changed("peaks") {
		cfg.Shape.Peaks = peaks
	}
	if f.Changed("transform") {
		cfg.Transform = transform
	}
	if f.Changed("lo") {
		cfg.Lo = lo
	}
	if f.Changed("up") {
		cfg.Up = up
	}
	if f.Changed("policy") {
		cfg.Policy = policy
	}
	if f.Changed("cool-factor") {
		cfg.CoolFactor = coolFactor
	}
	if f.Changed("lambda") {
		cfg.Engine.Lambda = lambda
	}
	if f.Changed("max-iter") {
		cfg.Engine.MaxIterations = maxIter
	}
	if f.Changed("target-chi2") {
		cfg.Engine.TargetChiSq = targetChi2
	}
	if f.Changed("chi2-tol") {
		cfg.Engine.ChiSqTolerance = chi2Tol
	}
	if f.Changed("min-decrease") {
		cfg.Engine.MinDecrease = minDecrease
	}
	if f.Changed("scheme") {
		cfg.Engine.Scheme = scheme
	}
	if f.Changed("eps-rel") {
		cfg.Engine.EpsRel = epsRel
	}
	if f.Changed("eps-abs") {
		cfg.Engine.EpsAbs = epsAbs
	}
	if f.Changed("workers") {
		cfg.Engine.Workers = workers
	}
	if f.Changed("step-policy") {
		cfg.Engine.StepPolicy = stepPolicy
	}
	if f.Changed("max-step-cuts") {
		cfg.Engine.MaxStepCuts = maxStepCuts
	}
	if f.Changed("constraint-order") {
		cfg.Engine.ConstraintOrder = constraintOrder
	}
	if f.Changed("reference") {
		cfg.Engine.Reference = reference
	}
	if f.Changed("start") {
		cfg.Engine.Start = startVals
	}
	if f.Changed("start-value") {
		cfg.Engine.StartValue = startValue
	}
	if f.Changed("starts") {
		cfg.Starts = starts
	}
	if f.Changed("spread") {
		cfg.Spread = spread
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("noise-abs") {
		cfg.Noise.Abs = noiseAbs
	}
	if f.Changed("noise-rel") {
		cfg.Noise.Rel = noiseRel
	}

	return cfg, nil
}

func modelParams(cfg *config.Config, x invert.Vector) experiment.ModelParams {
	return experiment.ModelParams{
		X:      x,
		Degree: cfg.Shape.Degree,
		Terms:  cfg.Shape.Terms,
		Peaks:  cfg.Shape.Peaks,
	}
}

func experimentConfig(cfg *config.Config, x invert.Vector) (experiment.Config, error) {
	ec, err := cfg.EngineSettings()
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Model:      cfg.Model,
		Params:     modelParams(cfg, x),
		Transform:  cfg.Transform,
		Lo:         cfg.Lo,
		Up:         cfg.Up,
		Policy:     cfg.Policy,
		PolicyArgs: cfg.PolicyArgs(),
		Engine:     ec,
		Starts:     cfg.Starts,
		Spread:     cfg.Spread,
		Seed:       cfg.Seed,
	}, nil
}

// loadObservations reads a data file and fills in the configured error
// model when the file carries no error column.
func loadObservations(path string, cfg *config.Config) (x, y, e invert.Vector, err error) {
	xs, ys, es, err := dataio.LoadColumns(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if es == nil {
		es, err = invert.ErrorModel(ys, cfg.Noise.Abs, cfg.Noise.Rel)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return xs, ys, es, nil
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	x, y, e, err := loadObservations(args[0], cfg)
	if err != nil {
		return err
	}

	expCfg, err := experimentConfig(cfg, x)
	if err != nil {
		return err
	}
	exp := experiment.New(expCfg)
	if err := exp.Setup(y, e); err != nil {
		return err
	}

	if verbose {
		log, err := logging.New(logging.Config{Level: "debug"})
		if err != nil {
			return err
		}
		defer log.Sync()
		exp.AddObserver(experiment.NewLogObserver(log))
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("fitting %s (%d data, %d parameters)...\n",
		cfg.Model, len(y), exp.Model().ParameterCount())
	start := time.Now()

	fit, err := exp.Run(context.Background())
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	res := fit.Result

	runID, err := st.Save(storage.RunMetadata{
		Model:     cfg.Model,
		Seed:      cfg.Seed,
		Lambda:    cfg.Engine.Lambda,
		Transform: cfg.Transform,
		Policy:    cfg.Policy,
		Metrics:   fit.Summary.Map(),
	}, res, x, y, e)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s (%s)\n", res.Status, res.Stop)
	fmt.Printf("iterations: %d\n", res.Iterations)
	fmt.Printf("chi2: %.4f\n", res.FinalChiSq())
	if len(fit.Runs) > 1 {
		fmt.Printf("starts: best of %d\n", len(fit.Runs))
	}

	fmt.Println("\nmodel:")
	for i, v := range res.Model {
		fmt.Printf("  p%d: %.6g\n", i, v)
	}

	fmt.Println("\nmetrics:")
	for name, val := range fit.Summary.Map() {
		fmt.Printf("  %s: %.6f\n", name, val)
	}

	return nil
}

func linspace(lo, hi float64, n int) invert.Vector {
	x := make(invert.Vector, n)
	if n == 1 {
		x[0] = lo
		return x
	}
	step := (hi - lo) / float64(n-1)
	for i := range x {
		x[i] = lo + float64(i)*step
	}
	return x
}

func runSynth(cmd *cobra.Command, args []string) error {
	model := args[0]

	if len(truthVals) == 0 {
		return fmt.Errorf("synth needs --truth")
	}
	if nPoints < 2 {
		return fmt.Errorf("synth needs at least 2 points")
	}

	x := linspace(xMin, xMax, nPoints)
	reg := experiment.NewRegistry()
	fop, err := reg.GetModel(model, experiment.ModelParams{
		X:      x,
		Degree: degree,
		Terms:  terms,
		Peaks:  peaks,
	})
	if err != nil {
		return err
	}
	if len(truthVals) != fop.ParameterCount() {
		return fmt.Errorf("model %s wants %d parameters, --truth has %d",
			model, fop.ParameterCount(), len(truthVals))
	}

	data, errs, err := experiment.Synthesize(fop, invert.Vector(truthVals), noiseAbs, noiseRel, seed)
	if err != nil {
		return err
	}

	if err := dataio.SaveTable(outFile, []string{"x", "y", "err"}, x, data, errs); err != nil {
		return err
	}

	fmt.Printf("wrote %d points to %s (seed %d)\n", len(x), outFile, seed)
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSTATUS\tITER\tCHI2\tLAMBDA\tPOLICY")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.3f\t%.3g\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Iterations,
			run.Metrics["chi2"],
			run.Lambda,
			run.Policy,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	model, err := st.LoadModel(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("time: %s\n", meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("status: %s (%s)\n", meta.Status, meta.Stop)
	fmt.Printf("iterations: %d\n", meta.Iterations)
	fmt.Printf("data points: %d\n", meta.DataPoints)
	fmt.Printf("lambda: %g\n", meta.Lambda)
	fmt.Printf("transform: %s\n", meta.Transform)
	fmt.Printf("policy: %s\n", meta.Policy)
	if meta.Seed != 0 {
		fmt.Printf("seed: %d\n", meta.Seed)
	}

	fmt.Println("\nmodel parameters:")
	for i, v := range model {
		fmt.Printf("  p%d: %.6g\n", i, v)
	}

	if len(meta.Metrics) > 0 {
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("\nmetrics:")
		for _, name := range names {
			fmt.Printf("  %s: %.6f\n", name, meta.Metrics[name])
		}
	}

	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ft, err := st.LoadFit(runID)
	if err != nil {
		return err
	}
	if len(ft.X) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(ft.X))

	fmt.Println(viz.FitPlot(plotWidth, plotHeight, ft.X, ft.Data, ft.Response, "data · response"))

	hist, err := st.LoadHistory(runID)
	if err == nil && len(hist.ChiSq) > 1 {
		graph := asciigraph.Plot(hist.ChiSq,
			asciigraph.Height(8),
			asciigraph.Width(plotWidth),
			asciigraph.Caption("chi2 per iteration"),
		)
		fmt.Println(graph)
	}

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	ft, err := st.LoadFit(runID)
	if err != nil {
		return err
	}
	if len(ft.Residual) < 2 {
		return fmt.Errorf("no residuals to analyze")
	}

	weighted := make([]float64, len(ft.Residual))
	for i, r := range ft.Residual {
		if i < len(ft.Err) && ft.Err[i] > 0 {
			r /= ft.Err[i]
		}
		weighted[i] = r
	}

	summary := metrics.Summarize(ft.Data, ft.Response, ft.Err)

	fmt.Printf("residual analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)
	fmt.Printf("chi2: %.4f\n", summary.ChiSq)
	fmt.Printf("rms: %.6g\n", summary.RMS)
	fmt.Printf("lag-1 autocorrelation: %.3f\n\n", summary.Lag1Autocorr)

	fmt.Println(viz.ResidualPlot(plotWidth, plotHeight, ft.X, weighted, "weighted residuals"))

	ps := analysis.Periodogram(weighted)
	if len(ps) > 1 {
		graph := asciigraph.Plot(ps,
			asciigraph.Height(8),
			asciigraph.Width(plotWidth),
			asciigraph.Caption("residual periodogram"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	dx := 1.0
	if len(ft.X) > 1 {
		dx = (ft.X[len(ft.X)-1] - ft.X[0]) / float64(len(ft.X)-1)
	}
	period, strength := analysis.DominantPeriod(weighted, dx)
	if period > 0 {
		fmt.Printf("dominant period: %.4g (peak/mean power %.1f)\n", period, strength)
		if strength > 4 {
			fmt.Println("residuals carry periodic structure; the model may be missing a term")
		}
	}

	counts, edges := analysis.Histogram(weighted, bins)
	if len(counts) > 0 {
		maxCount := 0
		for _, c := range counts {
			if c > maxCount {
				maxCount = c
			}
		}
		fmt.Println("\nweighted residual histogram:")
		for i, c := range counts {
			barLen := 0
			if maxCount > 0 {
				barLen = c * 40 / maxCount
			}
			fmt.Printf("  %8.2f .. %8.2f  %s %d\n",
				edges[i], edges[i+1], strings.Repeat("█", barLen), c)
		}
	}

	return nil
}

// scanBuilder returns a BuildFunc that clones the fit configuration with
// the lambda pinned and the schedule fixed, so probes differ only in
// regularization strength.
func scanBuilder(cfg *config.Config, x, y, e invert.Vector) optim.BuildFunc {
	return func(lam float64) (*experiment.Experiment, error) {
		expCfg, err := experimentConfig(cfg, x)
		if err != nil {
			return nil, err
		}
		expCfg.Engine.Lambda = lam
		expCfg.Policy = "fixed"
		expCfg.PolicyArgs = nil

		exp := experiment.New(expCfg)
		if err := exp.Setup(y, e); err != nil {
			return nil, err
		}
		return exp, nil
	}
}

func runLCurve(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	x, y, e, err := loadObservations(args[0], cfg)
	if err != nil {
		return err
	}

	lambdas, err := optim.LogSpace(lambdaMin, lambdaMax, lambdaCount)
	if err != nil {
		return err
	}

	fmt.Printf("scanning %d lambdas in [%g, %g]...\n\n", len(lambdas), lambdaMin, lambdaMax)

	points, err := optim.ScanLambda(context.Background(), lambdas,
		cfg.Engine.ConstraintOrder, scanBuilder(cfg, x, y, e))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAMBDA\tCHI2\tROUGHNESS\tSTATUS")
	for _, pt := range points {
		fmt.Fprintf(w, "%.4g\t%.4f\t%.4g\t%s\n", pt.Lambda, pt.ChiSq, pt.Roughness, pt.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	chis := make([]float64, len(points))
	for i, pt := range points {
		chis[i] = pt.ChiSq
	}
	fmt.Println()
	graph := asciigraph.Plot(chis,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption("chi2 across the scan (lambda rising)"),
	)
	fmt.Println(graph)

	return nil
}

func runOccam(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	x, y, e, err := loadObservations(args[0], cfg)
	if err != nil {
		return err
	}

	search := optim.NewOccamSearch(cfg.Engine.TargetChiSq)
	if cmd.Flags().Changed("lambda-min") {
		search.Lo = lambdaMin
	}
	if cmd.Flags().Changed("lambda-max") {
		search.Hi = lambdaMax
	}
	if cmd.Flags().Changed("probes") {
		search.MaxProbes = maxProbes
	}

	fmt.Printf("bisecting lambda in [%g, %g] for chi2 <= %g...\n\n",
		search.Lo, search.Hi, search.Target)

	best, probes, err := search.Run(context.Background(),
		cfg.Engine.ConstraintOrder, scanBuilder(cfg, x, y, e))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tLAMBDA\tCHI2\tROUGHNESS")
	for i, pt := range probes {
		fmt.Fprintf(w, "%d\t%.4g\t%.4f\t%.4g\n", i+1, pt.Lambda, pt.ChiSq, pt.Roughness)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nchosen lambda: %.4g (chi2 %.4f, roughness %.4g)\n",
		best.Lambda, best.ChiSq, best.Roughness)
	fmt.Println("model:")
	for i, v := range best.Model {
		fmt.Printf("  p%d: %.6g\n", i, v)
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// The live view tracks a single engine.
	cfg.Starts = 1

	x, y, e, err := loadObservations(args[0], cfg)
	if err != nil {
		return err
	}

	expCfg, err := experimentConfig(cfg, x)
	if err != nil {
		return err
	}
	exp := experiment.New(expCfg)
	if err := exp.Setup(y, e); err != nil {
		return err
	}

	run := func(ctx context.Context, obs invert.Observer) (*invert.Result, error) {
		exp.AddObserver(obs)
		fit, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}
		return fit.Result, nil
	}

	view := viz.NewFitView(exp.Model(), x, y, expCfg.Engine.MaxIterations, run)
	return view.Start()
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	ft, err := st.LoadFit(runID)
	if err != nil {
		return err
	}
	if len(ft.X) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"x", "data", "err", "response", "residual"}); err != nil {
		return err
	}

	for i := range ft.X {
		row := []string{
			strconv.FormatFloat(ft.X[i], 'f', 6, 64),
			strconv.FormatFloat(ft.Data[i], 'f', 6, 64),
			strconv.FormatFloat(ft.Err[i], 'f', 6, 64),
			strconv.FormatFloat(ft.Response[i], 'f', 6, 64),
			strconv.FormatFloat(ft.Residual[i], 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	data, err := st.ExportRun(runID)
	if err != nil {
		return err
	}

	return storage.ExportJSONStdout(data)
}

func renderSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	ft, err := st.LoadFit(runID)
	if err != nil {
		return err
	}
	if len(ft.X) < 2 {
		return fmt.Errorf("not enough data to render")
	}

	svg := export.FitSVG(ft.X, ft.Data, ft.Err, ft.Response, svgWidth, svgHeight)
	if svg == "" {
		return fmt.Errorf("nothing to render")
	}

	path := outFile
	if path == "" {
		path = runID + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(truthVals) == 0 {
		return fmt.Errorf("study needs --truth")
	}
	if nPoints < 2 {
		return fmt.Errorf("study needs at least 2 points")
	}

	x := linspace(xMin, xMax, nPoints)
	expCfg, err := experimentConfig(cfg, x)
	if err != nil {
		return err
	}

	study := &automation.NoiseStudy{
		Config: expCfg,
		Truth:  invert.Vector(truthVals),
		Abs:    cfg.Noise.Abs,
		Rel:    cfg.Noise.Rel,
		Trials: trials,
		Seed:   cfg.Seed,
	}

	fmt.Printf("running %d trials of %s...\n", trials, cfg.Model)
	stats, err := study.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("\nconverged: %d/%d\n", stats.Converged, stats.Trials)
	fmt.Printf("mean chi2: %.4f\n\n", stats.MeanChiSq)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAM\tTRUTH\tMEAN\tSTD\tBIAS")
	for i := range stats.Mean {
		fmt.Fprintf(w, "p%d\t%.6g\t%.6g\t%.3g\t%+.3g\n",
			i, truthVals[i], stats.Mean[i], stats.Std[i], stats.Bias[i])
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if len(scenario.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	if scenario.Name != "" {
		fmt.Printf("scenario: %s\n", scenario.Name)
	}
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	fmt.Println()

	results, runErr := automation.RunScenario(context.Background(), scenario, st)

	if len(results) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tMODEL\tSTATUS\tSTOP\tCHI2\tRUN")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%s\n",
				r.Name, r.Model, r.Status, r.Stop, r.ChiSq, r.RunID)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return runErr
}
