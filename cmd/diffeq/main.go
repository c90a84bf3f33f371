package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	kitlog "github.com/go-kit/kit/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/diffeq/internal/config"
	"github.com/san-kum/diffeq/internal/ensemble"
	"github.com/san-kum/diffeq/internal/export"
	"github.com/san-kum/diffeq/internal/live"
	"github.com/san-kum/diffeq/internal/problem"
	"github.com/san-kum/diffeq/internal/problems"
	"github.com/san-kum/diffeq/internal/registry"
	"github.com/san-kum/diffeq/internal/solver"
)

var (
	configFile string
	preset     string
	algorithm  string
	abstol     float64
	reltol     float64
	dtInitial  float64
	dtMin      float64
	maxSteps   int
	seed       uint64
	runs       int
	workers    int
	t0Flag     float64
	tfFlag     float64
	plotFlag   bool
	plotVar    int
	jsonOut    string
	csvOut     string
	verbose    bool
)

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "diffeq",
		Short: "adaptive differential equation solving lab",
	}

	solveCmd := &cobra.Command{
		Use:   "solve [problem]",
		Short: "integrate a problem from the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}
	addRunFlags(solveCmd)
	solveCmd.Flags().BoolVar(&plotFlag, "plot", false, "sketch the trajectory in the terminal")
	solveCmd.Flags().IntVar(&plotVar, "plot-var", 0, "state component to sketch")
	solveCmd.Flags().StringVar(&jsonOut, "json", "", "write solution JSON to file")
	solveCmd.Flags().StringVar(&csvOut, "csv", "", "write samples CSV to file")

	watchCmd := &cobra.Command{
		Use:   "watch [problem]",
		Short: "integrate with a live progress view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	addRunFlags(watchCmd)

	algorithmsCmd := &cobra.Command{
		Use:   "algorithms",
		Short: "list registered algorithms",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(headStyle.Render("name      kinds              order  adaptive  implicit"))
			for _, d := range registry.New().List() {
				kinds := make([]string, len(d.Kinds))
				for i, k := range d.Kinds {
					kinds[i] = k.String()
				}
				fmt.Printf("%-9s %-18s %-6d %-9v %v\n",
					d.Name, strings.Join(kinds, ","), d.Order, d.Adaptive, d.Implicit)
			}
		},
	}

	problemsCmd := &cobra.Command{
		Use:   "problems",
		Short: "list catalog problems",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range problems.Names() {
				spec, _ := problems.Get(name)
				fmt.Printf("%-18s %-4s dim=%d tspan=(%g, %g)\n",
					name, spec.Kind, spec.StateDim(), spec.TSpan[0], spec.TSpan[1])
			}
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list run presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.PresetNames() {
				p := config.Presets()[name]
				fmt.Printf("%-12s problem=%s algorithm=%s runs=%d\n",
					name, p.Problem, p.Algorithm, p.Runs)
			}
		},
	}

	rootCmd.AddCommand(solveCmd, watchCmd, algorithmsCmd, problemsCmd, presetsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "YAML run configuration")
	cmd.Flags().StringVar(&preset, "preset", "", "named run preset")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "algorithm name (default: kind-appropriate)")
	cmd.Flags().Float64Var(&abstol, "abstol", config.DefaultAbstol, "absolute tolerance")
	cmd.Flags().Float64Var(&reltol, "reltol", config.DefaultReltol, "relative tolerance")
	cmd.Flags().Float64Var(&dtInitial, "dt", 0, "initial step size (0 = automatic)")
	cmd.Flags().Float64Var(&dtMin, "dt-min", config.DefaultDtMin, "minimum step size")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step budget")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "noise seed for stochastic problems")
	cmd.Flags().IntVar(&runs, "runs", 0, "ensemble size (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "ensemble workers")
	cmd.Flags().Float64Var(&t0Flag, "t0", 0, "override span start")
	cmd.Flags().Float64Var(&tfFlag, "tf", 0, "override span end")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log solver progress")
}

func buildRun(cmd *cobra.Command, args []string) (*config.Config, *problem.Spec, solver.Options, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, solver.Options{}, err
		}
		cfg = loaded
	}
	if preset != "" {
		p, ok := config.Presets()[preset]
		if !ok {
			return nil, nil, solver.Options{}, fmt.Errorf("unknown preset: %s", preset)
		}
		cfg = p
	}
	if len(args) == 1 {
		cfg.Problem = args[0]
	}

	f := cmd.Flags()
	if f.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if f.Changed("abstol") {
		cfg.Abstol = abstol
	}
	if f.Changed("reltol") {
		cfg.Reltol = reltol
	}
	if f.Changed("dt") {
		cfg.DtInitial = dtInitial
	}
	if f.Changed("dt-min") {
		cfg.DtMin = dtMin
	}
	if f.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("runs") {
		cfg.Runs = runs
	}
	if f.Changed("workers") {
		cfg.Workers = workers
	}
	if f.Changed("t0") {
		cfg.T0 = &t0Flag
	}
	if f.Changed("tf") {
		cfg.TF = &tfFlag
	}

	spec, err := problems.Get(cfg.Problem)
	if err != nil {
		return nil, nil, solver.Options{}, err
	}
	if cfg.T0 != nil {
		spec.TSpan[0] = *cfg.T0
	}
	if cfg.TF != nil {
		spec.TSpan[1] = *cfg.TF
	}

	opts := cfg.Options()
	if verbose {
		opts.Logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	}
	return cfg, spec, opts, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, spec, opts, err := buildRun(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Runs > 1 {
		ens := ensemble.New(spec, opts, cfg.Runs)
		ens.SetWorkers(cfg.Workers)
		sols, err := ens.Run(ctx)
		if err != nil {
			return err
		}
		printEnsemble(cfg, ensemble.Summarize(sols))
		return nil
	}

	sol, err := solver.Solve(ctx, spec, opts)
	if err != nil {
		return err
	}
	printSummary(cfg, sol)

	if plotFlag {
		plotSolution(sol, plotVar)
	}
	if jsonOut != "" {
		if err := export.JSON(jsonOut, cfg.Problem, cfg.Algorithm, sol); err != nil {
			return err
		}
	}
	if csvOut != "" {
		if err := export.CSV(csvOut, sol); err != nil {
			return err
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, spec, opts, err := buildRun(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sol, err := live.Run(ctx, spec, opts, cfg.Problem)
	if err != nil {
		return err
	}
	printSummary(cfg, sol)
	return nil
}

func printSummary(cfg *config.Config, sol *solver.Solution) {
	code := sol.ReturnCode()
	style := okStyle
	if code != solver.Success {
		style = failStyle
	}
	ts, us := sol.Samples()
	stats := sol.Stats()

	fmt.Printf("%s %s\n", keyStyle.Render("status    "), style.Render(code.String()))
	fmt.Printf("%s %s\n", keyStyle.Render("problem   "), cfg.Problem)
	fmt.Printf("%s %d accepted, %d rejected\n", keyStyle.Render("steps     "), stats.Accepted, stats.Rejected)
	fmt.Printf("%s %d dynamics, %d residual, %d noise\n", keyStyle.Render("evals     "), stats.Dynamics, stats.Residual, stats.Noise)
	if stats.NewtonIters > 0 {
		fmt.Printf("%s %d newton, %d linear solves\n", keyStyle.Render("implicit  "), stats.NewtonIters, stats.LinearSolves)
	}
	if len(ts) > 0 {
		last := us[len(us)-1]
		parts := make([]string, len(last))
		for i, v := range last {
			parts[i] = fmt.Sprintf("%.6g", v)
		}
		fmt.Printf("%s t=%.6g u=[%s]\n", keyStyle.Render("final     "), ts[len(ts)-1], strings.Join(parts, ", "))
	}
}

func printEnsemble(cfg *config.Config, sum ensemble.Summary) {
	fmt.Printf("%s %d runs of %s\n", keyStyle.Render("ensemble  "), sum.Runs, cfg.Problem)
	fmt.Printf("%s %d accepted, %d rejected (total)\n", keyStyle.Render("steps     "), sum.Accepted, sum.Rejected)
	for code, n := range sum.Codes {
		style := okStyle
		if code != solver.Success {
			style = failStyle
		}
		fmt.Printf("%s %s ×%d\n", keyStyle.Render("outcome   "), style.Render(code.String()), n)
	}
}

func plotSolution(sol *solver.Solution, component int) {
	ip := sol.Interpolant()
	if ip == nil {
		return
	}
	t0, t1 := ip.Span()
	const samples = 120
	series := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(samples-1)
		u, err := ip.At(t)
		if err != nil || component >= len(u) {
			continue
		}
		series = append(series, u[component])
	}
	if len(series) > 1 {
		fmt.Println(asciigraph.Plot(series, asciigraph.Height(12), asciigraph.Width(70)))
	}
}
