package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flic-compiler/ast/flat"
	"flic-compiler/pkg/runtime"
	"flic-compiler/processors"
)

type options struct {
	entry       string
	noLift      bool
	liftCase    bool
	liftComplex bool
	out         string
	showGraph   int
	graphDir    string
	viewer      string
	interactive bool
	verbosity   int
}

func main() {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "flic <program" + flat.Suffix + ">",
		Short: "normalize and run flattened functional-logic programs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(opts, args[0])
		},
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&opts.entry, "entry", "e", "", "entry function to evaluate after lifting")
	cmd.Flags().BoolVar(&opts.noLift, "no-lift", false, "skip the lifting pass (incompatible with --entry)")
	cmd.Flags().BoolVar(&opts.liftCase, "lift-case", true, "extract case expressions from branch bodies")
	cmd.Flags().BoolVar(&opts.liftComplex, "lift-complex-scrutinee", true, "extract cases over non-variable scrutinees")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "path for the normalized program (default <input>.norm"+flat.Suffix+")")
	cmd.Flags().IntVar(&opts.showGraph, "show-graph", 0, "graph tracing level 0..3")
	cmd.Flags().StringVar(&opts.graphDir, "graph-dir", "graphs", "directory snapshot DOT files are written to")
	cmd.Flags().StringVar(&opts.viewer, "viewer", "", "command invoked on every snapshot file")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pause for confirmation after each result")
	cmd.Flags().IntVarP(&opts.verbosity, "verbosity", "v", 1, "report verbosity 0..3")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flic: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, inputPath string) error {
	if err := validate(opts); err != nil {
		return err
	}
	log, err := newLogger(opts.verbosity)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	prog, err := flat.Load(inputPath)
	if err != nil {
		return err
	}
	log.Info("program loaded",
		zap.String("module", prog.Module),
		zap.Int("functions", len(prog.Funcs)))

	if !opts.noLift {
		before := len(prog.Funcs)
		prog = processors.Lift(processors.Options{
			LiftCase:             opts.liftCase,
			LiftComplexScrutinee: opts.liftComplex,
		}, prog)
		log.Info("program lifted", zap.Int("synthesized", len(prog.Funcs)-before))

		outPath := opts.out
		if outPath == "" {
			outPath = strings.TrimSuffix(inputPath, flat.Suffix) + ".norm" + flat.Suffix
		}
		if err := flat.Save(prog, outPath); err != nil {
			return err
		}
		log.Info("normalized program saved", zap.String("path", outPath))
	}

	if opts.verbosity >= 2 {
		fmt.Println(prog.Render())
	}
	if opts.entry == "" {
		return nil
	}
	return execute(opts, prog, log)
}

// validate rejects every bad option combination before any work begins.
func validate(opts options) error {
	var err error
	if opts.noLift && opts.entry != "" {
		err = multierr.Append(err, fmt.Errorf("--entry requires the lifting pass, drop --no-lift"))
	}
	if opts.interactive && !isatty.IsTerminal(os.Stdin.Fd()) {
		err = multierr.Append(err, fmt.Errorf("--interactive requires a terminal on stdin"))
	}
	if opts.entry != "" {
		cfg := executionConfig(opts)
		err = multierr.Append(err, cfg.Validate())
	}
	return err
}

func executionConfig(opts options) runtime.Config {
	return runtime.Config{
		Entry:          opts.entry,
		ShowGraphLevel: opts.showGraph,
		ViewerCommand:  opts.viewer,
		Interactive:    opts.interactive,
		Verbosity:      opts.verbosity,
	}
}

func execute(opts options, prog flat.Program, log *zap.Logger) error {
	prog = runtime.EnsurePrelude(prog)
	if err := processors.Check(prog); err != nil {
		return err
	}

	cfg := executionConfig(opts)
	machineOpts := []runtime.Option{runtime.WithLogger(log)}
	if cfg.ShowGraphLevel >= 2 {
		hook, err := snapshotWriter(opts, log)
		if err != nil {
			return err
		}
		machineOpts = append(machineOpts, runtime.WithTrace(hook))
	}

	results, err := runtime.Execute(cfg, prog, machineOpts...)
	if err != nil {
		return err
	}

	var resultHook runtime.TraceHook
	if cfg.ShowGraphLevel == 1 {
		resultHook, err = snapshotWriter(opts, log)
		if err != nil {
			return err
		}
	}

	stdin := bufio.NewReader(os.Stdin)
	count := 0
	for results.Next() {
		count++
		printResult(opts, count, results.Result())
		if resultHook != nil {
			resultHook(results.Machine().Snapshot(fmt.Sprintf("result %d", count), -1))
		}
		if opts.interactive && !confirm(stdin) {
			log.Info("stopped by user", zap.Int("results", count))
			return nil
		}
	}
	if err := results.Err(); err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("no solutions")
	}
	log.Info("search exhausted",
		zap.Int("results", count),
		zap.Int("steps", results.Machine().Steps()))
	return nil
}

func printResult(opts options, index int, res runtime.Result) {
	if opts.verbosity == 0 {
		fmt.Println(res)
		return
	}
	fmt.Printf("result %d:\n%s", index, renderTerm(res))
}

// renderTerm shows constructor results as a tree, everything else inline.
func renderTerm(res runtime.Result) string {
	if res.MatchFailure {
		return res.String() + "\n"
	}
	constr, ok := res.Term.(runtime.TermConstr)
	if !ok {
		return res.Term.String() + "\n"
	}
	tree := treeprint.New()
	addTermNode(tree, constr)
	return tree.String()
}

func addTermNode(tree treeprint.Tree, term runtime.Term) {
	if constr, ok := term.(runtime.TermConstr); ok {
		branch := tree.AddBranch(string(constr.Name))
		for _, arg := range constr.Args {
			addTermNode(branch, arg)
		}
		return
	}
	tree.AddNode(term.String())
}

func confirm(stdin *bufio.Reader) bool {
	fmt.Print("more solutions? [Y/n] ")
	line, err := stdin.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "" || line == "y" || line == "yes"
}

// snapshotWriter emits every snapshot as a DOT file and, when configured,
// hands the file to the viewer command and waits for it.
func snapshotWriter(opts options, log *zap.Logger) (runtime.TraceHook, error) {
	if err := os.MkdirAll(opts.graphDir, 0o755); err != nil {
		return nil, err
	}
	return func(s runtime.Snapshot) {
		path := filepath.Join(opts.graphDir, fmt.Sprintf("step-%05d.dot", s.Step))
		if err := os.WriteFile(path, []byte(s.Dot()), 0o644); err != nil {
			log.Warn("snapshot write failed", zap.String("path", path), zap.Error(err))
			return
		}
		if opts.viewer == "" {
			return
		}
		cmd := exec.Command(opts.viewer, path)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			log.Warn("viewer failed", zap.String("command", opts.viewer), zap.Error(err))
		}
	}, nil
}

func newLogger(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	switch verbosity {
	case 0:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	case 1:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case 2:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
