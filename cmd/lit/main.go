// Package main implements the lit test runner CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/golit/internal/display"
	"github.com/715d/golit/internal/runner"
	"github.com/715d/golit/pkg/lit"
	"github.com/715d/golit/pkg/suite"
)

// Config holds all command-line configuration options for a run.
type Config struct {
	Paths       []string // test files or directories
	Workers     int      // tests run in parallel
	Verbose     bool     // print output of failing tests
	ShowAll     bool     // print output of every test
	Quiet       bool     // only print failing tests and the summary
	Succinct    bool     // only print failing tests as they finish
	XFail       string   // ';' separated tests expected to fail
	XFailNot    string   // ';' separated tests expected to pass
	Filter      string   // regex selecting tests by full name
	FilterOut   string   // regex excluding tests by full name
	Timeout     int      // per-test timeout in seconds
	MaxFailures int      // stop after this many failures
	MaxTests    int      // run at most this many tests
	NumShards   int      // split tests into shards
	RunShard    int      // shard to run, counted from 1
	Shuffle     bool     // run tests in random order
	Params      []string // NAME=VALUE suite parameters
	Output      string   // JSON results file
	TimeTests   bool     // report the slowest tests
	Color       string   // auto, always or never
	Debug       bool     // enable debug logging
}

const (
	exitFailures = 1
	exitError    = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// envFlags maps flags to the environment variables that provide their
// default when the flag is not given.
var envFlags = []struct{ flag, env string }{
	{"xfail", "LIT_XFAIL"},
	{"xfail-not", "LIT_XFAIL_NOT"},
	{"filter", "LIT_FILTER"},
	{"filter-out", "LIT_FILTER_OUT"},
	{"workers", "LIT_MAX_WORKERS"},
	{"num-shards", "LIT_NUM_SHARDS"},
	{"run-shard", "LIT_RUN_SHARD"},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if opts := strings.Fields(getenv("LIT_OPTS")); len(opts) > 0 {
		args = append(opts, args...)
	}

	rootCmd := newRootCmd(stdout, getenv)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if err.Error() != "" {
		fmt.Fprintln(stderr, err.Error())
	}
	var cErr *codedError
	if errors.As(err, &cErr) {
		return cErr.code
	}
	return exitError
}

func newRootCmd(stdout io.Writer, getenv func(string) string) *cobra.Command {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "lit [flags] PATH...",
		Short: "Discover and run lit style tests",
		Long: `lit discovers tests below the given paths, runs them in parallel and
reports a result for every test.

A test suite is a directory holding a lit.cfg.yaml. Tests are files with one of
the suite's suffixes whose RUN: lines are executed as a shell script.`,
		Example: `  lit test/                             # Run every test below test/
  lit -v test/Foo/bar.txt               # Run one test, print output on failure
  lit --xfail 'a.txt;b.txt' test/       # Expect a.txt and b.txt to fail
  lit -j 4 --filter 'Parser' test/      # Run matching tests on 4 workers`,
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd, &cfg, getenv)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Paths = args
			return runCommand(cmd.Context(), stdout, &cfg, getenv)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("lit version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&cfg.Workers, "workers", "j", 0, "Number of tests to run in parallel (default: number of CPUs)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Show output of failing tests")
	flags.BoolVarP(&cfg.ShowAll, "show-all", "a", false, "Show output of all tests")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Suppress output except failing tests and the summary")
	flags.BoolVarP(&cfg.Succinct, "succinct", "s", false, "Only report failing tests, with a progress bar on terminals")
	flags.StringVar(&cfg.XFail, "xfail", "", "';' separated list of tests expected to fail")
	flags.StringVar(&cfg.XFailNot, "xfail-not", "", "';' separated list of tests expected to pass, overriding XFAIL")
	flags.StringVar(&cfg.Filter, "filter", "", "Only run tests whose full name matches this regex")
	flags.StringVar(&cfg.FilterOut, "filter-out", "", "Exclude tests whose full name matches this regex")
	flags.IntVar(&cfg.Timeout, "timeout", 0, "Per-test timeout in seconds (0 uses the suite setting)")
	flags.IntVar(&cfg.MaxFailures, "max-failures", 0, "Stop scheduling tests after this many failures")
	flags.IntVar(&cfg.MaxTests, "max-tests", 0, "Run at most this many tests")
	flags.IntVar(&cfg.NumShards, "num-shards", 0, "Split the tests into this many shards")
	flags.IntVar(&cfg.RunShard, "run-shard", 0, "Run this shard, counted from 1")
	flags.BoolVar(&cfg.Shuffle, "shuffle", false, "Run tests in random order")
	flags.StringArrayVarP(&cfg.Params, "param", "D", nil, "Suite parameter NAME=VALUE, available as %{NAME}")
	flags.StringVarP(&cfg.Output, "output", "o", "", "Write test results as JSON to this file")
	flags.BoolVar(&cfg.TimeTests, "time-tests", false, "Report the slowest tests")
	flags.StringVar(&cfg.Color, "color", "auto", "Colour result codes: auto, always or never")
	flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	return rootCmd
}

func setup(cmd *cobra.Command, cfg *Config, getenv func(string) string) error {
	// Disable logger unless debug flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Debug {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
		slog.SetDefault(slog.New(handler))
	}

	flags := cmd.Flags()
	for _, ef := range envFlags {
		value := getenv(ef.env)
		if value == "" || flags.Changed(ef.flag) {
			continue
		}
		if err := flags.Set(ef.flag, value); err != nil {
			return errWithCode(fmt.Errorf("invalid %s=%q: %w", ef.env, value, err), exitError)
		}
		slog.Debug("flag set from environment", "flag", ef.flag, "env", ef.env, "value", value)
	}

	switch cfg.Color {
	case "auto", "always", "never":
	default:
		return errWithCode(fmt.Errorf("invalid --color %q: want auto, always or never", cfg.Color), exitError)
	}
	return nil
}

func runCommand(ctx context.Context, stdout io.Writer, cfg *Config, getenv func(string) string) error {
	if len(cfg.Paths) == 0 {
		return errWithCode(errors.New("error: no test paths given"), exitError)
	}

	params, err := parseParams(cfg.Params)
	if err != nil {
		return errWithCode(err, exitError)
	}
	sel, err := selection(cfg)
	if err != nil {
		return errWithCode(err, exitError)
	}

	slog.Info("discovering tests", "paths", cfg.Paths)
	tests, err := suite.NewDiscoverer(suite.Options{Params: params}).Discover(ctx, cfg.Paths)
	if err != nil {
		return errWithCode(fmt.Errorf("error: %w", err), exitError)
	}
	if len(tests) == 0 {
		return errWithCode(errors.New("error: did not discover any tests for provided path(s)"), exitError)
	}

	lit.ApplyXFail(tests, lit.ParseNameList(cfg.XFail), lit.ParseNameList(cfg.XFailNot))

	selected, err := runner.Select(tests, sel)
	if err != nil {
		return errWithCode(err, exitError)
	}
	if len(selected) == 0 {
		return errWithCode(fmt.Errorf("error: filter did not match any tests (of %d discovered)", len(tests)), exitError)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runner.DefaultWorkers()
	}
	workers = min(workers, len(selected))

	disp := display.New(stdout, displayOptions(stdout, cfg, getenv), len(selected), len(tests), workers)
	disp.Header()

	start := time.Now()
	runErr := runner.Run(ctx, selected, runner.Options{
		Workers:     workers,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		MaxFailures: cfg.MaxFailures,
		Progress:    disp.Update,
	})
	elapsed := time.Since(start)
	disp.Finish()
	slog.Info("run completed", "tests", len(selected), "dur", elapsed)

	disp.Summary(tests, elapsed)

	if cfg.Output != "" {
		if err := display.WriteReport(cfg.Output, version, tests, elapsed); err != nil {
			return errWithCode(err, exitError)
		}
	}
	if runErr != nil {
		return errWithCode(runErr, exitError)
	}

	for _, t := range tests {
		if t.Result.Code.IsFailure() {
			return errWithCode(nil, exitFailures)
		}
	}
	return nil
}

func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, p := range raw {
		name, value, _ := strings.Cut(p, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid --param %q: missing name", p)
		}
		params[name] = value
	}
	return params, nil
}

func selection(cfg *Config) (runner.Selection, error) {
	sel := runner.Selection{
		NumShards: cfg.NumShards,
		RunShard:  cfg.RunShard,
		MaxTests:  cfg.MaxTests,
		Shuffle:   cfg.Shuffle,
	}
	var err error
	if cfg.Filter != "" {
		if sel.Filter, err = regexp.Compile(cfg.Filter); err != nil {
			return sel, fmt.Errorf("invalid --filter: %w", err)
		}
	}
	if cfg.FilterOut != "" {
		if sel.FilterOut, err = regexp.Compile(cfg.FilterOut); err != nil {
			return sel, fmt.Errorf("invalid --filter-out: %w", err)
		}
	}
	if cfg.MaxFailures < 0 {
		return sel, fmt.Errorf("--max-failures must be positive, got %d", cfg.MaxFailures)
	}
	if cfg.Timeout < 0 {
		return sel, fmt.Errorf("--timeout must be positive, got %d", cfg.Timeout)
	}
	return sel, sel.Validate()
}

func displayOptions(stdout io.Writer, cfg *Config, getenv func(string) string) display.Options {
	width, isTerm := display.TerminalWidth(stdout)
	opts := display.Options{
		Quiet:     cfg.Quiet,
		Succinct:  cfg.Succinct,
		Verbose:   cfg.Verbose,
		ShowAll:   cfg.ShowAll,
		TimeTests: cfg.TimeTests,
	}
	switch cfg.Color {
	case "always":
		opts.Color = true
	case "auto":
		opts.Color = isTerm && getenv("NO_COLOR") == ""
	}
	if isTerm && cfg.Succinct {
		opts.ProgressWidth = width
	}
	return opts
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error {
	return e.err
}
