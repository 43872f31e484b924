// Package main implements FileCheck, which verifies an input against the
// patterns in a check file.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/715d/golit/pkg/filecheck"
)

// Config holds all command-line configuration options for FileCheck.
type Config struct {
	CheckFile        string
	InputFile        string   // "-" reads stdin
	Prefixes         []string // --check-prefix, repeatable
	PrefixList       []string // --check-prefixes, comma separated
	StrictWhitespace bool
	MatchFullLines   bool
	ImplicitCheckNot []string
	AllowEmpty       bool
	Defines          []string // NAME=VALUE
	Debug            bool
}

const (
	exitMismatch = 1
	exitError    = 2
)

var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stderr))
}

func execute(args []string, stdin io.Reader, stderr io.Writer) int {
	rootCmd := newRootCmd(stdin)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
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

func newRootCmd(stdin io.Reader) *cobra.Command {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "FileCheck [flags] CHECK-FILE",
		Short: "Verify that an input matches the patterns of a check file",
		Long: `FileCheck reads an input from stdin, or --input-file, and verifies it against
the CHECK: directives found in CHECK-FILE.`,
		Example: `  tool | FileCheck %s
  tool | FileCheck --check-prefix=CHECK-FILTER %s
  FileCheck --input-file=out.txt --implicit-check-not=warning checks.txt`,
		Args: cobra.ExactArgs(1),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			slog.SetDefault(slog.New(slog.DiscardHandler))
			if cfg.Debug {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg.CheckFile = args[0]
			return runCommand(stdin, &cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	flags := rootCmd.Flags()
	flags.StringArrayVar(&cfg.Prefixes, "check-prefix", nil, "Prefix to use from the check file (repeatable, default CHECK)")
	flags.StringSliceVar(&cfg.PrefixList, "check-prefixes", nil, "Comma separated list of prefixes")
	flags.BoolVar(&cfg.StrictWhitespace, "strict-whitespace", false, "Do not canonicalize horizontal whitespace")
	flags.BoolVar(&cfg.MatchFullLines, "match-full-lines", false, "Require patterns to match whole lines")
	flags.StringArrayVar(&cfg.ImplicitCheckNot, "implicit-check-not", nil, "Pattern that must not appear between matches (repeatable)")
	flags.BoolVar(&cfg.AllowEmpty, "allow-empty", false, "Allow an empty input")
	flags.StringArrayVarP(&cfg.Defines, "define", "D", nil, "Define variable NAME=VALUE for use as [[NAME]]")
	flags.StringVar(&cfg.InputFile, "input-file", "-", "File to check, - for stdin")
	flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	return rootCmd
}

func runCommand(stdin io.Reader, cfg *Config) error {
	defines := make(map[string]string, len(cfg.Defines))
	for _, d := range cfg.Defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok || name == "" {
			return errWithCode(fmt.Errorf("invalid -D%s: want NAME=VALUE", d), exitError)
		}
		defines[name] = value
	}

	checkData, err := os.ReadFile(cfg.CheckFile)
	if err != nil {
		return errWithCode(fmt.Errorf("could not open check file '%s': %w", cfg.CheckFile, err), exitError)
	}

	checker, err := filecheck.Compile(cfg.CheckFile, checkData, filecheck.Options{
		Prefixes:         append(cfg.Prefixes, cfg.PrefixList...),
		StrictWhitespace: cfg.StrictWhitespace,
		MatchFullLines:   cfg.MatchFullLines,
		AllowEmpty:       cfg.AllowEmpty,
		ImplicitCheckNot: cfg.ImplicitCheckNot,
		Defines:          defines,
	})
	if err != nil {
		return errWithCode(err, exitError)
	}
	slog.Debug("compiled check file", "file", cfg.CheckFile, "directives", len(checker.Directives()))

	var input []byte
	inputName := cfg.InputFile
	if cfg.InputFile == "-" {
		inputName = "<stdin>"
		input, err = io.ReadAll(stdin)
	} else {
		input, err = os.ReadFile(cfg.InputFile)
	}
	if err != nil {
		return errWithCode(fmt.Errorf("could not open input file '%s': %w", cfg.InputFile, err), exitError)
	}

	if err := checker.Check(inputName, input); err != nil {
		return errWithCode(err, exitMismatch)
	}
	return nil
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
