package shtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/715d/golit/pkg/boolexpr"
	"github.com/715d/golit/pkg/lit"
)

// waitDelay bounds how long we wait for output pipes after a test process
// is killed, in case it left children holding them open.
const waitDelay = 2 * time.Second

// ShTest runs the RUN lines of a test file as a single shell script.
type ShTest struct{}

var _ lit.Format = ShTest{}

// Execute implements lit.Format.
func (ShTest) Execute(ctx context.Context, t *lit.Test) *lit.Result {
	script, err := ParseFile(t.SourcePath())
	if err != nil {
		return lit.NewResult(lit.Unresolved, err.Error())
	}

	if res := checkFeatures(t, script); res != nil {
		return res
	}

	if err := script.Validate(); err != nil {
		return lit.NewResult(lit.Unresolved, err.Error())
	}

	tmpDir, tmpBase := TempPaths(t)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return lit.NewResult(lit.Unresolved, fmt.Sprintf("creating %s: %v", tmpDir, err))
	}
	commands := ApplySubstitutions(script.Commands, Substitutions(t))

	retries := t.Config.RetryAttempts
	if script.AllowRetries >= 0 {
		retries = script.AllowRetries
	}

	run := func(ctx context.Context) (string, int, error) {
		return runScript(ctx, t, commands, tmpBase+".script")
	}
	return finish(ctx, t, run, retries, commands, script.XFails)
}

// Executable runs the test file itself.
type Executable struct{}

var _ lit.Format = Executable{}

// Execute implements lit.Format.
func (Executable) Execute(ctx context.Context, t *lit.Test) *lit.Result {
	path := t.SourcePath()
	run := func(ctx context.Context) (string, int, error) {
		cmd := exec.CommandContext(ctx, path)
		cmd.Dir = filepath.Dir(path)
		return runCommand(cmd, t.Config)
	}
	return finish(ctx, t, run, t.Config.RetryAttempts, []string{path}, nil)
}

// checkFeatures returns an UNSUPPORTED result when the REQUIRES or
// UNSUPPORTED directives exclude the test, or nil when it may run.
func checkFeatures(t *lit.Test, script *Script) *lit.Result {
	features := t.Config.AvailableFeatures

	var missing []string
	for _, expr := range script.Requires {
		ok, err := boolexpr.Evaluate(expr, features, "")
		if err != nil {
			return lit.NewResult(lit.Unresolved, err.Error())
		}
		if !ok {
			missing = append(missing, expr)
		}
	}
	if len(missing) > 0 {
		return lit.NewResult(lit.Unsupported,
			"Test requires the following unavailable features: "+strings.Join(missing, ", "))
	}

	var unsupported []string
	for _, expr := range script.Unsupported {
		ok, err := boolexpr.Evaluate(expr, features, t.Config.TargetTriple)
		if err != nil {
			return lit.NewResult(lit.Unresolved, err.Error())
		}
		if ok {
			unsupported = append(unsupported, expr)
		}
	}
	if len(unsupported) > 0 {
		return lit.NewResult(lit.Unsupported,
			"Test does not support the following features and/or targets: "+strings.Join(unsupported, ", "))
	}
	return nil
}

type runFunc func(ctx context.Context) (output string, exitCode int, err error)

// finish runs the test up to retries+1 times and maps the outcome through
// the expected-failure state of the test, including the XFAIL expressions
// of the test file.
func finish(ctx context.Context, t *lit.Test, run runFunc, retries int, commands, xfails []string) *lit.Result {
	expectFail, err := t.IsExpectedToFail(xfails...)
	if err != nil {
		return lit.NewResult(lit.Unresolved, err.Error())
	}

	var (
		output   string
		exitCode int
		attempts int
	)
	for attempts = 1; attempts <= retries+1; attempts++ {
		output, exitCode, err = run(ctx)
		if errors.Is(ctx.Err(), context.Canceled) {
			return &lit.Result{Code: lit.Skipped, Output: lit.InterruptedOutput, Attempts: attempts}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &lit.Result{
				Code:     lit.Timeout,
				Output:   formatOutput(commands, exitCode, output) + "\nReached timeout\n",
				Attempts: attempts,
			}
		}
		if err != nil {
			return &lit.Result{Code: lit.Unresolved, Output: err.Error(), Attempts: attempts}
		}
		if exitCode == 0 || expectFail {
			break
		}
		slog.Debug("test failed, retrying", "test", t.FullName(), "attempt", attempts)
	}
	if attempts > retries+1 {
		attempts = retries + 1
	}

	code := lit.Pass
	switch {
	case exitCode != 0 && expectFail:
		code = lit.XFail
	case exitCode != 0:
		code = lit.Fail
	case expectFail:
		code = lit.XPass
	case attempts > 1:
		code = lit.FlakyPass
	}
	return &lit.Result{
		Code:     code,
		Output:   formatOutput(commands, exitCode, output),
		Attempts: attempts,
	}
}

// runScript writes the commands to scriptPath and runs it with the suite shell.
func runScript(ctx context.Context, t *lit.Test, commands []string, scriptPath string) (string, int, error) {
	shell, header := shellFor(t.Config)

	var b strings.Builder
	b.WriteString(header)
	for _, c := range commands {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(scriptPath, []byte(b.String()), 0o644); err != nil {
		return "", 0, fmt.Errorf("writing script: %w", err)
	}

	cmd := exec.CommandContext(ctx, shell, scriptPath)
	cmd.Dir = filepath.Dir(t.ExecPath())
	if err := os.MkdirAll(cmd.Dir, 0o755); err != nil {
		return "", 0, err
	}
	return runCommand(cmd, t.Config)
}

// shellFor returns the shell binary and the script preamble.
func shellFor(cfg *lit.Config) (string, string) {
	if cfg.Shell != "" {
		if filepath.Base(cfg.Shell) == "bash" {
			return cfg.Shell, "set -e\nset -o pipefail\n"
		}
		return cfg.Shell, "set -e\n"
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, "set -e\nset -o pipefail\n"
	}
	return "sh", "set -e\n"
}

// runCommand runs cmd with the suite environment and returns its combined
// output and exit code. A non-zero exit is not an error.
func runCommand(cmd *exec.Cmd, cfg *lit.Config) (string, int, error) {
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(cfg.Environment))
	for k := range cfg.Environment {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+cfg.Environment[k])
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return out.String(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed by a signal reports -1.
		return out.String(), exitErr.ExitCode(), nil
	}
	return out.String(), -1, fmt.Errorf("%s: %w", cmd.String(), err)
}

func formatOutput(commands []string, exitCode int, output string) string {
	var b strings.Builder
	b.WriteString("Script:\n--\n")
	for _, c := range commands {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "--\nExit Code: %d\n", exitCode)
	if output != "" {
		b.WriteString("\nCommand Output (stdout and stderr):\n--\n")
		b.WriteString(output)
		if !strings.HasSuffix(output, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("--\n")
	}
	return b.String()
}
