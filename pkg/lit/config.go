package lit

import (
	"maps"
	"slices"
)

// Test formats understood by the runner.
const (
	FormatShell      = "sh"
	FormatExecutable = "executable"
)

// Config is the configuration of a test suite, as read from lit.cfg.yaml.
type Config struct {
	// Name is the suite name printed in front of every test.
	Name string `yaml:"name"`

	// Suffixes selects which files in the suite are tests, e.g. ".txt".
	Suffixes []string `yaml:"suffixes"`

	// Excludes lists file and directory names skipped during discovery.
	Excludes []string `yaml:"excludes"`

	// Format is the test format, "sh" or "executable".
	Format string `yaml:"format"`

	// Substitutions are applied to RUN lines before execution.
	Substitutions map[string]string `yaml:"substitutions"`

	// Environment is added to the environment of every test process.
	Environment map[string]string `yaml:"environment"`

	// AvailableFeatures are matched by REQUIRES, UNSUPPORTED and XFAIL.
	AvailableFeatures []string `yaml:"available_features"`

	// TargetTriple is matched by substring in XFAIL and UNSUPPORTED.
	TargetTriple string `yaml:"target_triple"`

	// TestExecRoot is where Output directories are created, relative to the suite root.
	TestExecRoot string `yaml:"test_exec_root,omitempty"`

	// Timeout is the per-test time limit in seconds. Zero disables it.
	Timeout int `yaml:"timeout,omitempty"`

	// RetryAttempts is how many times a failing test is rerun.
	RetryAttempts int `yaml:"test_retry_attempts,omitempty"`

	// Unsupported disables discovery below the directory holding the config.
	Unsupported bool `yaml:"unsupported,omitempty"`

	// Shell runs shell tests. Defaults to bash, falling back to sh.
	Shell string `yaml:"shell,omitempty"`
}

// LocalConfig is a lit.local.cfg.yaml overlay for a directory subtree.
type LocalConfig struct {
	Suffixes          []string          `yaml:"suffixes"`
	Excludes          []string          `yaml:"excludes"`
	Substitutions     map[string]string `yaml:"substitutions"`
	Environment       map[string]string `yaml:"environment"`
	AvailableFeatures []string          `yaml:"available_features"`
	Unsupported       *bool             `yaml:"unsupported"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Suffixes = slices.Clone(c.Suffixes)
	clone.Excludes = slices.Clone(c.Excludes)
	clone.AvailableFeatures = slices.Clone(c.AvailableFeatures)
	clone.Substitutions = maps.Clone(c.Substitutions)
	clone.Environment = maps.Clone(c.Environment)
	return &clone
}

// Overlay returns a copy of c with the local settings applied.
// Suffixes are replaced, everything else is merged.
func (c *Config) Overlay(local *LocalConfig) *Config {
	out := c.Clone()
	if local == nil {
		return out
	}
	if len(local.Suffixes) > 0 {
		out.Suffixes = slices.Clone(local.Suffixes)
	}
	out.Excludes = append(out.Excludes, local.Excludes...)
	out.AvailableFeatures = append(out.AvailableFeatures, local.AvailableFeatures...)
	if len(local.Substitutions) > 0 {
		if out.Substitutions == nil {
			out.Substitutions = make(map[string]string, len(local.Substitutions))
		}
		maps.Copy(out.Substitutions, local.Substitutions)
	}
	if len(local.Environment) > 0 {
		if out.Environment == nil {
			out.Environment = make(map[string]string, len(local.Environment))
		}
		maps.Copy(out.Environment, local.Environment)
	}
	if local.Unsupported != nil {
		out.Unsupported = *local.Unsupported
	}
	return out
}
