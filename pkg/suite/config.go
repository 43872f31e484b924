// Package suite loads suite configuration and discovers tests on disk.
package suite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/golit/pkg/lit"
)

const (
	// ConfigName marks the root directory of a test suite.
	ConfigName = "lit.cfg.yaml"

	// LocalConfigName overlays the suite config for a directory subtree.
	LocalConfigName = "lit.local.cfg.yaml"
)

// LoadConfig reads a suite config file and applies defaults.
func LoadConfig(path string) (*lit.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &lit.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(filepath.Dir(path))
	}
	if cfg.Format == "" {
		cfg.Format = lit.FormatShell
	}
	switch cfg.Format {
	case lit.FormatShell, lit.FormatExecutable:
	default:
		return nil, fmt.Errorf("%s: unknown test format %q", path, cfg.Format)
	}
	if cfg.Timeout < 0 || cfg.RetryAttempts < 0 {
		return nil, fmt.Errorf("%s: timeout and test_retry_attempts must not be negative", path)
	}
	return cfg, nil
}

// LoadLocalConfig reads a local config overlay. A missing file is not an error
// and returns nil.
func LoadLocalConfig(path string) (*lit.LocalConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	local := &lit.LocalConfig{}
	if err := yaml.Unmarshal(data, local); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return local, nil
}

// applyParams exposes --param values as %{NAME} substitutions and
// param:NAME features.
func applyParams(cfg *lit.Config, params map[string]string) {
	if len(params) == 0 {
		return
	}
	if cfg.Substitutions == nil {
		cfg.Substitutions = make(map[string]string, len(params))
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		cfg.Substitutions["%{"+name+"}"] = params[name]
		cfg.AvailableFeatures = append(cfg.AvailableFeatures, "param:"+name)
	}
}
