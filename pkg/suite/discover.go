package suite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/715d/golit/pkg/lit"
)

// outputDirName is the per-directory scratch directory used for %t and %T.
const outputDirName = "Output"

// Options configures test discovery.
type Options struct {
	// Params are --param NAME=VALUE settings passed to every suite.
	Params map[string]string
}

// Discoverer finds suites and tests. It is safe for concurrent use.
type Discoverer struct {
	opts Options

	// suites maps a suite root directory to its loaded suite.
	suites *xsync.Map[string, *lit.Suite]

	// dirConfigs maps a directory to its effective config.
	dirConfigs *xsync.Map[string, *lit.Config]
}

// NewDiscoverer creates a new discoverer.
func NewDiscoverer(opts Options) *Discoverer {
	return &Discoverer{
		opts:       opts,
		suites:     xsync.NewMap[string, *lit.Suite](),
		dirConfigs: xsync.NewMap[string, *lit.Config](),
	}
}

// Discover returns the tests found under the given input paths, in input
// order and lexical order within each input. Tests reachable from more than
// one input are returned once.
func (d *Discoverer) Discover(ctx context.Context, inputs []string) ([]*lit.Test, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no test paths given")
	}

	// Each input writes to its own slot.
	found := make([][]*lit.Test, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	for idx, input := range inputs {
		g.Go(func() error {
			tests, err := d.discoverPath(ctx, input)
			if err != nil {
				return err
			}
			found[idx] = tests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var tests []*lit.Test
	for _, group := range found {
		for _, t := range group {
			key := t.Suite.SourceRoot + "\x00" + t.Name()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tests = append(tests, t)
		}
	}
	slog.Debug("discovered tests", "count", len(tests), "inputs", inputs)
	return tests, nil
}

func (d *Discoverer) discoverPath(ctx context.Context, input string) ([]*lit.Test, error) {
	path, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", input, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to find test suite for '%s': %w", input, err)
	}

	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	suite, err := d.findSuite(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to find test suite for '%s': %w", input, err)
	}

	rel, err := filepath.Rel(suite.SourceRoot, path)
	if err != nil {
		return nil, err
	}
	var pathInSuite []string
	if rel != "." {
		pathInSuite = strings.Split(rel, string(filepath.Separator))
	}

	cfg, err := d.configFor(suite, dir)
	if err != nil {
		return nil, err
	}

	// A file named on the command line is a test regardless of its suffix.
	if !info.IsDir() {
		return []*lit.Test{{Suite: suite, PathInSuite: pathInSuite, Config: cfg}}, nil
	}
	if cfg.Unsupported {
		return nil, nil
	}
	return d.walkDir(ctx, suite, dir, pathInSuite)
}

// findSuite walks up from dir to the nearest directory holding ConfigName.
func (d *Discoverer) findSuite(dir string) (*lit.Suite, error) {
	for cur := dir; ; {
		if s, ok := d.suites.Load(cur); ok {
			return s, nil
		}
		cfgPath := filepath.Join(cur, ConfigName)
		if _, err := os.Stat(cfgPath); err == nil {
			return d.loadSuite(cur, cfgPath)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("no %s in %s or any parent directory", ConfigName, dir)
		}
		cur = parent
	}
}

func (d *Discoverer) loadSuite(root, cfgPath string) (*lit.Suite, error) {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	applyParams(cfg, d.opts.Params)

	execRoot := root
	if cfg.TestExecRoot != "" {
		execRoot = cfg.TestExecRoot
		if !filepath.IsAbs(execRoot) {
			execRoot = filepath.Join(root, execRoot)
		}
	}

	s := &lit.Suite{
		Name:       cfg.Name,
		SourceRoot: root,
		ExecRoot:   execRoot,
		Config:     cfg,
	}
	s, loaded := d.suites.LoadOrStore(root, s)
	if !loaded {
		slog.Debug("loaded test suite", "name", s.Name, "root", root, "exec_root", execRoot)
	}
	return s, nil
}

// configFor returns the effective config of dir, applying every local
// config between the suite root and dir.
func (d *Discoverer) configFor(suite *lit.Suite, dir string) (*lit.Config, error) {
	if dir == suite.SourceRoot {
		return suite.Config, nil
	}
	if cfg, ok := d.dirConfigs.Load(dir); ok {
		return cfg, nil
	}

	parent, err := d.configFor(suite, filepath.Dir(dir))
	if err != nil {
		return nil, err
	}
	local, err := LoadLocalConfig(filepath.Join(dir, LocalConfigName))
	if err != nil {
		return nil, err
	}
	cfg := parent
	if local != nil {
		cfg = parent.Overlay(local)
	}
	cfg, _ = d.dirConfigs.LoadOrStore(dir, cfg)
	return cfg, nil
}

func (d *Discoverer) walkDir(ctx context.Context, suite *lit.Suite, dir string, pathInSuite []string) ([]*lit.Test, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := d.configFor(suite, dir)
	if err != nil {
		return nil, err
	}
	if cfg.Unsupported {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var tests []*lit.Test
	for _, entry := range entries {
		name := entry.Name()
		if skipEntry(name, cfg) {
			continue
		}
		path := filepath.Join(dir, name)
		childPath := append(slices.Clone(pathInSuite), name)

		if entry.IsDir() {
			// A directory with its own config is a nested suite.
			if _, err := os.Stat(filepath.Join(path, ConfigName)); err == nil {
				nested, err := d.discoverPath(ctx, path)
				if err != nil {
					return nil, err
				}
				tests = append(tests, nested...)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			sub, err := d.walkDir(ctx, suite, path, childPath)
			if err != nil {
				return nil, err
			}
			tests = append(tests, sub...)
			continue
		}

		if !hasSuffix(name, cfg.Suffixes) {
			continue
		}
		tests = append(tests, &lit.Test{Suite: suite, PathInSuite: childPath, Config: cfg})
	}
	return tests, nil
}

func skipEntry(name string, cfg *lit.Config) bool {
	switch {
	case strings.HasPrefix(name, "."):
		return true
	case name == outputDirName, name == ConfigName, name == LocalConfigName:
		return true
	}
	return slices.Contains(cfg.Excludes, name)
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
