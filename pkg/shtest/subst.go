package shtest

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/715d/golit/pkg/lit"
)

const (
	// percentMarker protects "%%" while other substitutions are applied.
	percentMarker = "#_MARKER_#"

	outputDir = "Output"
)

// Substitution replaces Key with Value in RUN commands.
type Substitution struct {
	Key   string
	Value string
}

// TempPaths returns the %T directory and %t file base for a test.
func TempPaths(t *lit.Test) (tmpDir, tmpBase string) {
	execPath := t.ExecPath()
	tmpDir = filepath.Join(filepath.Dir(execPath), outputDir)
	tmpBase = filepath.Join(tmpDir, filepath.Base(execPath))
	return tmpDir, tmpBase
}

// Substitutions returns the ordered substitution list for a test: config
// substitutions first, longest key first, then the built-in ones.
func Substitutions(t *lit.Test) []Substitution {
	var subs []Substitution
	if t.Config != nil {
		for key, value := range t.Config.Substitutions {
			subs = append(subs, Substitution{Key: key, Value: value})
		}
	}
	slices.SortFunc(subs, func(a, b Substitution) int {
		if c := cmp.Compare(len(b.Key), len(a.Key)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	source := t.SourcePath()
	sourceDir := filepath.Dir(source)
	tmpDir, tmpBase := TempPaths(t)

	return append(subs,
		Substitution{Key: "%{pathsep}", Value: string(os.PathListSeparator)},
		Substitution{Key: "%s", Value: source},
		Substitution{Key: "%S", Value: sourceDir},
		Substitution{Key: "%p", Value: sourceDir},
		Substitution{Key: "%t", Value: tmpBase + ".tmp"},
		Substitution{Key: "%T", Value: tmpDir},
	)
}

// ApplySubstitutions applies subs to each command in order. "%%" yields a
// literal '%'.
func ApplySubstitutions(commands []string, subs []Substitution) []string {
	out := make([]string, len(commands))
	for i, cmd := range commands {
		cmd = strings.ReplaceAll(cmd, "%%", percentMarker)
		for _, s := range subs {
			cmd = strings.ReplaceAll(cmd, s.Key, s.Value)
		}
		out[i] = strings.ReplaceAll(cmd, percentMarker, "%")
	}
	return out
}
