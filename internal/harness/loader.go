package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"
)

// expectationsFile is the archive member describing the expected results.
const expectationsFile = "expected.yaml"

// LoadTestCase loads a test case from a txtar archive.
func LoadTestCase(t *testing.T, path string) *TestCase {
	t.Helper()

	ar, err := txtar.ParseFile(path)
	require.NoError(t, err)

	tc := &TestCase{
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Files: make(map[string][]byte, len(ar.Files)),
	}
	var found bool
	for _, f := range ar.Files {
		if f.Name == expectationsFile {
			require.NoError(t, yaml.Unmarshal(f.Data, tc), "parsing %s in %s", expectationsFile, path)
			found = true
			continue
		}
		tc.Files[f.Name] = f.Data
	}
	require.True(t, found, "%s has no %s", path, expectationsFile)
	return tc
}

// Extract writes the suite files of tc below dir. Files ending in .sh are
// made executable.
func Extract(tc *TestCase, dir string) error {
	for name, data := range tc.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}
		mode := os.FileMode(0o644)
		if strings.HasSuffix(name, ".sh") {
			mode = 0o755
		}
		if err := os.WriteFile(path, data, mode); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
