package shtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/golit/pkg/lit"
)

func TestApplySubstitutions(t *testing.T) {
	cfg := &lit.Config{Substitutions: map[string]string{
		"%{lit}":    "golit -j1",
		"%{inputs}": "/suite/Inputs",
		"%{in}":     "wrong",
	}}
	suite := &lit.Suite{Name: "s", SourceRoot: "/suite", ExecRoot: "/build", Config: cfg}
	tc := &lit.Test{Suite: suite, PathInSuite: []string{"dir", "x.txt"}, Config: cfg}

	got := ApplySubstitutions([]string{
		"%{lit} --xfail 'false.txt;false2.txt' %{inputs}/xfail-cl",
		"cat %s > %t",
		"ls %S %p %T",
		"printf '100%%s'",
	}, Substitutions(tc))

	require.Equal(t, []string{
		"golit -j1 --xfail 'false.txt;false2.txt' /suite/Inputs/xfail-cl",
		"cat /suite/dir/x.txt > " + filepath.Join("/build/dir/Output", "x.txt.tmp"),
		"ls /suite/dir /suite/dir /build/dir/Output",
		"printf '100%s'",
	}, got)
}

func TestTempPaths(t *testing.T) {
	suite := &lit.Suite{Name: "s", SourceRoot: "/src", ExecRoot: "/exec"}
	tc := &lit.Test{Suite: suite, PathInSuite: []string{"a", "b.txt"}}
	dir, base := TempPaths(tc)
	require.Equal(t, "/exec/a/Output", dir)
	require.Equal(t, "/exec/a/Output/b.txt", base)
}
