package lit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTest(suite *Suite, path ...string) *Test {
	return &Test{Suite: suite, PathInSuite: path, Config: suite.Config}
}

func TestParseNameList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "false.txt", want: []string{"false.txt"}},
		{name: "two", input: "false.txt;false2.txt", want: []string{"false.txt", "false2.txt"}},
		{name: "blanks_dropped", input: " a.txt ;; b/c.txt ;", want: []string{"a.txt", "b/c.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseNameList(tt.input))
		})
	}
}

func TestApplyXFail(t *testing.T) {
	suite := &Suite{Name: "top-level-suite", SourceRoot: "/src", ExecRoot: "/src", Config: &Config{}}
	pass := newTest(suite, "true.txt")
	fail := newTest(suite, "false.txt")
	fail2 := newTest(suite, "sub", "false2.txt")

	ApplyXFail([]*Test{pass, fail, fail2}, ParseNameList("false.txt;top-level-suite :: sub/false2.txt"), nil)

	require.Empty(t, pass.XFails)
	require.Equal(t, []string{"*"}, fail.XFails)
	require.Equal(t, []string{"*"}, fail2.XFails)

	for _, tc := range []*Test{fail, fail2} {
		xfail, err := tc.IsExpectedToFail()
		require.NoError(t, err)
		require.True(t, xfail, tc.FullName())
	}
}

func TestApplyXFailNotWins(t *testing.T) {
	suite := &Suite{Name: "s", Config: &Config{}}
	tc := newTest(suite, "a.txt")
	tc.XFails = []string{"*"}

	ApplyXFail([]*Test{tc}, nil, []string{"s :: a.txt"})

	require.True(t, tc.XFailNot)
	xfail, err := tc.IsExpectedToFail()
	require.NoError(t, err)
	require.False(t, xfail)
}

func TestIsExpectedToFailExpressions(t *testing.T) {
	suite := &Suite{Name: "s", Config: &Config{
		AvailableFeatures: []string{"shell", "asserts"},
		TargetTriple:      "x86_64-unknown-linux-gnu",
	}}

	tests := []struct {
		name   string
		xfails []string
		want   bool
	}{
		{name: "none", want: false},
		{name: "star", xfails: []string{"*"}, want: true},
		{name: "feature", xfails: []string{"asserts"}, want: true},
		{name: "missing_feature", xfails: []string{"windows"}, want: false},
		{name: "triple_substring", xfails: []string{"linux"}, want: true},
		{name: "any_of_list", xfails: []string{"windows", "shell && !windows"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTest(suite, "a.txt")
			tc.XFails = tt.xfails
			got, err := tc.IsExpectedToFail()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIsExpectedToFailBadExpression(t *testing.T) {
	tc := newTest(&Suite{Name: "s", Config: &Config{}}, "a.txt")
	tc.XFails = []string{"a &&"}
	_, err := tc.IsExpectedToFail()
	require.Error(t, err)
}

func TestFullName(t *testing.T) {
	tc := newTest(&Suite{Name: "top-level-suite", SourceRoot: "/src", ExecRoot: "/build", Config: &Config{}}, "dir", "x.txt")
	require.Equal(t, "top-level-suite :: dir/x.txt", tc.FullName())
	require.Equal(t, "/src/dir/x.txt", tc.SourcePath())
	require.Equal(t, "/build/dir/x.txt", tc.ExecPath())
}

func TestResultCodes(t *testing.T) {
	for _, code := range AllCodes() {
		parsed, err := ParseResultCode(code.String())
		require.NoError(t, err)
		require.Equal(t, code, parsed)
	}
	_, err := ParseResultCode("BOGUS")
	require.Error(t, err)

	require.True(t, Fail.IsFailure())
	require.True(t, XPass.IsFailure())
	require.True(t, Timeout.IsFailure())
	require.True(t, Unresolved.IsFailure())
	require.False(t, XFail.IsFailure())
	require.False(t, FlakyPass.IsFailure())
	require.Equal(t, "Expectedly Failed", XFail.Label())
}

func TestConfigOverlay(t *testing.T) {
	base := &Config{
		Name:              "s",
		Suffixes:          []string{".txt"},
		Excludes:          []string{"Inputs"},
		Substitutions:     map[string]string{"%{a}": "1"},
		AvailableFeatures: []string{"shell"},
	}
	unsupported := true
	out := base.Overlay(&LocalConfig{
		Suffixes:          []string{".test"},
		Excludes:          []string{"skip.test"},
		Substitutions:     map[string]string{"%{b}": "2"},
		AvailableFeatures: []string{"local"},
		Unsupported:       &unsupported,
	})

	require.Equal(t, []string{".test"}, out.Suffixes)
	require.Equal(t, []string{"Inputs", "skip.test"}, out.Excludes)
	require.Equal(t, map[string]string{"%{a}": "1", "%{b}": "2"}, out.Substitutions)
	require.Equal(t, []string{"shell", "local"}, out.AvailableFeatures)
	require.True(t, out.Unsupported)

	// The base config is untouched.
	require.Equal(t, []string{".txt"}, base.Suffixes)
	require.Len(t, base.Substitutions, 1)
	require.False(t, base.Unsupported)
}
