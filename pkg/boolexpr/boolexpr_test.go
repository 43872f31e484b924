package boolexpr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	features := []string{"its-true", "false-lol-true", "under_score", "e=quals", "d1g1ts", "x86_64", "param:mode"}
	triple := "arch-vendor-os"

	tests := []struct {
		expr string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"its-true", true},
		{"false-lol-true", true},
		{"under_score", true},
		{"e=quals", true},
		{"d1g1ts", true},
		{"{{its.+}}", true},
		{"{{false-[lo]+-true}}", true},
		{"{{(true|false)-lol-(true|false)}}", true},
		{"d1g{{[0-9]}}ts", true},
		{"d1g{{[0-9]}}t{{[a-z]}}", true},
		{"{{d}}1g{{[0-9]}}t{{[a-z]}}", true},
		{"d1{{(g|1)+}}ts", true},
		{"{{its}}", false},
		{"missing", false},
		{"arch", true},
		{"vendor-os", true},
		{"!true", false},
		{"!false", true},
		{"!!false", false},
		{"true && true", true},
		{"true && !false", true},
		{"false && true", false},
		{"false || true", true},
		{"true || false && false", true},
		{"(true || false) && false", false},
		{"!(its-true && missing)", true},
		{"x86_64 && !windows", true},
		{"param:mode", true},
		{"param:other", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, features, triple)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateWithoutTriple(t *testing.T) {
	got, err := Evaluate("linux", nil, "")
	require.NoError(t, err)
	require.False(t, got)
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr    string
		errLike string
	}{
		{"ba#d", "couldn't parse text"},
		{"true and true", "<end of expression>"},
		{"|| true", "identifier"},
		{"true &&", "identifier"},
		{"", "identifier"},
		{"*", "couldn't parse text"},
		{"no wait stop", "<end of expression>"},
		{"(((true && true) || true)", "')'"},
		{"true (true)", "<end of expression>"},
		{"( )", "identifier"},
		{"abc{{def", "couldn't parse text"},
		{"{{[}}", "identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Evaluate(tt.expr, []string{"a"}, "")
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errLike)
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("a && (b || !c)"))
	require.Error(t, Validate("a &&"))
}
