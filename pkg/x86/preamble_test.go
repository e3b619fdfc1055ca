package x86_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"its-hmny.dev/logik/pkg/x86"
)

func TestParsePreamble(t *testing.T) {
	preamble, err := x86.ParsePreamble(testPreamble)
	require.NoError(t, err)

	// The original text is carried verbatim for the output concatenation
	require.Equal(t, testPreamble, preamble.Text)

	for _, routine := range x86.RequiredRoutines {
		require.True(t, preamble.HasLabel(routine), "missing routine %s", routine)
	}
	require.True(t, preamble.HasLabel("_start"))
	require.False(t, preamble.HasLabel("missing"))
}

func TestParsePreambleMissingRoutine(t *testing.T) {
	// Drop a required helper and keep everything else
	truncated := strings.ReplaceAll(testPreamble, "binop_jne:", "other_routine:")

	_, err := x86.ParsePreamble(truncated)
	require.EqualError(t, err, "runtime preamble is missing the 'binop_jne' routine")
}

func TestLoadPreamble(t *testing.T) {
	_, err := x86.LoadPreamble("testdata/does-not-exist.asm")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot read runtime preamble")
}
