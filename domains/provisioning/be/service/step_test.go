package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepOrderIsClosedAndFixed(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, 8)
	require.Equal(t, StepInit, steps[0])
	require.Equal(t, StepFinalize, steps[len(steps)-1])

	for i, s := range steps {
		require.True(t, s.Valid())
		next, ok := s.Next()
		if s == StepFinalize {
			require.False(t, ok)
		} else {
			require.True(t, ok)
			require.Equal(t, steps[i+1], next)
		}
	}
}

func TestStepBasePercentStrictlyIncreasing(t *testing.T) {
	steps := Steps()
	for i := 1; i < len(steps); i++ {
		require.Greater(t, steps[i].BasePercent(), steps[i-1].BasePercent(),
			"base percent must increase from %s to %s", steps[i-1], steps[i])
	}
	require.Equal(t, 100, StepFinalize.NextBasePercent())
}

func TestParseStepRoundTrip(t *testing.T) {
	for _, s := range Steps() {
		parsed, err := ParseStep(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}

	_, err := ParseStep("MAKE_COFFEE")
	require.Error(t, err)

	require.False(t, Step(-1).Valid())
	require.False(t, Step(99).Valid())
}

func TestStepDescriptionLocales(t *testing.T) {
	require.Equal(t, "Creating your dedicated database", StepCopyDatabase.Description("en"))
	require.Equal(t, "Creando su base de datos dedicada", StepCopyDatabase.Description("es"))

	// Unknown locales fall back to English rather than failing.
	require.Equal(t, StepCopyDatabase.Description("en"), StepCopyDatabase.Description("fr"))

	for _, s := range Steps() {
		require.NotEmpty(t, s.Description("en"))
		require.NotEmpty(t, s.Description("es"))
	}
}
