package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
)

func TestDefaultToggles(t *testing.T) {
	tg := DefaultToggles()
	assert.True(t, tg.Enabled(Shrink))
	assert.False(t, tg.Enabled(Anisotropic))
	assert.False(t, tg.Enabled(Median))
	assert.False(t, tg.Enabled(Largest))
	assert.False(t, tg.Enabled(Rotation))

	var zero FilterToggleSet
	assert.True(t, zero.Enabled(Shrink))
}

func TestParseTogglesLastDirectiveWins(t *testing.T) {
	tg, err := ParseToggles([]string{"anisotropic", "noshrink", "noanisotropic", "largest", "shrink"})
	require.NoError(t, err)
	assert.True(t, tg.Enabled(Shrink))
	assert.False(t, tg.Enabled(Anisotropic))
	assert.True(t, tg.Enabled(Largest))
	assert.False(t, tg.Enabled(Median))
}

func TestParseTogglesPrefixes(t *testing.T) {
	tg, err := ParseToggles([]string{"aniso", "large", "nomedian"})
	require.NoError(t, err)
	assert.True(t, tg.Enabled(Anisotropic))
	assert.True(t, tg.Enabled(Largest))
	assert.False(t, tg.Enabled(Median))
}

func TestParseTogglesTrimsDirectives(t *testing.T) {
	tg, err := ParseToggles([]string{" median ", "\tnoshrink\n"})
	require.NoError(t, err)
	assert.True(t, tg.Enabled(Median))
	assert.False(t, tg.Enabled(Shrink))
}

func TestParseTogglesUnknown(t *testing.T) {
	for _, d := range []string{"", "no", "blur", "nosharpen"} {
		_, err := ParseToggles([]string{d})
		assert.True(t, errors.Is(err, ErrUnknownFilter), d)
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := DefaultToggles()
	on := base.With(Median, true)
	assert.True(t, on.Enabled(Median))
	assert.False(t, base.Enabled(Median))
}

func TestRotationAngleImpliesDirective(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mesh.RotAngle = 90
	tg, err := cfg.Toggles()
	require.NoError(t, err)
	assert.True(t, tg.Enabled(Rotation))

	cfg.Filters = []string{"norotation"}
	tg, err = cfg.Toggles()
	require.NoError(t, err)
	assert.False(t, tg.Enabled(Rotation))
}

func TestParseDoubleThreshold(t *testing.T) {
	th, err := ParseDoubleThreshold("-15;30;58;100")
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdSpec{-15, 30, 58, 100}, th)

	// kept as supplied, not sorted
	th, err = ParseDoubleThreshold("4; 3 ;2;1.5")
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdSpec{4, 3, 2, 1.5}, th)
}

func TestParseDoubleThresholdBadCount(t *testing.T) {
	for _, s := range []string{"1;2;3", "1;2;3;4;5", "", "1;;3;4", "a;b;c;d"} {
		_, err := ParseDoubleThreshold(s)
		assert.True(t, errors.Is(err, ErrBadThresholdCount), s)
	}
}
