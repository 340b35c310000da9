package volume

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/config"
	"dicom2mesh/pkg/phantom"
	"dicom2mesh/pkg/tissue"
)

func quietPipeline() (*Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := NewPipeline()
	p.Log = logger
	return p, hook
}

// unpad strips the constant border again.
func unpad(vol *models.Volume, pad [3]int) []float64 {
	var out []float64
	for z := pad[2]; z < vol.Dims[2]-pad[2]; z++ {
		for y := pad[1]; y < vol.Dims[1]-pad[1]; y++ {
			for x := pad[0]; x < vol.Dims[0]-pad[0]; x++ {
				out = append(out, vol.At(x, y, z))
			}
		}
	}
	return out
}

func TestApplySmallVolumeIsNotShrunk(t *testing.T) {
	vol := phantom.Tetra(20, models.UInt8)
	p, _ := quietPipeline()

	out, report, err := p.Apply(vol, Options{Toggles: config.DefaultToggles()})
	require.NoError(t, err)
	assert.Equal(t, []string{"pad"}, report.Stages)
	assert.False(t, report.Thresholded)
	assert.Equal(t, [3]int{30, 30, 30}, out.Dims)
	assert.Equal(t, vol.Data, unpad(out, [3]int{5, 5, 5}))
	assert.Equal(t, [3]float64{-5, -5, -5}, out.Origin)
}

func TestApplyShrinksLargeAxis(t *testing.T) {
	vol := models.NewVolume(300, 4, 2, models.UInt8)
	p, _ := quietPipeline()

	out, report, err := p.Apply(vol, Options{Toggles: config.DefaultToggles()})
	require.NoError(t, err)
	assert.Equal(t, []string{"shrink", "pad"}, report.Stages)
	assert.Equal(t, [3]int{2, 1, 1}, report.ShrinkFactors)
	assert.Equal(t, [3]int{150 + 10, 4 + 10, 2 + 10}, out.Dims)
	assert.Equal(t, 2.0, out.Spacing[0])

	noShrink := config.DefaultToggles().With(config.Shrink, false)
	out, report, err = p.Apply(vol, Options{Toggles: noShrink})
	require.NoError(t, err)
	assert.Equal(t, []string{"pad"}, report.Stages)
	assert.Equal(t, 310, out.Dims[0])
}

func TestApplyBoneThreshold(t *testing.T) {
	// a bright ball on a soft tissue background
	vol := phantom.Sphere(16, 5, 1000, 40, models.Int16)
	threshold, median := tissue.Lookup("bone")
	require.False(t, median)

	p, _ := quietPipeline()
	out, report, err := p.Apply(vol, Options{Toggles: config.DefaultToggles(), Threshold: threshold, MedianFilter: median})
	require.NoError(t, err)
	assert.True(t, report.Thresholded)
	assert.Equal(t, []string{"threshold", "pad"}, report.Stages)
	assert.Equal(t, models.UInt8, out.PixelType)
	assert.Equal(t, 0.0, report.PadValue)
	assert.Equal(t, 255.0, out.At(5+8, 5+8, 5+8))
	assert.Equal(t, 0.0, out.At(5, 5, 5))
}

func TestApplySoftTissueForcesMedian(t *testing.T) {
	vol := phantom.Sphere(10, 3, 50, -50, models.Int16)
	threshold, median := tissue.Lookup("soft_tissue")
	require.True(t, median)

	p, _ := quietPipeline()
	_, report, err := p.Apply(vol, Options{Toggles: config.DefaultToggles(), Threshold: threshold, MedianFilter: median})
	require.NoError(t, err)
	assert.Equal(t, []string{"threshold", "median", "pad"}, report.Stages)
}

func TestApplyAnisotropicKeepsPixelType(t *testing.T) {
	vol := phantom.Tetra(12, models.Int16)
	toggles, err := config.ParseToggles([]string{"aniso", "median"})
	require.NoError(t, err)

	p, hook := quietPipeline()
	out, report, err := p.Apply(vol, Options{Toggles: toggles})
	require.NoError(t, err)
	assert.Equal(t, []string{"anisotropic", "median", "pad"}, report.Stages)
	assert.Equal(t, models.Int16, out.PixelType)
	for _, v := range out.Data {
		assert.Equal(t, v, float64(int(v)))
	}

	var timed int
	for _, e := range hook.AllEntries() {
		if _, ok := e.Data["elapsed"]; ok {
			timed++
		}
	}
	assert.Equal(t, 2, timed)
}

func TestApply2DPadsInPlaneOnly(t *testing.T) {
	vol := models.NewVolume(6, 4, 1, models.Float32)
	vol.Data[3] = -3
	p, _ := quietPipeline()

	out, report, err := p.Apply(vol, Options{Toggles: config.DefaultToggles()})
	require.NoError(t, err)
	assert.Equal(t, [3]int{16, 14, 1}, out.Dims)
	assert.Equal(t, -3.0, report.PadValue)
	assert.Equal(t, -3.0, out.At(0, 0, 0))
}

func TestApplyRejectsInvalidVolume(t *testing.T) {
	p, _ := quietPipeline()
	_, _, err := p.Apply(&models.Volume{Dims: [3]int{2, 2, 2}, Spacing: [3]float64{1, 1, 1}}, Options{})
	assert.Error(t, err)
}
