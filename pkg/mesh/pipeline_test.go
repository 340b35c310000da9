package mesh

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/model3d/model3d"
)

func quietPipeline() (*Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &Pipeline{Engine: &Geometry{Log: logger}, Policy: DefaultPolicy, Log: logger}, hook
}

func stagesOf(results []StageResult) []Stage {
	var out []Stage
	for _, r := range results {
		out = append(out, r.Stage)
	}
	return out
}

func TestPipelineCleanOnly(t *testing.T) {
	p, hook := quietPipeline()
	m := tetrahedron(model3d.Coord3D{}, 1)

	out, results, err := p.Apply(m, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageClean}, stagesOf(results))
	assert.Equal(t, 4, out.NumPolys())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, 4, entry.Data["polygons"])
}

func TestPipelineAllStages(t *testing.T) {
	p, _ := quietPipeline()
	m := merge(sphereMesh(t, 20, 6), tetrahedron(model3d.Coord3D{X: 50}, 1))

	out, results, err := p.Apply(m, Options{
		Connectivity:     true,
		SmallPartRatio:   0.1,
		SmoothIterations: 3,
		Reduction:        0.5,
		Rotate:           true,
		Rotation:         Rotation{Axis: "Z", Angle: 180},
	})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageClean, StageSmallParts, StageSmooth, StageDecimate, StageRotate}, stagesOf(results))
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.False(t, r.Skipped)
	}
	assert.Less(t, out.NumPolys(), m.NumPolys())

	// connectivity dropped the far tetrahedron and the rotation mirrored x
	min, max := out.Bounds()
	assert.Less(t, max.X, 0.0)
	assert.Greater(t, min.X, -25.0)
}

func TestPipelineRotationSkippedWithoutAngle(t *testing.T) {
	p, _ := quietPipeline()
	_, results, err := p.Apply(tetrahedron(model3d.Coord3D{}, 1), Options{
		Rotate:   true,
		Rotation: Rotation{Axis: "X"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageClean}, stagesOf(results))
}

func TestPipelineBadAxisFallsBack(t *testing.T) {
	p, hook := quietPipeline()
	m := tetrahedron(model3d.Coord3D{X: 1}, 1)

	out, results, err := p.Apply(m, Options{
		Rotate:   true,
		Rotation: Rotation{Axis: "Q", Angle: 45},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[1].Skipped)
	assert.ErrorIs(t, results[1].Err, ErrUnknownAxis)
	min0, max0 := m.Bounds()
	min1, max1 := out.Bounds()
	assert.Equal(t, min0, min1)
	assert.Equal(t, max0, max1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestPipelineAbort(t *testing.T) {
	p, _ := quietPipeline()
	m := tetrahedron(model3d.Coord3D{}, 1)

	_, results, err := p.Apply(m, Options{Reduction: 2})
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDecimate, stageErr.Stage)
	assert.Len(t, results, 2)
}

func TestPipelineCustomPolicy(t *testing.T) {
	p, _ := quietPipeline()
	p.Policy = func(Stage, error) Action { return Skip }
	m := tetrahedron(model3d.Coord3D{}, 1)

	out, results, err := p.Apply(m, Options{SmallPartRatio: 3})
	require.NoError(t, err)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, 4, out.NumPolys())
}

func TestPipelineEmptyInput(t *testing.T) {
	p, _ := quietPipeline()
	_, _, err := p.Apply(&Mesh{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyMesh)
}

func TestDefaultPolicy(t *testing.T) {
	assert.Equal(t, Skip, DefaultPolicy(StageRotate, ErrUnknownAxis))
	for _, s := range []Stage{StageClean, StageSmallParts, StageSmooth, StageDecimate} {
		assert.Equal(t, Abort, DefaultPolicy(s, ErrEmptyMesh), s)
	}
}
