package mesh

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stage names one step of the mesh chain.
type Stage string

const (
	StageClean      Stage = "clean"
	StageSmallParts Stage = "small parts"
	StageSmooth     Stage = "smooth"
	StageDecimate   Stage = "decimate"
	StageRotate     Stage = "rotate"
)

// Action is what the chain does after a failed stage.
type Action int

const (
	// Abort stops the chain and returns the stage error.
	Abort Action = iota

	// Skip continues with the stage's input mesh.
	Skip
)

// Policy decides how a stage failure is handled.
type Policy func(stage Stage, err error) Action

// DefaultPolicy skips failed rotations and aborts on everything else.
func DefaultPolicy(stage Stage, err error) Action {
	if stage == StageRotate {
		return Skip
	}
	return Abort
}

// StageResult records the outcome of one stage.
type StageResult struct {
	Stage   Stage
	Mesh    *Mesh
	Err     error
	Skipped bool
	Elapsed time.Duration
}

// StageError is returned when a failed stage aborts the chain.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mesh %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Rotation is an optional rigid rotation applied last.
type Rotation struct {
	Axis  string
	Angle float64
}

// Options configures one Apply run.
type Options struct {
	// Connectivity keeps only the largest connected region before cleaning
	Connectivity bool

	// SmallPartRatio drops regions not larger than this fraction of the
	// largest region; 0 disables the stage
	SmallPartRatio float64

	SmoothIterations int

	// Reduction is the fraction of polygons decimation tries to remove
	Reduction float64

	// Rotate enables the rotation stage; it only runs for a non-zero angle
	Rotate   bool
	Rotation Rotation
}

// Pipeline runs the mesh stages in a fixed order: clean, small parts,
// smooth, decimate, rotate.
type Pipeline struct {
	Engine Engine
	Policy Policy
	Log    logrus.Ext1FieldLogger
}

// NewPipeline returns a pipeline over the model3d engine with the default
// policy.
func NewPipeline() *Pipeline {
	return &Pipeline{Engine: NewGeometry(), Policy: DefaultPolicy, Log: logrus.StandardLogger()}
}

type stageFunc func(*Mesh) (*Mesh, error)

// Apply runs the chain. The returned results hold one entry per stage that
// was attempted.
func (p *Pipeline) Apply(m *Mesh, opts Options) (*Mesh, []StageResult, error) {
	if m.NumPolys() == 0 {
		return nil, nil, errors.Wrap(ErrEmptyMesh, "mesh chain input")
	}
	e := p.Engine
	stages := []struct {
		stage Stage
		run   bool
		fn    stageFunc
	}{
		{StageClean, true, func(m *Mesh) (*Mesh, error) {
			if opts.Connectivity {
				largest, err := e.LargestRegion(m)
				if err != nil {
					return nil, errors.Wrap(err, "connectivity")
				}
				m = largest
			}
			return e.Clean(m)
		}},
		{StageSmallParts, opts.SmallPartRatio != 0, func(m *Mesh) (*Mesh, error) {
			return e.RemoveSmallParts(m, opts.SmallPartRatio)
		}},
		{StageSmooth, opts.SmoothIterations != 0, func(m *Mesh) (*Mesh, error) {
			return e.Smooth(m, opts.SmoothIterations)
		}},
		{StageDecimate, opts.Reduction != 0, func(m *Mesh) (*Mesh, error) {
			return e.Decimate(m, opts.Reduction)
		}},
		{StageRotate, opts.Rotate && opts.Rotation.Angle != 0, func(m *Mesh) (*Mesh, error) {
			return e.Rotate(m, opts.Rotation.Axis, opts.Rotation.Angle)
		}},
	}

	var results []StageResult
	for _, s := range stages {
		if !s.run {
			continue
		}
		res := p.runStage(s.stage, s.fn, m)
		results = append(results, res)
		if res.Err == nil {
			m = res.Mesh
			continue
		}
		if p.policy()(s.stage, res.Err) == Abort {
			return nil, results, &StageError{Stage: s.stage, Err: res.Err}
		}
		results[len(results)-1].Skipped = true
		p.logger().WithError(res.Err).WithField("stage", s.stage).Warn("stage failed, keeping previous mesh")
	}
	return m, results, nil
}

func (p *Pipeline) runStage(stage Stage, fn stageFunc, in *Mesh) StageResult {
	start := time.Now()
	out, err := fn(in)
	if err == nil && out.NumPolys() == 0 {
		err = ErrEmptyMesh
	}
	res := StageResult{Stage: stage, Mesh: out, Err: err, Elapsed: time.Since(start)}
	if err == nil {
		p.logger().WithFields(logrus.Fields{
			"stage":    stage,
			"polygons": out.NumPolys(),
			"elapsed":  res.Elapsed,
		}).Infof("surface %s", stage)
	}
	return res
}

func (p *Pipeline) policy() Policy {
	if p.Policy == nil {
		return DefaultPolicy
	}
	return p.Policy
}

func (p *Pipeline) logger() logrus.Ext1FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
