// Package pipeline sequences a conversion run: resolve the input, export
// metadata, filter the volume, extract the surface, filter the mesh and
// write it.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/config"
	"dicom2mesh/pkg/input"
	"dicom2mesh/pkg/mesh"
	"dicom2mesh/pkg/series"
	"dicom2mesh/pkg/visualization"
	"dicom2mesh/pkg/volume"
)

// Result describes a finished run.
type Result struct {
	// Trace lists the states entered, ending in Done
	Trace []State

	Modality string
	IsoValue float64

	Volume     volume.Report
	MeshStages []mesh.StageResult
	Polygons   int

	// Output is the written mesh path; empty when the extension was not
	// recognised
	Output string
}

// Driver runs one conversion.
type Driver struct {
	Config *config.Config

	// Inputs are path or glob arguments
	Inputs []string

	// MeshInput, when set, replaces the volume stages with a mesh read
	// from this file
	MeshInput string

	Resolver *input.Resolver
	Volumes  *volume.Pipeline
	Surfaces mesh.Engine
	Meshes   *mesh.Pipeline
	Log      logrus.Ext1FieldLogger
}

// NewDriver wires the default components for cfg, all logging to log.
func NewDriver(cfg *config.Config, inputs []string, log logrus.Ext1FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reader := series.NewDicomReader()
	reader.Log = log

	locator := series.NewLocator(reader)
	locator.Log = log
	locator.Search = cfg.Input.Search
	if cfg.Input.DicomPattern != "" {
		locator.Pattern = cfg.Input.DicomPattern
	}

	resolver := input.NewResolver(locator)
	resolver.Log = log
	resolver.Clean = cfg.Input.Clean

	volumes := volume.NewPipeline()
	volumes.Log = log

	geometry := mesh.NewGeometry()
	geometry.Log = log

	meshes := mesh.NewPipeline()
	meshes.Engine = geometry
	meshes.Log = log

	return &Driver{
		Config:   cfg,
		Inputs:   inputs,
		Resolver: resolver,
		Volumes:  volumes,
		Surfaces: geometry,
		Meshes:   meshes,
		Log:      log,
	}
}

// run carries the per-call state of Run.
type run struct {
	d       *Driver
	ctx     context.Context
	result  *Result
	toggles config.FilterToggleSet
}

func (r *run) enter(s State) error {
	if err := r.ctx.Err(); err != nil {
		return r.fail(s, KindGeneric, errors.Wrap(err, "interrupted"))
	}
	r.result.Trace = append(r.result.Trace, s)
	r.d.Log.WithField("state", s).Debug("entering state")
	return nil
}

func (r *run) fail(s State, kind Kind, err error) error {
	r.result.Trace = append(r.result.Trace, Failed)
	return &FailureError{State: s, Kind: kind, Err: err}
}

// Run executes the pipeline. Configuration is validated before any input
// is read.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	r := &run{d: d, ctx: ctx, result: &Result{}}
	cfg := d.Config

	threshold, median, err := cfg.Thresholds()
	if err != nil {
		return r.result, r.fail(ResolvingInput, KindThreshold, err)
	}
	if err := cfg.Validate(); err != nil {
		return r.result, r.fail(ResolvingInput, KindGeneric, errors.Wrap(err, "configuration"))
	}
	if r.toggles, err = cfg.Toggles(); err != nil {
		return r.result, r.fail(ResolvingInput, KindGeneric, err)
	}

	var surface *mesh.Mesh
	if d.MeshInput != "" {
		if err := r.enter(ResolvingInput); err != nil {
			return r.result, err
		}
		if surface, err = d.Surfaces.Read(d.MeshInput); err != nil {
			return r.result, r.fail(ResolvingInput, KindNoInput, err)
		}
		d.Log.WithField("polygons", surface.NumPolys()).Infof("read mesh %s", d.MeshInput)
	} else {
		vol, err := r.resolve()
		if err != nil {
			return r.result, err
		}
		if surface, err = r.volumeToSurface(vol, threshold, median); err != nil {
			return r.result, err
		}
	}

	if err := r.enter(FilteringMesh); err != nil {
		return r.result, err
	}
	surface, r.result.MeshStages, err = d.Meshes.Apply(surface, mesh.Options{
		Connectivity:     r.toggles.Enabled(config.Largest),
		SmallPartRatio:   cfg.Mesh.Small,
		SmoothIterations: cfg.Mesh.Smooth,
		Reduction:        cfg.Mesh.Reduce,
		Rotate:           r.toggles.Enabled(config.Rotation),
		Rotation:         mesh.Rotation{Axis: cfg.Mesh.RotAxis, Angle: cfg.Mesh.RotAngle},
	})
	if err != nil {
		return r.result, r.fail(FilteringMesh, KindMeshFilter, err)
	}
	r.result.Polygons = surface.NumPolys()

	if err := r.enter(WritingOutput); err != nil {
		return r.result, err
	}
	if err := r.write(surface); err != nil {
		return r.result, err
	}
	r.result.Trace = append(r.result.Trace, Done)
	return r.result, nil
}

// resolve reads the input, applies the modality gate and exports metadata.
func (r *run) resolve() (*models.Volume, error) {
	d, cfg := r.d, r.d.Config
	if err := r.enter(ResolvingInput); err != nil {
		return nil, err
	}
	start := time.Now()
	vol, modality, err := d.Resolver.Resolve(d.Inputs, cfg.Input.Temp)
	if err != nil {
		return nil, r.fail(ResolvingInput, KindNoInput, err)
	}
	r.result.Modality = modality
	d.Log.WithFields(logrus.Fields{
		"modality": modality,
		"elapsed":  time.Since(start),
	}).Infof("loaded %v", vol)

	if cfg.Input.CTOnly && !strings.Contains(modality, "CT") {
		return nil, r.fail(ResolvingInput, KindModality,
			errors.Errorf("modality %q is not CT", modality))
	}

	if cfg.Output.Meta != "" {
		if err := r.enter(ExportingMetadata); err != nil {
			return nil, err
		}
		if err := WriteMetadataFile(cfg.Output.Meta, vol); err != nil {
			return nil, r.fail(ExportingMetadata, KindWrite, err)
		}
	}
	return vol, nil
}

func (r *run) volumeToSurface(vol *models.Volume, threshold models.ThresholdSpec, median bool) (*mesh.Mesh, error) {
	d, cfg := r.d, r.d.Config
	if err := r.enter(FilteringVolume); err != nil {
		return nil, err
	}
	vol, report, err := d.Volumes.Apply(vol, volume.Options{
		Toggles:      r.toggles,
		Threshold:    threshold,
		MedianFilter: median,
	})
	if err != nil {
		return nil, r.fail(FilteringVolume, KindGeneric, err)
	}
	r.result.Volume = report
	r.reportImage(vol)
	if cfg.Output.PreviewDir != "" {
		r.preview(vol)
	}

	if err := r.enter(ExtractingSurface); err != nil {
		return nil, err
	}
	iso := cfg.Volume.IsoValue
	if report.Thresholded {
		if iso != volume.ThresholdIsoValue {
			d.Log.Debugf("iso-value %g replaced by %g after double threshold", iso, volume.ThresholdIsoValue)
		}
		iso = volume.ThresholdIsoValue
	}
	r.result.IsoValue = iso

	start := time.Now()
	surface, err := d.Surfaces.Extract(vol, iso)
	if err != nil {
		return nil, r.fail(ExtractingSurface, KindExtraction, err)
	}
	d.Log.WithFields(logrus.Fields{
		"polygons": surface.NumPolys(),
		"elapsed":  time.Since(start),
	}).Infof("surface extracted at %g", iso)
	return surface, nil
}

// reportImage logs the geometry and intensity statistics of the volume
// handed to surface extraction.
func (r *run) reportImage(vol *models.Volume) {
	stats := r.d.Volumes.Engine.Statistics(vol)
	r.d.Log.WithFields(logrus.Fields{
		"size":    vol.Dims,
		"type":    vol.PixelType,
		"spacing": vol.Spacing,
		"origin":  vol.Origin,
		"min":     stats.Min,
		"max":     stats.Max,
		"mean":    stats.Mean,
		"sigma":   stats.Sigma,
	}).Debug("image report")
}

func (r *run) preview(vol *models.Volume) {
	log := r.d.Log
	viewer, err := visualization.NewViewer(vol)
	if err != nil {
		log.WithError(err).Warn("cannot preview volume")
		return
	}
	viewer.Log = log
	files, err := viewer.SaveMidSlices(r.d.Config.Output.PreviewDir)
	if err != nil {
		log.WithError(err).Warn("cannot save preview slices")
		return
	}
	log.Infof("wrote %d preview slices to %s", len(files), r.d.Config.Output.PreviewDir)
}

func (r *run) write(surface *mesh.Mesh) error {
	d, path := r.d, r.d.Config.Output.Path
	if _, err := mesh.Format(path); err != nil {
		d.Log.WithError(err).Warnf("not writing %s, supported formats are %s", path, strings.Join(mesh.Formats, ", "))
		return nil
	}
	if err := d.Surfaces.Write(path, surface); err != nil {
		return r.fail(WritingOutput, KindWrite, err)
	}
	r.result.Output = path
	d.Log.WithField("polygons", surface.NumPolys()).Infof("wrote %s", path)
	return nil
}
