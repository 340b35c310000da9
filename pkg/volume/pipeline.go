package volume

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/config"
)

const (
	// TargetSize is the per axis size the shrink stage aims for.
	TargetSize = 256

	// Padding is added on every face before surface extraction.
	Padding = 5
)

// MedianRadius gives a 3x3 in-plane window that leaves z untouched.
var MedianRadius = [3]int{1, 1, 0}

// Options selects the stages of one Apply run.
type Options struct {
	Toggles config.FilterToggleSet

	// Threshold enables double threshold segmentation when it holds
	// exactly four values
	Threshold models.ThresholdSpec

	// MedianFilter forces the median stage on regardless of the toggles
	MedianFilter bool
}

// Report describes what Apply did.
type Report struct {
	// Thresholded is set when the double threshold stage ran; the surface
	// must then be extracted at ThresholdIsoValue
	Thresholded bool

	Stages        []string
	ShrinkFactors [3]int
	PadValue      float64
}

// ThresholdIsoValue is the iso-value used on double threshold output.
const ThresholdIsoValue = 64.0

// Pipeline runs the volume stages in a fixed order: shrink, anisotropic
// smoothing, double threshold, median, pad.
type Pipeline struct {
	Engine Engine
	Log    logrus.Ext1FieldLogger
}

// NewPipeline returns a pipeline over the pure Go filters.
func NewPipeline() *Pipeline {
	return &Pipeline{Engine: Filters{}, Log: logrus.StandardLogger()}
}

// ShrinkFactors returns ceil(n/TargetSize) per axis, at least 1.
func ShrinkFactors(dims [3]int) [3]int {
	var f [3]int
	for i, n := range dims {
		f[i] = int(math.Ceil(float64(n) / TargetSize))
		if f[i] < 1 {
			f[i] = 1
		}
	}
	return f
}

// NeedsShrink reports whether any factor is above one.
func NeedsShrink(factors [3]int) bool {
	return factors[0]+factors[1]+factors[2] > 3
}

// Apply runs the enabled stages and returns the prepared volume. The input
// volume is not modified.
func (p *Pipeline) Apply(vol *models.Volume, opts Options) (*models.Volume, Report, error) {
	var report Report
	if err := vol.Validate(); err != nil {
		return nil, report, errors.Wrap(err, "invalid input volume")
	}
	log := p.logger()

	if opts.Toggles.Enabled(config.Shrink) {
		factors := ShrinkFactors(vol.Dims)
		report.ShrinkFactors = factors
		if NeedsShrink(factors) {
			start := time.Now()
			out, err := p.Engine.Shrink(vol, factors)
			if err != nil {
				return nil, report, errors.Wrap(err, "shrink")
			}
			log.WithFields(logrus.Fields{"stage": "shrink", "elapsed": time.Since(start)}).
				Infof("shrink factors %v: %v -> %v", factors, vol.Dims, out.Dims)
			vol = out
			report.Stages = append(report.Stages, "shrink")
		}
	}

	if opts.Toggles.Enabled(config.Anisotropic) {
		start := time.Now()
		pixelType := vol.PixelType
		out, err := p.Engine.AnisotropicDiffusion(p.Engine.Cast(vol, models.Float32), DefaultDiffusion)
		if err != nil {
			return nil, report, errors.Wrap(err, "anisotropic smoothing")
		}
		vol = p.Engine.Cast(out, pixelType)
		log.WithFields(logrus.Fields{"stage": "anisotropic", "elapsed": time.Since(start)}).Info("anisotropic smoothing")
		report.Stages = append(report.Stages, "anisotropic")
	}

	if opts.Threshold.Valid() {
		if !opts.Threshold.Ascending() {
			log.Warnf("double threshold %v is not ascending", []float64(opts.Threshold))
		}
		start := time.Now()
		out, err := p.Engine.DoubleThreshold(vol, opts.Threshold)
		if err != nil {
			return nil, report, errors.Wrap(err, "double threshold")
		}
		vol = out
		report.Thresholded = true
		log.WithFields(logrus.Fields{"stage": "threshold", "elapsed": time.Since(start)}).
			Infof("double threshold %v", []float64(opts.Threshold))
		report.Stages = append(report.Stages, "threshold")
	}

	if opts.MedianFilter || opts.Toggles.Enabled(config.Median) {
		start := time.Now()
		out, err := p.Engine.Median(vol, MedianRadius)
		if err != nil {
			return nil, report, errors.Wrap(err, "median")
		}
		vol = out
		log.WithFields(logrus.Fields{"stage": "median", "elapsed": time.Since(start)}).Info("median filter")
		report.Stages = append(report.Stages, "median")
	}

	stats := p.Engine.Statistics(vol)
	pad := [3]int{Padding, Padding, Padding}
	if !vol.Is3D() {
		pad[2] = 0
	}
	out, err := p.Engine.ConstantPad(vol, pad, stats.Min)
	if err != nil {
		return nil, report, errors.Wrap(err, "pad")
	}
	report.PadValue = stats.Min
	report.Stages = append(report.Stages, "pad")
	log.WithField("stage", "pad").Debugf("padded with %g: %v", stats.Min, out.Dims)
	return out, report, nil
}

func (p *Pipeline) logger() logrus.Ext1FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}
