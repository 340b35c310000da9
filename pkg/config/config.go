// Package config provides configuration loading and management for dicom2mesh.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/tissue"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input selection parameters
	Input struct {
		// Temp is the directory archives are extracted into; a fresh
		// directory is created when empty
		Temp string `yaml:"temp"`

		// Clean removes a user supplied Temp directory after loading
		Clean bool `yaml:"clean"`

		// Search restricts directory scans to series whose description
		// or ID contains this string
		Search string `yaml:"search"`

		// DicomPattern is the file name pattern used when scanning directories
		DicomPattern string `yaml:"dicomPattern"`

		// CTOnly rejects inputs whose modality is not CT
		CTOnly bool `yaml:"ctOnly"`
	} `yaml:"input"`

	// Volume filtering parameters
	Volume struct {
		// Tissue selects a preset double threshold (skin, bone, soft, fat)
		Tissue string `yaml:"tissue"`

		// IsoValue is the surface extraction level when no threshold is applied
		IsoValue float64 `yaml:"isoValue"`

		// DoubleThreshold is four semicolon separated values; overrides Tissue
		DoubleThreshold string `yaml:"doubleThreshold"`
	} `yaml:"volume"`

	// Mesh filtering parameters
	Mesh struct {
		// RotAxis is X, Y or Z
		RotAxis string `yaml:"rotAxis"`

		// RotAngle is in degrees
		RotAngle float64 `yaml:"rotAngle"`

		// Smooth is the number of smoothing iterations
		Smooth int `yaml:"smooth"`

		// Reduce is the fraction of polygons decimation aims to remove
		Reduce float64 `yaml:"reduce"`

		// Small discards parts smaller than this fraction of the largest part
		Small float64 `yaml:"small"`
	} `yaml:"mesh"`

	// Filters is an ordered list of enable/disable directives such as
	// "anisotropic" or "noshrink"; later entries win
	Filters []string `yaml:"filters,omitempty"`

	// Output parameters
	Output struct {
		// Path of the mesh file; the extension selects the format
		Path string `yaml:"path"`

		// Meta is an optional metadata side-file path
		Meta string `yaml:"meta"`

		// PreviewDir receives JPEG slices of the filtered volume when set
		PreviewDir string `yaml:"previewDir"`

		// Verbose controls the level of logging output
		Verbose int `yaml:"verbose"`

		// Debug enables caller reporting in log output
		Debug bool `yaml:"debug"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.DicomPattern = "*.dcm"

	cfg.Volume.IsoValue = 0.0

	cfg.Mesh.RotAxis = "Y"
	cfg.Mesh.RotAngle = 0.0
	cfg.Mesh.Smooth = 25
	cfg.Mesh.Reduce = 0.9
	cfg.Mesh.Small = 0.05

	cfg.Output.Path = "result.stl"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks value ranges. It does not touch the filesystem.
func (c *Config) Validate() error {
	if c.Mesh.Reduce < 0 || c.Mesh.Reduce > 1 {
		return errors.Errorf("mesh reduction %g is outside [0, 1]", c.Mesh.Reduce)
	}
	if c.Mesh.Small < 0 || c.Mesh.Small > 1 {
		return errors.Errorf("small part ratio %g is outside [0, 1]", c.Mesh.Small)
	}
	if c.Mesh.Smooth < 0 {
		return errors.Errorf("smoothing iterations must be non-negative, got %d", c.Mesh.Smooth)
	}
	if c.Output.Path == "" {
		return errors.New("output path is empty")
	}
	if c.Volume.Tissue != "" && !knownTissue(c.Volume.Tissue) {
		return errors.Errorf("unknown tissue type %q (want one of %s)",
			c.Volume.Tissue, strings.Join(tissue.Names(), ", "))
	}
	_, err := c.Toggles()
	return err
}

// Toggles builds the filter toggle set from the directive list. A non-zero
// rotation angle acts as an implicit leading "rotation" directive so that a
// later "norotation" still wins.
func (c *Config) Toggles() (FilterToggleSet, error) {
	directives := c.Filters
	if c.Mesh.RotAngle != 0 {
		directives = append([]string{string(Rotation)}, c.Filters...)
	}
	return ParseToggles(directives)
}

// Thresholds resolves the double threshold and the median recommendation.
// An explicit DoubleThreshold string overrides the tissue table.
func (c *Config) Thresholds() (models.ThresholdSpec, bool, error) {
	var th models.ThresholdSpec
	var median bool
	if c.Volume.Tissue != "" {
		th, median = tissue.Lookup(c.Volume.Tissue)
	}
	if c.Volume.DoubleThreshold != "" {
		explicit, err := ParseDoubleThreshold(c.Volume.DoubleThreshold)
		if err != nil {
			return nil, false, err
		}
		th = explicit
	}
	return th, median, nil
}

func knownTissue(label string) bool {
	th, _ := tissue.Lookup(label)
	return th != nil
}
