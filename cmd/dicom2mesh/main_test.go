package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/config"
	"dicom2mesh/pkg/imageio"
	"dicom2mesh/pkg/phantom"
	"dicom2mesh/pkg/pipeline"
)

func parse(t *testing.T, args ...string) *options {
	t.Helper()
	opts := &options{cfg: config.DefaultConfig()}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.bind(fs)
	require.NoError(t, fs.Parse(args))
	require.NoError(t, opts.load(fs))
	return opts
}

func TestDirectivesKeepCommandLineOrder(t *testing.T) {
	opts := parse(t, "--enable", "aniso", "--disable", "shrink", "--enable", "median,largest", "--disable", "aniso")
	assert.Equal(t, []string{"aniso", "noshrink", "median", "largest", "noaniso"}, opts.cfg.Filters)

	toggles, err := opts.cfg.Toggles()
	require.NoError(t, err)
	assert.False(t, toggles.Enabled(config.Anisotropic))
	assert.False(t, toggles.Enabled(config.Shrink))
	assert.True(t, toggles.Enabled(config.Median))
	assert.True(t, toggles.Enabled(config.Largest))
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Mesh.Smooth = 7
	cfg.Mesh.Reduce = 0.5
	cfg.Filters = []string{"median"}
	require.NoError(t, config.SaveConfig(cfg, path))

	opts := parse(t, "--config", path, "--smooth", "3", "-vv", "--disable", "median")
	assert.Equal(t, 3, opts.cfg.Mesh.Smooth)
	assert.Equal(t, 0.5, opts.cfg.Mesh.Reduce)
	assert.Equal(t, 2, opts.cfg.Output.Verbose)
	assert.Equal(t, []string{"median", "nomedian"}, opts.cfg.Filters)
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	opts := parse(t)
	assert.Equal(t, config.DefaultConfig(), opts.cfg)
}

func TestPhantomAndConvert(t *testing.T) {
	if testing.Short() {
		t.Skip("end to end run")
	}
	dir := t.TempDir()
	volume := filepath.Join(dir, "tetra.mha")

	root := newRootCmd()
	root.SetArgs([]string{"phantom", "--dim", "24", "--modality", "MR", volume})
	require.NoError(t, root.Execute())

	vol, err := imageio.ReadImage(volume, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]int{24, 24, 24}, vol.Dims)
	assert.Equal(t, "MR", vol.Metadata[models.ModalityTag])

	out := filepath.Join(dir, "tetra.ply")
	root = newRootCmd()
	root.SetArgs([]string{"-i", "100", "--smooth", "2", "-o", out, volume})
	require.NoError(t, root.Execute())
	assert.FileExists(t, out)

	root = newRootCmd()
	root.SetArgs([]string{"--ctonly", "-o", out, volume})
	err = root.Execute()
	assert.Equal(t, 1, pipeline.ExitCode(err))
}

func TestRootTakesInputPaths(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "sphere.mha")
	require.NoError(t, imageio.WriteImage(in, phantom.Sphere(24, 7, 200, 0, models.UInt8)))

	out := filepath.Join(dir, "sphere.stl")
	root := newRootCmd()
	root.SetArgs([]string{"-i", "100", "-o", out, in})
	require.NoError(t, root.Execute())
	assert.FileExists(t, out)

	// a path that matches nothing reaches the driver and fails as missing input
	root = newRootCmd()
	root.SetArgs([]string{"-o", out, filepath.Join(dir, "missing", "*.dcm")})
	assert.Equal(t, 4, pipeline.ExitCode(root.Execute()))
}

func TestPhantomSeries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "series")
	root := newRootCmd()
	root.SetArgs([]string{"phantom", "--series", "--shape", "cylinder", "--dim", "8", dir})
	require.NoError(t, root.Execute())

	files, err := filepath.Glob(filepath.Join(dir, "*.dcm"))
	require.NoError(t, err)
	assert.Len(t, files, 8)
}

func TestPhantomRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{"phantom", "--shape", "cube", filepath.Join(dir, "a.mha")},
		{"phantom", "--type", "complex", filepath.Join(dir, "a.mha")},
		{"phantom", filepath.Join(dir, "a.nii")},
	} {
		root := newRootCmd()
		root.SetArgs(args)
		assert.Error(t, root.Execute(), "%v", args)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dicom2mesh.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"init-config", path})
	require.NoError(t, root.Execute())

	_, err := os.Stat(path)
	require.NoError(t, err)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}
