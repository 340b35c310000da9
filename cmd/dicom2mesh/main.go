// Command dicom2mesh converts a DICOM series, a zip of DICOM files or a
// volume file into a simplified STL, PLY or VTK surface mesh.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/unixpickle/essentials"

	"dicom2mesh/pkg/config"
	"dicom2mesh/pkg/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(pipeline.ExitCode(err))
	}
}

// options holds everything the root command's flags write to.
type options struct {
	cfg        *config.Config
	configPath string
	meshInput  string
	directives []string
}

func newRootCmd() *cobra.Command {
	opts := &options{cfg: config.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "dicom2mesh [flags] files...",
		Short: "Convert medical volumes to surface meshes",
		Long: `dicom2mesh reads a zip of DICOM files, a directory (the largest series
wins), a single volume file (.mha, .mhd or DICOM) or a list of slice files,
filters the volume, extracts an iso-surface and writes a cleaned and
decimated mesh. The output format follows the extension: .stl, .ply or .vtk.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd.Flags()); err != nil {
				return err
			}
			setupLogging(opts.cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d := pipeline.NewDriver(opts.cfg, args, logrus.StandardLogger())
			d.MeshInput = opts.meshInput
			res, err := d.Run(ctx)
			if err != nil {
				return err
			}
			logrus.WithField("polygons", res.Polygons).Info("done")
			return nil
		},
	}
	opts.bind(cmd.Flags())
	essentials.Must(cmd.MarkFlagFilename("config", "yaml", "yml"))

	cmd.AddCommand(newPhantomCmd(), newInitConfigCmd())
	return cmd
}

func (o *options) bind(fs *pflag.FlagSet) {
	c := o.cfg
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file; flags given on the command line override it")
	fs.StringVar(&o.meshInput, "mesh-input", "", "skip the volume stages and filter this .stl, .ply or .vtk mesh")

	fs.CountVarP(&c.Output.Verbose, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	fs.BoolVar(&c.Output.Debug, "debug", c.Output.Debug, "debug logging with caller information")
	fs.StringVarP(&c.Output.Path, "output", "o", c.Output.Path, "output mesh file")
	fs.StringVarP(&c.Output.Meta, "meta", "m", c.Output.Meta, "write volume dimensions and spacing to this file")
	fs.StringVar(&c.Output.PreviewDir, "preview-dir", c.Output.PreviewDir, "save JPEG mid slices of the filtered volume here")

	fs.BoolVar(&c.Input.CTOnly, "ctonly", c.Input.CTOnly, "reject input whose modality is not CT")
	fs.BoolVar(&c.Input.Clean, "clean", c.Input.Clean, "remove the temp directory after extracting an archive")
	fs.StringVar(&c.Input.Temp, "temp", c.Input.Temp, "directory for archive extraction")
	fs.StringVar(&c.Input.Search, "search", c.Input.Search, "only use series whose description or ID contains this")
	fs.StringVar(&c.Input.DicomPattern, "pattern", c.Input.DicomPattern, "file name pattern for directory scans")

	fs.StringVarP(&c.Volume.Tissue, "tissue", "t", c.Volume.Tissue, "tissue preset: skin, bone, soft or fat")
	fs.Float64VarP(&c.Volume.IsoValue, "isovalue", "i", c.Volume.IsoValue, "iso-value for surface extraction")
	fs.StringVarP(&c.Volume.DoubleThreshold, "double", "d", c.Volume.DoubleThreshold, "double threshold t0;t1;t2;t3")

	fs.StringVar(&c.Mesh.RotAxis, "rotaxis", c.Mesh.RotAxis, "rotation axis: X, Y or Z")
	fs.Float64Var(&c.Mesh.RotAngle, "rotangle", c.Mesh.RotAngle, "rotation angle in degrees")
	fs.IntVar(&c.Mesh.Smooth, "smooth", c.Mesh.Smooth, "smoothing iterations")
	fs.Float64Var(&c.Mesh.Reduce, "reduce", c.Mesh.Reduce, "fraction of polygons to remove")
	fs.Float64Var(&c.Mesh.Small, "small", c.Mesh.Small, "drop parts smaller than this fraction of the largest")

	fs.Var(&directiveValue{list: &o.directives}, "enable", "enable a filter: "+filterNames())
	fs.Var(&directiveValue{list: &o.directives, prefix: "no"}, "disable", "disable a filter: "+filterNames())
}

// load merges the configuration file under the command line. Flags that
// were set explicitly win over the file; enable and disable directives are
// appended after the file's list.
func (o *options) load(fs *pflag.FlagSet) error {
	if o.configPath != "" {
		type setting struct {
			flag  *pflag.Flag
			value string
		}
		var changed []setting
		fs.Visit(func(f *pflag.Flag) {
			if _, ok := f.Value.(*directiveValue); !ok {
				changed = append(changed, setting{f, f.Value.String()})
			}
		})
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return &pipeline.FailureError{State: pipeline.ResolvingInput, Kind: pipeline.KindGeneric, Err: err}
		}
		*o.cfg = *loaded
		for _, s := range changed {
			if err := s.flag.Value.Set(s.value); err != nil {
				return err
			}
		}
	}
	o.cfg.Filters = append(o.cfg.Filters, o.directives...)
	return nil
}

func setupLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case cfg.Output.Verbose >= 2:
		logrus.SetLevel(logrus.TraceLevel)
	case cfg.Output.Verbose == 1 || cfg.Output.Debug:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.SetReportCaller(cfg.Output.Debug)
}
