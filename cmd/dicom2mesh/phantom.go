package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dicom2mesh/internal/models"
	"dicom2mesh/pkg/config"
	"dicom2mesh/pkg/imageio"
	"dicom2mesh/pkg/phantom"
)

func newPhantomCmd() *cobra.Command {
	var (
		shape     string
		dim       int
		pixelType string
		spacing   float64
		modality  string
		series    bool
	)
	cmd := &cobra.Command{
		Use:   "phantom [flags] output",
		Short: "Write a synthetic test volume",
		Long: `phantom writes a tetra (four Gaussian blobs) or cylinder volume, either
as a MetaImage (.mha) file or, with --series, as a directory of DICOM slices.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := models.ParsePixelType(pixelType)
			if err != nil {
				return err
			}
			if dim < 2 {
				return errors.Errorf("dimension %d is too small", dim)
			}
			var vol *models.Volume
			switch shape {
			case "tetra":
				vol = phantom.Tetra(dim, pt)
			case "cylinder":
				vol = phantom.Cylinder(dim, pt)
			default:
				return errors.Errorf("unknown phantom shape %q", shape)
			}
			vol.Spacing = [3]float64{spacing, spacing, spacing}
			vol.Metadata[models.ModalityTag] = modality

			out := args[0]
			if series {
				files, err := phantom.WriteDicomSeries(vol, out, phantom.SeriesOptions{
					Modality:    modality,
					Description: fmt.Sprintf("%s phantom", shape),
				})
				if err != nil {
					return err
				}
				logrus.Infof("wrote %d slices to %s", len(files), out)
				return nil
			}
			if strings.ToLower(filepath.Ext(out)) != ".mha" {
				return errors.Errorf("phantom volumes are written as .mha, got %q", out)
			}
			if err := imageio.WriteImage(out, vol); err != nil {
				return err
			}
			logrus.Infof("wrote %v to %s", vol, out)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&shape, "shape", "tetra", "tetra or cylinder")
	fs.IntVar(&dim, "dim", 64, "voxels per axis")
	fs.StringVar(&pixelType, "type", string(models.UInt8), "pixel type")
	fs.Float64Var(&spacing, "spacing", 1, "voxel spacing in mm")
	fs.StringVar(&modality, "modality", "CT", "modality tag")
	fs.BoolVar(&series, "series", false, "write a DICOM series directory instead of .mha")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config path",
		Short: "Write the default configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			logrus.Infof("wrote default configuration to %s", args[0])
			return nil
		},
	}
}
