package pipeline

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"dicom2mesh/internal/models"
)

// roundSpacing rounds to three decimals and drops trailing zeros.
func roundSpacing(v float64) string {
	return strconv.FormatFloat(math.Floor(1000*v+0.5)/1000, 'f', -1, 64)
}

// FormatMetadata renders the dimension and spacing side-file, one
// "key value" pair per line.
func FormatMetadata(vol *models.Volume) string {
	var b strings.Builder
	for i, axis := range []string{"x", "y", "z"} {
		fmt.Fprintf(&b, "%sdimension %d\n", axis, vol.Dims[i])
	}
	for i, axis := range []string{"x", "y", "z"} {
		fmt.Fprintf(&b, "%sspacing %s\n", axis, roundSpacing(vol.Spacing[i]))
	}
	return b.String()
}

// WriteMetadataFile writes FormatMetadata(vol) to path.
func WriteMetadataFile(path string, vol *models.Volume) error {
	if err := os.WriteFile(path, []byte(FormatMetadata(vol)), 0644); err != nil {
		return errors.Wrap(err, "write metadata file")
	}
	return nil
}
