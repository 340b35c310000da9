// Package tissue maps semantic tissue names to CT double threshold bands.
package tissue

import (
	"strings"

	"dicom2mesh/internal/models"
)

// Rule is one row of the tissue table.
type Rule struct {
	Keyword   string
	Threshold models.ThresholdSpec
	Median    bool
}

// Table is ordered; the first rule whose keyword is contained in the label
// wins. Intensities are Hounsfield units.
var Table = []Rule{
	{Keyword: "bone", Threshold: models.ThresholdSpec{200, 800, 1300, 1500}},
	{Keyword: "skin", Threshold: models.ThresholdSpec{-200, 0, 500, 1500}},
	{Keyword: "soft", Threshold: models.ThresholdSpec{-15, 30, 58, 100}, Median: true},
	{Keyword: "fat", Threshold: models.ThresholdSpec{-122, -112, -96, -70}, Median: true},
}

// Names lists the tissue keywords in table order.
func Names() []string {
	names := make([]string, len(Table))
	for i, r := range Table {
		names[i] = r.Keyword
	}
	return names
}

// Lookup classifies label by substring (case-sensitive). Unknown labels
// return a nil threshold and no median recommendation. The returned
// threshold is a copy and may be modified by the caller.
func Lookup(label string) (models.ThresholdSpec, bool) {
	for _, r := range Table {
		if strings.Contains(label, r.Keyword) {
			return append(models.ThresholdSpec(nil), r.Threshold...), r.Median
		}
	}
	return nil, false
}
