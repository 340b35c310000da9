package models

import "fmt"

// SeriesCandidate identifies one DICOM series found during a directory scan.
type SeriesCandidate struct {
	// ID is the SeriesInstanceUID shared by all members
	ID string

	// Dir is the directory the members were enumerated from
	Dir string

	// Files holds the member paths in slice order; never empty
	Files []string

	// Description is the SeriesDescription of the first member, if any
	Description string
}

// Size is the number of member files.
func (c SeriesCandidate) Size() int {
	return len(c.Files)
}

func (c SeriesCandidate) String() string {
	return fmt.Sprintf("%s %s (%d files)", c.ID, c.Dir, len(c.Files))
}

// ThresholdSpec is a four point double threshold t0 <= t1 <= t2 <= t3.
// Values in [t1, t2] are confident foreground; [t0, t1) and (t2, t3] extend
// connectivity; everything else is background.
type ThresholdSpec []float64

// Valid reports whether the threshold has exactly four values. Anything else is
// treated as an absent threshold.
func (t ThresholdSpec) Valid() bool {
	return len(t) == 4
}

// Ascending reports whether the four values are in non-decreasing order.
func (t ThresholdSpec) Ascending() bool {
	return t.Valid() && t[0] <= t[1] && t[1] <= t[2] && t[2] <= t[3]
}

// Narrow returns the confident foreground band.
func (t ThresholdSpec) Narrow() (lo, hi float64) {
	return t[1], t[2]
}

// Wide returns the connectivity extension band.
func (t ThresholdSpec) Wide() (lo, hi float64) {
	return t[0], t[3]
}
