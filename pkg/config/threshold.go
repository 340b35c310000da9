package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"dicom2mesh/internal/models"
)

// ErrBadThresholdCount is returned when a double threshold string does not
// hold exactly four numbers.
var ErrBadThresholdCount = errors.New("double threshold needs exactly 4 values")

// ParseDoubleThreshold parses "t0;t1;t2;t3". Values are kept in the order
// given. Empty fields and non-numeric tokens are reported as a bad count so
// the caller sees a single configuration failure kind.
func ParseDoubleThreshold(s string) (models.ThresholdSpec, error) {
	words := strings.Split(s, ";")
	th := make(models.ThresholdSpec, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		v, err := cast.ToFloat64E(w)
		if w == "" || err != nil {
			return nil, errors.Wrapf(ErrBadThresholdCount, "invalid value %q in %q", w, s)
		}
		th = append(th, v)
	}
	if !th.Valid() {
		return nil, errors.Wrapf(ErrBadThresholdCount, "got %d values in %q", len(th), s)
	}
	return th, nil
}
