package config

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Filter names a toggleable pipeline stage.
type Filter string

const (
	Shrink      Filter = "shrink"
	Anisotropic Filter = "anisotropic"
	Median      Filter = "median"
	Largest     Filter = "largest"
	Rotation    Filter = "rotation"
)

// Filters lists every toggleable filter.
var Filters = []Filter{Anisotropic, Shrink, Median, Largest, Rotation}

// ErrUnknownFilter is returned for directives that name no filter.
var ErrUnknownFilter = errors.New("unknown filter")

// prefixes accepted for each filter, matching the short forms users
// commonly type ("aniso", "large").
var filterPrefixes = map[Filter]string{
	Shrink:      "shrink",
	Anisotropic: "aniso",
	Median:      "median",
	Largest:     "large",
	Rotation:    "rot",
}

var filterDefaults = map[Filter]bool{
	Shrink:      true,
	Anisotropic: false,
	Median:      false,
	Largest:     false,
	Rotation:    false,
}

// FilterToggleSet records which optional filters are enabled. The zero value
// is not useful; build one with DefaultToggles or ParseToggles. Values are
// never modified after construction.
type FilterToggleSet struct {
	enabled map[Filter]bool
}

// DefaultToggles returns shrink on and everything else off.
func DefaultToggles() FilterToggleSet {
	t := FilterToggleSet{enabled: make(map[Filter]bool, len(filterDefaults))}
	for f, on := range filterDefaults {
		t.enabled[f] = on
	}
	return t
}

// ParseToggles applies directives left to right on top of the defaults.
// A "no" prefix disables; the last directive for a filter wins.
func ParseToggles(directives []string) (FilterToggleSet, error) {
	t := DefaultToggles()
	for _, raw := range directives {
		d := strings.TrimSpace(raw)
		on := true
		name := d
		if strings.HasPrefix(d, "no") {
			on = false
			name = d[2:]
		}
		f, ok := lookupFilter(name)
		if !ok {
			return FilterToggleSet{}, errors.Wrapf(ErrUnknownFilter, "directive %q", raw)
		}
		t.enabled[f] = on
	}
	return t, nil
}

// Enabled reports whether f is switched on.
func (t FilterToggleSet) Enabled(f Filter) bool {
	if t.enabled == nil {
		return filterDefaults[f]
	}
	return t.enabled[f]
}

// With returns a copy of t with f set to on.
func (t FilterToggleSet) With(f Filter, on bool) FilterToggleSet {
	out := DefaultToggles()
	for k, v := range t.enabled {
		out.enabled[k] = v
	}
	out.enabled[f] = on
	return out
}

func (t FilterToggleSet) String() string {
	var parts []string
	for _, f := range Filters {
		if t.Enabled(f) {
			parts = append(parts, string(f))
		} else {
			parts = append(parts, "no"+string(f))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func lookupFilter(name string) (Filter, bool) {
	if name == "" {
		return "", false
	}
	for _, f := range Filters {
		if strings.HasPrefix(name, filterPrefixes[f]) {
			return f, true
		}
	}
	return "", false
}
