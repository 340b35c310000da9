package input

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// sliceNumber returns the first run of digits in the base name with leading
// zeros removed.
func sliceNumber(path string) (string, bool) {
	run := digitRun.FindString(filepath.Base(path))
	if run == "" {
		return "", false
	}
	run = strings.TrimLeft(run, "0")
	if run == "" {
		run = "0"
	}
	return run, true
}

// SortNumeric orders slice files by the first number in their base names,
// so IM2 comes before IM10. Names without digits follow all numbered names
// in lexicographic order. Equal keys keep their input order.
func SortNumeric(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := sliceNumber(out[i])
		b, bok := sliceNumber(out[j])
		switch {
		case aok && bok:
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return a < b
		case aok != bok:
			return aok
		}
		return filepath.Base(out[i]) < filepath.Base(out[j])
	})
	return out
}
