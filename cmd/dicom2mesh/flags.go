package main

import (
	"strings"

	"dicom2mesh/pkg/config"
)

// directiveValue appends filter directives to a shared ordered list, so
// --enable and --disable interleave in command line order.
type directiveValue struct {
	list   *[]string
	prefix string
}

func (d *directiveValue) String() string {
	var own []string
	for _, v := range *d.list {
		if d.prefix == "" && !strings.HasPrefix(v, "no") {
			own = append(own, v)
		} else if d.prefix != "" && strings.HasPrefix(v, d.prefix) {
			own = append(own, strings.TrimPrefix(v, d.prefix))
		}
	}
	return "[" + strings.Join(own, ",") + "]"
}

func (d *directiveValue) Set(s string) error {
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		*d.list = append(*d.list, d.prefix+name)
	}
	return nil
}

func (d *directiveValue) Type() string {
	return "filter"
}

func filterNames() string {
	names := make([]string, len(config.Filters))
	for i, f := range config.Filters {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
