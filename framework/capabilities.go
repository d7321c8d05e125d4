package framework

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Capabilities is a list of strings naming optional server behaviors that tests may depend on.
// The meanings of these strings are defined in package serverdef.
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	return slices.Contains(cs, name)
}

// Without returns a copy of the list with the named capabilities removed.
func (cs Capabilities) Without(names ...string) Capabilities {
	ret := make(Capabilities, 0, len(cs))
	for _, c := range cs {
		if !slices.Contains(names, c) {
			ret = append(ret, c)
		}
	}
	return ret
}

// String returns the capabilities as a comma-separated list.
func (cs Capabilities) String() string {
	return strings.Join(cs, ",")
}
