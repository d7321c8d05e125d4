package mctest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/memcashew/cache-test-harness/framework"

	"golang.org/x/exp/slices"
)

// Filter determines whether to run a specific test or not.
type Filter interface {
	Match(id TestID) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(TestID) bool

func (f FilterFunc) Match(id TestID) bool { return f(id) }

// SelfDescribingFilter is a Filter that can explain, before the run, what it is going to skip.
type SelfDescribingFilter interface {
	Filter
	Describe(out io.Writer, supportedCapabilities, allCapabilities framework.Capabilities)
}

// RegexFilters is the Filter built from the -run and -skip command-line options.
type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

func (r RegexFilters) Match(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(id, true)) &&
		!r.MustNotMatch.AnyMatch(id, false)
}

// Describe prints the filter criteria, and any capabilities the server was configured without.
func (r RegexFilters) Describe(out io.Writer, supportedCapabilities, allCapabilities framework.Capabilities) {
	if r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined() {
		fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
		if r.MustMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any not matching %s\n", r.MustMatch)
		}
		if r.MustNotMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any matching %s\n", r.MustNotMatch)
		}
		fmt.Fprintln(out)
	}

	var missing []string
	for _, c := range allCapabilities {
		if !slices.Contains(supportedCapabilities, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintln(out, "Some tests may be skipped because the server is not configured with the following capabilities:")
		fmt.Fprintf(out, "  %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(out)
	}
}

// TestIDPattern matches a TestID component by component; "a/b" matches any ID whose first
// component matches "a" and whose second matches "b".
type TestIDPattern []*regexp.Regexp

// Match tests the pattern against id. If includeParents is true, an ID that is shorter than the
// pattern matches when all of its components do, so that parents of selected tests still run.
func (p TestIDPattern) Match(id TestID, includeParents bool) bool {
	n := len(p)
	if n > len(id) {
		if !includeParents {
			return false
		}
		n = len(id)
	}
	for i := 0; i < n; i++ {
		if !p[i].MatchString(id[i]) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

func ParseTestIDPattern(s string) (TestIDPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(TestIDPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

// TestIDPatternList is a flag.Value collecting repeated pattern options.
type TestIDPatternList []TestIDPattern

func (l TestIDPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

func (l TestIDPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l TestIDPatternList) AnyMatch(id TestID, includeParents bool) bool {
	for _, p := range l {
		if p.Match(id, includeParents) {
			return true
		}
	}
	return false
}
