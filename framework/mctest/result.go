package mctest

import (
	"fmt"
	"strings"
	"time"
)

// Results is the outcome of a whole test run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestID
}

// TestResult is the outcome of one test scope.
type TestResult struct {
	TestID   TestID
	Errors   []error
	Skipped  bool
	Duration time.Duration
}

// OK returns true if no test failed.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Failed returns true if the test reported at least one error.
func (r TestResult) Failed() bool {
	return len(r.Errors) != 0
}

// TestID is the hierarchical name of a test; the root scope has an empty ID.
type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

// Plus returns a new TestID for a subtest of t; t itself is not modified.
func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

// Last returns the final component of the ID, or "" for the root.
func (t TestID) Last() string {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
