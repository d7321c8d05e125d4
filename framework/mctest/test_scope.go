package mctest

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/memcashew/cache-test-harness/framework"
)

type environment struct {
	config  TestConfiguration
	results Results
	lock    sync.Mutex
}

func (e *environment) record(result TestResult) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if result.Failed() {
		e.results.Failures = append(e.results.Failures, result)
	}
	e.results.Tests = append(e.results.Tests, result)
}

func (e *environment) recordSkip(id TestID) {
	e.lock.Lock()
	e.results.Skipped = append(e.results.Skipped, id)
	e.lock.Unlock()
}

// T represents a test scope. It is very similar to Go's testing.T type.
//
// A T is used by one goroutine at a time. Concurrent work gets its own scope from RunParallel.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	cleanups    []func()
	errors      []error
	helperFns   []string
	lock        sync.Mutex
}

// TestConfiguration contains options for the entire test run.
type TestConfiguration struct {
	// Filter is an optional function for determining which tests to run based on their names.
	Filter Filter

	// TestLogger receives status information about each test.
	TestLogger TestLogger

	// Context is an optional value of any type defined by the application which can be accessed from tests.
	Context interface{}

	// Capabilities is a list of strings which are used by T.HasCapability and T.RequireCapability.
	Capabilities framework.Capabilities
}

// ParallelAction is one subtest passed to RunParallel.
type ParallelAction struct {
	Name   string
	Action func(*T)
}

// Run starts a top-level test scope.
func Run(
	config TestConfiguration,
	action func(*T),
) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	env := &environment{
		config: config,
	}
	t := &T{env: env}
	t.run(action)
	return env.results
}

func (t *T) run(action func(*T)) (result TestResult) {
	result.TestID = t.id
	started := time.Now()
	defer func() {
		if r := recover(); r != nil && !t.skipped {
			var addError error
			if _, ok := r.(*T); ok {
				if len(t.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			t.lock.Lock()
			t.failed = true
			if addError != nil {
				t.errors = append(t.errors, addError)
			}
			t.lock.Unlock()
			if addError != nil {
				t.env.config.TestLogger.TestError(t.id, addError)
			}
		}
		// Cleanups run after the test body on every exit path, including skips.
		for i := len(t.cleanups) - 1; i >= 0; i-- {
			t.runCleanup(t.cleanups[i])
		}
		result.Duration = time.Since(started)
		if t.skipped {
			result.Skipped = true
			t.env.recordSkip(t.id)
			return
		}
		t.lock.Lock()
		result.Errors = append([]error(nil), t.errors...)
		t.lock.Unlock()
		t.env.record(result)
	}()

	action(t)
	return result
}

func (t *T) runCleanup(cleanupFn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.Debug("cleanup function panicked: %+v", r)
		}
	}()
	cleanupFn()
}

// ID returns the full name of the current test.
func (t *T) ID() TestID {
	return t.id
}

// Run runs a subtest in its own scope.
//
// This is equivalent to Go's testing.T.Run.
func (t *T) Run(name string, action func(*T)) {
	_ = t.runSubtest(name, action)
}

// RunParallel runs each action as a subtest on its own goroutine, and blocks until all of them
// have finished. It returns the result of every action in the order they were given; an action
// that was excluded by the filter or skipped has Skipped set.
//
// A failure in one action does not stop the others. RunParallel does not itself mark t as
// failed; callers decide how to aggregate.
func (t *T) RunParallel(actions ...ParallelAction) []TestResult {
	results := make([]TestResult, len(actions))
	var wg sync.WaitGroup
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a ParallelAction) {
			defer wg.Done()
			results[i] = t.runSubtest(a.Name, a.Action)
		}(i, a)
	}
	wg.Wait()
	return results
}

func (t *T) runSubtest(name string, action func(*T)) TestResult {
	id := t.id.Plus(name)
	logger := t.env.config.TestLogger

	logger.TestStarted(id)
	if t.env.config.Filter != nil && !t.env.config.Filter.Match(id) {
		logger.TestSkipped(id, "excluded by filter parameters")
		t.env.recordSkip(id)
		return TestResult{TestID: id, Skipped: true}
	}
	c1 := &T{
		id:  id,
		env: t.env,
	}
	t.debugLogger.AddChildLogger(&c1.debugLogger) // see comments on t.DebugLogger()
	result := c1.run(action)
	t.debugLogger.RemoveChildLogger(&c1.debugLogger)
	if c1.skipped {
		logger.TestSkipped(id, c1.skipReason)
	} else {
		logger.TestFinished(id, result, c1.debugLogger.Output())
	}
	return result
}

// Errorf reports a test failure. It is equivalent to Go's testing.T.Errorf. It does not cause the test
// to terminate, but adds the failure message to the output and marks the test as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) Errorf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)

	t.lock.Lock()
	stacktrace := getStacktrace(false, t.helperFns)
	err = transformError(err, stacktrace)
	t.failed = true
	t.errors = append(t.errors, err)
	t.lock.Unlock()

	t.env.config.TestLogger.TestError(t.id, err)
}

// Failed returns true if the test has failed so far.
func (t *T) Failed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.failed
}

// FailNow causes the test to immediately terminate and be marked as failed.
//
// You will rarely use this method directly; it is part of this type's implementation of the base
// interfaces testing.T and assert.TestingT, allowing it to be called from assertion helpers.
func (t *T) FailNow() {
	panic(t)
}

// Skip causes the test to immediately terminate and be marked as skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason is equivalent to Skip but provides a message.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// Debug writes a message to the output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger instance for writing output for this test scope.
//
// The output that is captured for a test will be passed to TestLogger.TestFinished at the end of
// the test. The test runner can choose whether to display this or not based on command-line options.
//
// When a test has subtests, the logger for a subtest starts out with a copy of any output that
// was already logged for the parent test. During the lifetime of the subtest, any further output
// that is sent to the parent test's logger will go to the child test's logger instead; with
// RunParallel, it goes to every running child.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Defer schedules a cleanup function which is guaranteed to be called when this test scope
// exits for any reason. Unlike a Go defer statement, Defer can be used from within helper
// functions.
func (t *T) Defer(cleanupFn func()) {
	t.cleanups = append(t.cleanups, cleanupFn)
}

// Context returns the application-defined context value, if any, that was specified in the
// TestConfiguration.
func (t *T) Context() interface{} {
	return t.env.config.Context
}

// Capabilities returns the capabilities configured for the server under test.
func (t *T) Capabilities() framework.Capabilities {
	return append(framework.Capabilities(nil), t.env.config.Capabilities...)
}

// HasCapability returns true if the server under test is configured with the named capability.
func (t *T) HasCapability(name string) bool {
	return t.env.config.Capabilities.Has(name)
}

// RequireCapability causes the test to be skipped if HasCapability(name) returns false.
func (t *T) RequireCapability(name string) {
	if !t.HasCapability(name) {
		t.SkipWithReason(fmt.Sprintf("server does not have capability %q", name))
	}
}

// Helper marks the function that calls it as a test helper that shouldn't appear in stacktraces.
// Equivalent to Go's testing.T.Helper().
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1) // 0 is Helper() itself, 1 is who called it
	if !ok {
		return
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return
	}
	t.lock.Lock()
	t.helperFns = append(t.helperFns, f.Name())
	t.lock.Unlock()
}
