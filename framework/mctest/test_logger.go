package mctest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/memcashew/cache-test-harness/framework"

	"github.com/fatih/color"
)

var consoleTestErrorColor = color.New(color.FgYellow)              //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)                //nolint:gochecknoglobals
var consoleTestSkippedColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals
var consoleDebugOutputColor = color.New(color.Faint)               //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals

// TestLogger receives progress events for every test scope. Implementations must be safe for
// concurrent use, since subtests started by RunParallel report from their own goroutines.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput)
	TestSkipped(id TestID, reason string)
	EndLog(results Results) error
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                        {}
func (n nullTestLogger) TestError(TestID, error)                                   {}
func (n nullTestLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                                {}
func (n nullTestLogger) EndLog(Results) error                                      { return nil }

// ConsoleTestLogger writes human-readable progress to standard output, or to Out if set.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
	Out                  io.Writer
	lock                 sync.Mutex
}

func (c *ConsoleTestLogger) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *ConsoleTestLogger) TestStarted(id TestID) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintf(c.out(), "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id TestID, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	lines := strings.Split(err.Error(), "\n")
	_, _ = consoleTestErrorColor.Fprintf(c.out(), "  [%s] %s\n", id, lines[0])
	for _, line := range lines[1:] {
		_, _ = consoleTestErrorColor.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	c.lock.Lock()
	defer c.lock.Unlock()
	failed := result.Failed()
	if failed {
		_, _ = consoleTestFailedColor.Fprintf(c.out(), "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		_, _ = consoleDebugOutputColor.Fprintln(c.out(), debugOutput.ToString("    DEBUG "))
	}
}

func (c *ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if reason == "" {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s\n", id)
	} else {
		_, _ = consoleTestSkippedColor.Fprintf(c.out(), "  SKIPPED: %s (%s)\n", id, reason)
	}
}

// EndLog prints the summary of the run.
func (c *ConsoleTestLogger) EndLog(results Results) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if results.OK() {
		_, _ = allTestsPassedColor.Fprintf(c.out(), "All tests passed (%d run, %d skipped)\n",
			len(results.Tests), len(results.Skipped))
		return nil
	}
	_, _ = consoleTestFailedColor.Fprintf(c.out(), "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		_, _ = consoleTestFailedColor.Fprintf(c.out(), "  * %s\n", f.TestID)
	}
	return nil
}

// MultiTestLogger forwards every event to each of its loggers in order.
type MultiTestLogger struct {
	Loggers []TestLogger
}

func (m MultiTestLogger) TestStarted(id TestID) {
	for _, l := range m.Loggers {
		l.TestStarted(id)
	}
}

func (m MultiTestLogger) TestError(id TestID, err error) {
	for _, l := range m.Loggers {
		l.TestError(id, err)
	}
}

func (m MultiTestLogger) TestFinished(id TestID, result TestResult, debugOutput framework.CapturedOutput) {
	for _, l := range m.Loggers {
		l.TestFinished(id, result, debugOutput)
	}
}

func (m MultiTestLogger) TestSkipped(id TestID, reason string) {
	for _, l := range m.Loggers {
		l.TestSkipped(id, reason)
	}
}

// EndLog calls EndLog on every logger, and returns the first error.
func (m MultiTestLogger) EndLog(results Results) error {
	var first error
	for _, l := range m.Loggers {
		if err := l.EndLog(results); err != nil && first == nil {
			first = err
		}
	}
	return first
}
