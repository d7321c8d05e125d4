package helpers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// TestContext is a minimal interface for types like *testing.T and *mctest.T representing a
// test that can fail. Functions can use this to avoid specific dependencies on those packages.
type TestContext interface {
	Errorf(msgFormat string, msgArgs ...interface{})
	FailNow()
}

// TestRecorder is a TestContext that only records what happened. It is used to verify that
// assertion helpers report failures without failing the enclosing Go test.
type TestRecorder struct {
	Errors     []string
	Terminated bool

	// PanicOnTerminate makes FailNow panic with the recorder itself, so that code after the
	// failing assertion does not run.
	PanicOnTerminate bool

	lock sync.Mutex
}

func (r *TestRecorder) Errorf(msgFormat string, msgArgs ...interface{}) {
	r.lock.Lock()
	r.Errors = append(r.Errors, fmt.Sprintf(msgFormat, msgArgs...))
	r.lock.Unlock()
}

func (r *TestRecorder) FailNow() {
	r.lock.Lock()
	r.Terminated = true
	r.lock.Unlock()
	if r.PanicOnTerminate {
		panic(r)
	}
}

// Err returns all recorded messages joined into one error, or nil if there were none.
func (r *TestRecorder) Err() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.Errors) == 0 {
		return nil
	}
	return errors.New(strings.Join(r.Errors, ", "))
}
