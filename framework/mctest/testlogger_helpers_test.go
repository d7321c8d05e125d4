package mctest

import (
	"sync"

	"github.com/memcashew/cache-test-harness/framework"
)

type recordingTestLogger struct {
	started  []string
	errors   map[string][]error
	finished []string
	skipped  map[string]string
	output   map[string]framework.CapturedOutput
	ended    bool
	lock     sync.Mutex
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.started = append(r.started, id.String())
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.errors == nil {
		r.errors = make(map[string][]error)
	}
	r.errors[id.String()] = append(r.errors[id.String()], err)
}

func (r *recordingTestLogger) TestFinished(id TestID, _ TestResult, debugOutput framework.CapturedOutput) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.output == nil {
		r.output = make(map[string]framework.CapturedOutput)
	}
	r.finished = append(r.finished, id.String())
	r.output[id.String()] = debugOutput
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.skipped == nil {
		r.skipped = make(map[string]string)
	}
	r.skipped[id.String()] = reason
}

func (r *recordingTestLogger) EndLog(Results) error {
	r.lock.Lock()
	r.ended = true
	r.lock.Unlock()
	return nil
}
