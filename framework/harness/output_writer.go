package harness

import (
	"bytes"
	"regexp"
	"sync"

	"github.com/memcashew/cache-test-harness/framework"
)

// outputWriter receives the server's stdout and stderr. Each complete line is sent to the
// logger with a prefix unless it matches one of the exclude patterns. The most recent lines are
// kept, excluded or not, so that a failed startup can show what the server printed.
type outputWriter struct {
	logger       framework.Logger
	prefix       string
	excludeRegex []*regexp.Regexp
	partial      []byte
	tail         []string
	tailSize     int
	lock         sync.Mutex
}

func newOutputWriter(logger framework.Logger, prefix string, excludeRegex []*regexp.Regexp, tailSize int) *outputWriter {
	return &outputWriter{logger: logger, prefix: prefix, excludeRegex: excludeRegex, tailSize: tailSize}
}

func (w *outputWriter) Write(data []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.partial = append(w.partial, data...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(bytes.TrimRight(w.partial[:i], "\r")))
		w.partial = w.partial[i+1:]
	}
	return len(data), nil
}

// flush emits any final line that had no trailing newline.
func (w *outputWriter) flush() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (w *outputWriter) emit(line string) {
	if w.tailSize > 0 {
		if len(w.tail) == w.tailSize {
			w.tail = w.tail[1:]
		}
		w.tail = append(w.tail, line)
	}
	for _, r := range w.excludeRegex {
		if r.MatchString(line) {
			return
		}
	}
	w.logger.Printf("%s%s", w.prefix, line)
}

func (w *outputWriter) lastLines() []string {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]string(nil), w.tail...)
}
