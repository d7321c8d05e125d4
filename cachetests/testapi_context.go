package cachetests

import (
	"time"

	"github.com/memcashew/cache-test-harness/framework/mctest"
)

// CacheTestContext is shared by every test scope of one suite run.
type CacheTestContext struct {
	address     string
	keyPrefix   string
	opTimeout   time.Duration
	concurrency int
	pairs       int
}

func requireContext(t *mctest.T) CacheTestContext {
	if c, ok := t.Context().(CacheTestContext); ok {
		return c
	}
	panic("CacheTestContext was not included in the global test configuration!" +
		" This is a basic mistake in the initialization logic.")
}
