package cachetests

import (
	"fmt"
	"strings"

	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/framework/opt"
	"github.com/memcashew/cache-test-harness/serverdef"
)

func doConcurrencyTests(t *mctest.T) {
	t.RequireCapability(serverdef.CapabilitySetGet)
	t.RequireCapability(serverdef.CapabilityConcurrentClients)

	c := requireContext(t)
	t.Run("round trips", func(t *mctest.T) {
		RunConcurrentRoundTrips(t, c.concurrency, c.pairs)
	})
}

// RunConcurrentRoundTrips runs one basic round trip per namespace 0..clients-1, each on its own
// goroutine with its own connection, and waits for all of them. The test fails if any instance
// failed, or if afterward any namespace's primary key holds something other than its own value.
func RunConcurrentRoundTrips(t *mctest.T, clients, pairs int) {
	actions := make([]mctest.ParallelAction, 0, clients)
	for i := 0; i < clients; i++ {
		ns := Namespace(i)
		actions = append(actions, mctest.ParallelAction{
			Name: fmt.Sprintf("client %d", i),
			Action: func(t *mctest.T) {
				client := NewCacheClient(t)
				RunBasicRoundTrip(t, client, ns, pairs)
			},
		})
	}

	results := t.RunParallel(actions...)

	var failed []string
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r.TestID.Last())
		}
	}
	if len(failed) != 0 {
		t.Errorf("%d of %d concurrent clients failed: %s", len(failed), clients, strings.Join(failed, ", "))
		t.FailNow()
	}

	t.Run("no leakage between namespaces", func(t *mctest.T) {
		client := NewCacheClient(t)
		for i := 0; i < clients; i++ {
			ns := Namespace(i)
			ExpectGetResult(t, ns.PrimaryKey(), client.Get(t, ns.PrimaryKey()), opt.Some(ns.PrimaryValue()))
		}
	})
}
