package cachetests

import (
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/serverdef"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"
)

func doBasicTests(t *mctest.T) {
	t.RequireCapability(serverdef.CapabilitySetGet)
	t.Run("round trip", func(t *mctest.T) {
		client := NewCacheClient(t)
		RunBasicRoundTrip(t, client, Namespace(0), requireContext(t).pairs)
	})
}

// RunBasicRoundTrip writes the primary pair of ns and then the bulk pairs, reading each value
// back right after writing it. The first mismatch terminates the calling test.
func RunBasicRoundTrip(t *mctest.T, client *CacheClient, ns Namespace, pairs int) {
	t.Helper()
	roundTrip(t, client, ns.PrimaryKey(), ns.PrimaryValue())
	for x := 0; x < pairs; x++ {
		roundTrip(t, client, ns.PairKey(x), ns.PairValue(x))
	}
}

func roundTrip(t *mctest.T, client *CacheClient, key, value string) {
	t.Helper()
	require.True(t, client.Set(t, key, value), "set(%s) was refused", key)
	m.In(t).Require(client.Get(t, key), HasValue(value))
}
