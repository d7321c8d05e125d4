package cachetests

import (
	"strings"
	"testing"
	"time"

	"github.com/memcashew/cache-test-harness/cacheclient"
	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/mockmc"
	"github.com/memcashew/cache-test-harness/serverdef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFakeServer(t *testing.T, options ...mockmc.ServerOption) *mockmc.Server {
	s, err := mockmc.Start("127.0.0.1:0", options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runSuite(t *testing.T, target Target, filter mctest.Filter, options SuiteOptions) mctest.Results {
	if options.Pairs == 0 {
		options.Pairs = 10
	}
	if options.OpTimeout == 0 {
		options.OpTimeout = time.Second
	}
	return RunCacheTestSuite(target, filter, nil, options)
}

func onlyTopLevel(name string) mctest.Filter {
	return mctest.FilterFunc(func(id mctest.TestID) bool { return id[0] == name })
}

func failedIDs(results mctest.Results) []string {
	var ret []string
	for _, f := range results.Failures {
		ret = append(ret, f.TestID.String())
	}
	return ret
}

func hasFailureUnder(results mctest.Results, prefix string) bool {
	for _, id := range failedIDs(results) {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func skippedIDs(results mctest.Results) []string {
	var ret []string
	for _, id := range results.Skipped {
		ret = append(ret, id.String())
	}
	return ret
}

func TestSuitePassesAgainstReferenceRules(t *testing.T) {
	s := startFakeServer(t)
	results := runSuite(t, s, nil, SuiteOptions{})

	assert.True(t, results.OK(), "failures: %v", failedIDs(results))
	assert.Len(t, results.Skipped, 0)

	var ids []string
	for _, r := range results.Tests {
		ids = append(ids, r.TestID.String())
	}
	assert.Contains(t, ids, "basic/round trip")
	assert.Contains(t, ids, "cas/write")
	assert.Contains(t, ids, "cas/delete")
	assert.Contains(t, ids, "concurrency/round trips/client 0")
	assert.Contains(t, ids, "concurrency/round trips/client 9")
	assert.Contains(t, ids, "concurrency/round trips/no leakage between namespaces")
	assert.Contains(t, ids, "scripts/cas fencing with token 999 (stale=1000,token=999)")
}

func TestSuiteUsesKeyPrefix(t *testing.T) {
	s := startFakeServer(t)
	results := runSuite(t, s, onlyTopLevel("basic"), SuiteOptions{KeyPrefix: "run-1:", Pairs: -1})
	require.True(t, results.OK(), "failures: %v", failedIDs(results))
	assert.Equal(t, 1, s.Keys())

	client := cacheClientFor(t, s)
	value, err := client.Get("run-1:key1-0")
	require.NoError(t, err)
	assert.Equal(t, "value1-0", value.Value())
}

func TestCASTestsFailWhenServerIgnoresTokens(t *testing.T) {
	s := startFakeServer(t, mockmc.IgnoreCAS())
	results := runSuite(t, s, onlyTopLevel("cas"), SuiteOptions{})

	assert.ElementsMatch(t, []string{"cas/write", "cas/delete"}, failedIDs(results))
}

func TestCASDeleteFailsWhenServerForgetsDeletes(t *testing.T) {
	s := startFakeServer(t, mockmc.ForgetDeletes())
	results := runSuite(t, s, onlyTopLevel("cas"), SuiteOptions{})

	assert.Equal(t, []string{"cas/delete"}, failedIDs(results))
}

func TestConcurrencyFailsWhenNamespacesCollide(t *testing.T) {
	// "key1-0" through "key1-9" all become "key1-".
	s := startFakeServer(t, mockmc.TruncateKeys(5))
	results := runSuite(t, s, onlyTopLevel("concurrency"), SuiteOptions{})

	assert.False(t, results.OK())
	assert.True(t, hasFailureUnder(results, "concurrency/round trips"), "failures: %v", failedIDs(results))
}

func TestConcurrencyRunsEveryClientAgainstSlowServer(t *testing.T) {
	s := startFakeServer(t, mockmc.Latency(time.Millisecond))
	results := runSuite(t, s, onlyTopLevel("concurrency"), SuiteOptions{Concurrency: 4, Pairs: 5})

	require.True(t, results.OK(), "failures: %v", failedIDs(results))
	var clients int
	for _, r := range results.Tests {
		if strings.HasPrefix(r.TestID.Last(), "client ") {
			clients++
		}
	}
	assert.Equal(t, 4, clients)
	// 4 namespaces of one primary pair plus 5 bulk pairs
	assert.Equal(t, 24, s.Keys())
}

func TestMissingCapabilitiesSkipTests(t *testing.T) {
	s := startFakeServer(t)
	capabilities := serverdef.AllCapabilities().Without(serverdef.CapabilityCASCreateAnyToken,
		serverdef.CapabilityConcurrentClients)
	results := runSuite(t, s, nil, SuiteOptions{Capabilities: capabilities})

	require.True(t, results.OK(), "failures: %v", failedIDs(results))
	skipped := skippedIDs(results)
	assert.Contains(t, skipped, "cas")
	assert.Contains(t, skipped, "concurrency")
	assert.Contains(t, skipped, "scripts/cas fencing with token 1 (stale=2,token=1)")
	assert.NotContains(t, skipped, "scripts/unconditional delete")
}

func TestCASDeleteRequiresItsOwnCapability(t *testing.T) {
	s := startFakeServer(t)
	capabilities := framework.Capabilities{serverdef.CapabilityCAS, serverdef.CapabilityCASCreateAnyToken}
	results := runSuite(t, s, onlyTopLevel("cas"), SuiteOptions{Capabilities: capabilities})

	require.True(t, results.OK(), "failures: %v", failedIDs(results))
	skipped := skippedIDs(results)
	assert.Contains(t, skipped, "cas/delete")
	assert.NotContains(t, skipped, "cas")
	assert.NotContains(t, skipped, "cas/write")
}

func TestSuiteFailsWhenServerIsUnreachable(t *testing.T) {
	s := startFakeServer(t, mockmc.RefuseConnections())
	results := runSuite(t, s, onlyTopLevel("basic"), SuiteOptions{})

	assert.Equal(t, []string{"basic/round trip"}, failedIDs(results))
}

func cacheClientFor(t *testing.T, s *mockmc.Server) *cacheclient.Client {
	client, err := cacheclient.Dial(cacheclient.Config{Address: s.Address(), Timeout: time.Second}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNamespacesAreDisjoint(t *testing.T) {
	seen := make(map[string]Namespace)
	for i := 0; i < 20; i++ {
		ns := Namespace(i)
		keys := []string{ns.PrimaryKey()}
		for x := 0; x < 20; x++ {
			keys = append(keys, ns.PairKey(x))
		}
		for _, k := range keys {
			if other, ok := seen[k]; ok {
				t.Fatalf("key %q is used by namespaces %d and %d", k, other, ns)
			}
			seen[k] = ns
		}
	}
	assert.Equal(t, "key_1_10", Namespace(1).PairKey(10))
	assert.NotEqual(t, Namespace(1).PairKey(10), Namespace(11).PairKey(0))
	assert.Equal(t, "value1-3", Namespace(3).PrimaryValue())
}

func TestScriptsHaveDistinctNamesAndPrefixes(t *testing.T) {
	var scripts []loadedScript
	mctest.Run(mctest.TestConfiguration{}, func(t *mctest.T) {
		scripts = getAllScripts(t, scriptsDataPath)
	})
	require.NotEmpty(t, scripts)

	names := make(map[string]bool)
	prefixes := make(map[string]bool)
	for _, s := range scripts {
		assert.False(t, names[s.testName], "duplicate name %q", s.testName)
		assert.False(t, prefixes[s.keyPrefix], "duplicate prefix %q", s.keyPrefix)
		assert.NotContains(t, s.keyPrefix, " ")
		names[s.testName] = true
		prefixes[s.keyPrefix] = true
	}
	assert.True(t, prefixes["independent-keys-3:"])
}
