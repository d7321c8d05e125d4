package cachetests

import (
	"github.com/memcashew/cache-test-harness/cacheclient"
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/framework/opt"

	"github.com/stretchr/testify/require"
)

// CacheClient is a protocol client connected to the server under test, controlled by test logic.
// Every key passed to its methods is scoped with the run's key prefix.
type CacheClient struct {
	client    *cacheclient.Client
	keyPrefix string
}

// NewCacheClient opens a client connection to the server under test.
//
// The first parameter should be the current test scope. Any error in creating the client will
// cause the test to fail and terminate immediately. The client logs every operation and its
// result to this scope's debug output.
//
// The object's lifecycle is tied to the test scope that created it; it will be automatically
// closed when this test scope exits, whether the test passed, failed or was skipped.
func NewCacheClient(t *mctest.T) *CacheClient {
	c := requireContext(t)
	client, err := cacheclient.Dial(
		cacheclient.Config{Address: c.address, Timeout: c.opTimeout},
		t.DebugLogger(),
	)
	require.NoError(t, err)

	t.Defer(func() {
		_ = client.Close()
	})

	return &CacheClient{client: client, keyPrefix: c.keyPrefix}
}

// Set stores a value unconditionally and returns whether the server accepted it.
//
// Any transport error causes the test to terminate immediately. The same is true of the other
// CacheClient methods.
func (c *CacheClient) Set(t *mctest.T, key, value string) bool {
	ok, err := c.client.Set(c.keyPrefix+key, value)
	require.NoError(t, err)
	return ok
}

// CAS stores a value only if token matches the key's current token.
func (c *CacheClient) CAS(t *mctest.T, key, value string, token uint64) bool {
	ok, err := c.client.CAS(c.keyPrefix+key, value, token)
	require.NoError(t, err)
	return ok
}

func (c *CacheClient) Get(t *mctest.T, key string) opt.Maybe[string] {
	value, err := c.client.Get(c.keyPrefix + key)
	require.NoError(t, err)
	return value
}

// Delete removes a key. A zero token deletes unconditionally.
func (c *CacheClient) Delete(t *mctest.T, key string, token uint64) bool {
	ok, err := c.client.Delete(c.keyPrefix+key, token)
	require.NoError(t, err)
	return ok
}

// EnsureAbsent deletes a key left over from an earlier run. Either outcome of the delete is fine.
func (c *CacheClient) EnsureAbsent(t *mctest.T, key string) {
	_ = c.Delete(t, key, 0)
}
