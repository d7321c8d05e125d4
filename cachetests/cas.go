package cachetests

import (
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/serverdef"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const casKey = "key1"

func doCASTests(t *mctest.T) {
	t.RequireCapability(serverdef.CapabilityCAS)
	// Both scenarios create the key with an arbitrary nonzero token.
	t.RequireCapability(serverdef.CapabilityCASCreateAnyToken)

	t.Run("write", RunCASWrite)
	t.Run("delete", func(t *mctest.T) {
		t.RequireCapability(serverdef.CapabilityCASDelete)
		RunCASDelete(t)
	})
}

// RunCASWrite checks that a write with the key's current token succeeds and that a write with
// any other token is rejected without changing the value.
func RunCASWrite(t *mctest.T) {
	client := NewCacheClient(t)
	token := serverdef.ReferenceCASToken
	client.EnsureAbsent(t, casKey)

	require.True(t, client.CAS(t, casKey, "value1", token), "cas on a new key was refused")
	m.In(t).Require(client.Get(t, casKey), HasValue("value1"))

	require.True(t, client.CAS(t, casKey, "value2", token), "cas with the current token was refused")
	m.In(t).Require(client.Get(t, casKey), HasValue("value2"))

	assert.False(t, client.CAS(t, casKey, "value3", token+1), "cas with a stale token was accepted")
	m.In(t).Assert(client.Get(t, casKey), HasValue("value2"))
}

// RunCASDelete checks that a delete with a mismatching token is rejected and that a delete with
// the current token removes the key.
func RunCASDelete(t *mctest.T) {
	client := NewCacheClient(t)
	token := serverdef.ReferenceCASToken
	client.EnsureAbsent(t, casKey)

	require.True(t, client.CAS(t, casKey, "value1", token), "cas on a new key was refused")
	m.In(t).Require(client.Get(t, casKey), HasValue("value1"))

	require.False(t, client.Delete(t, casKey, token+1), "delete with a stale token was accepted")
	m.In(t).Require(client.Get(t, casKey), HasValue("value1"))

	require.True(t, client.Delete(t, casKey, token), "delete with the current token was refused")
	m.In(t).Assert(client.Get(t, casKey), IsNotFound())
}
