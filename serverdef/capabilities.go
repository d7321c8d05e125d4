package serverdef

import "github.com/memcashew/cache-test-harness/framework"

const (
	// CapabilitySetGet means the server stores and returns values with set and get.
	CapabilitySetGet = "set-get"

	// CapabilityCAS means set honors a nonzero CAS token.
	CapabilityCAS = "cas"

	// CapabilityCASDelete means delete honors a nonzero CAS token.
	CapabilityCASDelete = "cas-delete"

	// CapabilityCASCreateAnyToken means a CAS set of a key that does not exist succeeds and
	// leaves the key holding the supplied token. Servers that only create keys with a zero
	// token should be run without it.
	CapabilityCASCreateAnyToken = "cas-create-any-token"

	// CapabilityConcurrentClients means the server serves several connections at once.
	CapabilityConcurrentClients = "concurrent-clients"
)

// AllCapabilities returns every capability the test suite knows about, which is also the
// default set for a run.
func AllCapabilities() framework.Capabilities {
	return framework.Capabilities{
		CapabilitySetGet,
		CapabilityCAS,
		CapabilityCASDelete,
		CapabilityCASCreateAnyToken,
		CapabilityConcurrentClients,
	}
}
