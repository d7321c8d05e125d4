// Package framework contains the low-level implementation of test harness infrastructure
// that is not specific to any one cache server. The base package contains shared types such
// as Logger; other components are in the subpackages harness, mctest, helpers and opt.
//
// The general model is:
//
// 1. The test harness owns exactly one server-under-test for the whole run. It either launches
// the server executable itself or attaches to one that is already listening, and in both cases
// it does not start any tests until a real protocol round trip has succeeded.
//
// 2. Tests talk to the server only through protocol clients; the harness never inspects the
// server's state in any other way.
//
// 3. There is a general notion of a test scope which is similar to Go's testing.T, allowing
// pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. Scopes can be run concurrently and joined.
//
// The domain-specific code that knows what is being tested is responsible for the scenarios
// and for the client adapter.
package framework
