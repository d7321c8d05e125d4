// Package mockmc is an in-process cache server speaking the memcached binary protocol. It is
// used to test the harness itself: with default options it follows the reference CAS rules,
// and options can make it misbehave in ways the conformance suite is expected to catch.
package mockmc
