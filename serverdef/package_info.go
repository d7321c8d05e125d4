// Package serverdef describes the contract between the harness and the cache server under
// test: how the server executable is invoked, and the capability names that let a test run
// be narrowed to the behaviors a particular server implements.
package serverdef
