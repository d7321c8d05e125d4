// Package mctest contains a test runner framework that is similar to Go's testing package,
// but is run as regular Go application code rather than Go tests. It adds richer capabilities
// for configuration, logging and result reporting, and it can run sibling test scopes
// concurrently and join them.
package mctest
