// Package cachetests contains the cache protocol scenarios.
//
// Tests in this package use other packages as follows:
//
// cacheclient: the protocol client each scenario drives the server with
//
// data: scenario scripts and the loader that expands their parameters
//
// mctest: the basic test scope framework
//
// serverdef: capability names and the reference CAS token
package cachetests
