// Package internal contains test helpers for mctest.
package internal

// RunAction is used only in unit tests, but exported because it has to be in a separate package
// so that its frames are not stripped from stacktraces as framework code.
func RunAction(action func()) {
	action()
}
