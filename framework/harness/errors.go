package harness

import "errors"

var (
	// ErrBinaryNotFound means the configured server executable does not exist or is not executable.
	ErrBinaryNotFound = errors.New("server binary not found")

	// ErrAddressInUse means something was already listening on the server address before launch.
	ErrAddressInUse = errors.New("server address already in use")

	// ErrServerExited means the server process terminated without being told to stop, either
	// during startup or while the tests were running.
	ErrServerExited = errors.New("server process exited unexpectedly")

	// ErrNotReady means the server did not answer a protocol request within the startup timeout.
	ErrNotReady = errors.New("server did not become ready")
)
