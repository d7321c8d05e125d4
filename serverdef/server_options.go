package serverdef

import (
	"net"
	"strconv"
)

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 11211
	DefaultThreads = 8

	// ReferenceCASToken is the token the CAS scenarios create keys with.
	ReferenceCASToken uint64 = 999
)

// ServerOptions describes how to launch the server under test and where it listens.
//
// The struct tags let the same type be filled from a config file and from MCTEST_ environment
// variables.
type ServerOptions struct {
	// Binary is the path of the server executable. If empty, the harness does not start a
	// process and instead tests a server that is already running at Host:Port.
	Binary string `json:"binary" env:"SERVER"`

	Host string `json:"host" env:"HOST"`
	Port int    `json:"port" env:"PORT"`

	// Threads is passed as -t.
	Threads int `json:"threads" env:"THREADS"`

	// MemoryMB is passed as -m when nonzero.
	MemoryMB int `json:"memoryMB" env:"MEMORY"`

	// ExtraArgs are appended after the standard arguments.
	ExtraArgs []string `json:"extraArgs" env:"SERVER_ARGS" envSeparator:" "`

	// Env holds extra NAME=value entries for the server's environment.
	Env []string `json:"env" env:"SERVER_ENV" envSeparator:","`
}

// DefaultServerOptions returns options for a server on 127.0.0.1:11211 with 8 worker threads.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Threads: DefaultThreads,
	}
}

// Args returns the command-line arguments for the server executable, for instance
// "-i 127.0.0.1 -p 11211 -t 8 -m 64".
func (o ServerOptions) Args() []string {
	args := []string{
		"-i", o.Host,
		"-p", strconv.Itoa(o.Port),
		"-t", strconv.Itoa(o.Threads),
	}
	if o.MemoryMB > 0 {
		args = append(args, "-m", strconv.Itoa(o.MemoryMB))
	}
	return append(args, o.ExtraArgs...)
}

// Address returns host:port.
func (o ServerOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// External is true when no binary is configured.
func (o ServerOptions) External() bool {
	return o.Binary == ""
}
