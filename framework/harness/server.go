// Package harness manages the cache server under test.
//
// A test run uses exactly one server. StartServer launches it (or, in external mode, attaches
// to one that is already running), and does not return until the server has answered a real
// protocol request. The returned Server is passed explicitly to the test suite and stopped by
// the caller when the run is over.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/helpers"
	"github.com/memcashew/cache-test-harness/serverdef"
)

const (
	DefaultStartupTimeout = 10 * time.Second
	DefaultStopTimeout    = 5 * time.Second
	DefaultCheckTimeout   = time.Second

	outputTailLines = 20
	outputPrefix    = "[server] "
)

// ServerConfig describes how to start the server and how long to wait for it.
type ServerConfig struct {
	Options serverdef.ServerOptions

	// StartupTimeout bounds the whole readiness check.
	StartupTimeout time.Duration

	// StopTimeout is how long Stop waits after SIGTERM before killing the process.
	StopTimeout time.Duration

	// CheckTimeout bounds each individual readiness request.
	CheckTimeout time.Duration

	// OutputExclude lists patterns; server output lines matching any of them are not logged.
	OutputExclude []*regexp.Regexp

	// StartupOutput, if set, receives progress dots while the readiness check is waiting.
	StartupOutput io.Writer
}

// ServerState is the lifecycle state of a Server.
type ServerState int

const (
	ServerStarting ServerState = iota
	ServerRunning
	ServerTerminated
)

func (s ServerState) String() string {
	switch s {
	case ServerStarting:
		return "starting"
	case ServerRunning:
		return "running"
	case ServerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ServerInfo describes a started server.
type ServerInfo struct {
	Binary          string
	Args            []string
	Address         string
	PID             int
	External        bool
	StartupDuration time.Duration
}

// Server is a handle to the server under test.
type Server struct {
	config   ServerConfig
	info     ServerInfo
	cmd      *exec.Cmd
	output   *outputWriter
	logger   framework.Logger
	exited   chan struct{}
	exitErr  error
	state    ServerState
	stopErr  error
	stopOnce sync.Once
	lock     sync.Mutex
}

// StartServer starts the server described by config and waits until it is ready. If
// config.Options has no binary, no process is started and the server at the configured address
// is only checked for readiness.
//
// On any error the process, if one was started, has already been stopped and reaped.
func StartServer(ctx context.Context, config ServerConfig, logger framework.Logger) (*Server, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = DefaultStartupTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = DefaultCheckTimeout
	}
	if config.StartupOutput == nil {
		config.StartupOutput = io.Discard
	}

	options := config.Options
	s := &Server{
		config: config,
		logger: logger,
		exited: make(chan struct{}),
		info: ServerInfo{
			Binary:   options.Binary,
			Address:  options.Address(),
			External: options.External(),
		},
	}
	started := time.Now()

	if options.External() {
		logger.Printf("No server binary configured; testing the server already running at %s", s.info.Address)
	} else if err := s.launch(); err != nil {
		return nil, err
	}

	if err := s.waitUntilReady(ctx); err != nil {
		_ = s.kill()
		return nil, err
	}

	s.lock.Lock()
	s.state = ServerRunning
	s.info.StartupDuration = time.Since(started)
	s.lock.Unlock()
	logger.Printf("Server at %s is ready after %s", s.info.Address, s.info.StartupDuration)
	return s, nil
}

func (s *Server) launch() error {
	options := s.config.Options
	path, err := exec.LookPath(options.Binary)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, err)
	}

	// A readiness check against an address someone else holds would succeed for the wrong server.
	listener, err := net.Listen("tcp", s.info.Address)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrAddressInUse, s.info.Address, err)
	}
	_ = listener.Close()

	s.output = newOutputWriter(s.logger, outputPrefix, s.config.OutputExclude, outputTailLines)
	s.info.Binary = path
	s.info.Args = options.Args()

	cmd := exec.Command(path, s.info.Args...) //nolint:gosec
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	cmd.Env = append(os.Environ(), options.Env...)
	s.logger.Printf("Starting server: %s %s", path, strings.Join(s.info.Args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server %s: %w", path, err)
	}
	s.cmd = cmd
	s.info.PID = cmd.Process.Pid

	go func() {
		err := cmd.Wait()
		s.output.flush()
		s.lock.Lock()
		s.exitErr = err
		s.state = ServerTerminated
		s.lock.Unlock()
		close(s.exited)
	}()
	return nil
}

// exitDescription is available once the exited channel is closed.
func (s *Server) exitDescription() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	status := "exit status 0"
	if s.cmd.ProcessState != nil {
		status = s.cmd.ProcessState.String()
	} else if s.exitErr != nil {
		status = s.exitErr.Error()
	}
	tail := s.output.lastLines()
	if len(tail) == 0 {
		return status + " (no output)"
	}
	return status + "; last output:\n  " + strings.Join(tail, "\n  ")
}

// Info returns details of the started server.
func (s *Server) Info() ServerInfo {
	s.lock.Lock()
	defer s.lock.Unlock()
	info := s.info
	info.Args = append([]string(nil), s.info.Args...)
	return info
}

// Address returns host:port of the server.
func (s *Server) Address() string {
	return s.info.Address
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Exited returns a channel that is closed when the server process terminates. In external mode
// it is closed by Stop.
func (s *Server) Exited() <-chan struct{} {
	return s.exited
}

// Stop sends SIGTERM to the server and waits for it to exit. If it is still running after the
// configured StopTimeout, it is killed. If the process had already exited on its own, Stop
// returns an error wrapping ErrServerExited. Calling Stop more than once returns the same
// result. In external mode Stop does nothing to the server.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})
	return s.stopErr
}

func (s *Server) stop() error {
	if s.cmd == nil {
		s.lock.Lock()
		s.state = ServerTerminated
		s.lock.Unlock()
		close(s.exited)
		return nil
	}
	select {
	case <-s.exited:
		return fmt.Errorf("%w while the tests were running: %s", ErrServerExited, s.exitDescription())
	default:
	}

	s.logger.Printf("Stopping server (pid %d)", s.info.PID)
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Printf("Could not send SIGTERM to server: %s", err)
	}
	if helpers.Closed(s.exited, s.config.StopTimeout) {
		return nil
	}
	s.logger.Printf("Server did not exit within %s; killing it", s.config.StopTimeout)
	return s.kill()
}

func (s *Server) kill() error {
	if s.cmd == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill server (pid %d): %w", s.info.PID, err)
	}
	<-s.exited
	return nil
}
