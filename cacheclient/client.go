// Package cacheclient is the protocol client the harness drives the server with. It wraps the
// memcachier binary-protocol client so that a refusal by the server (a CAS mismatch or a missing
// key) is reported as a false result rather than as an error, which is how the test scenarios
// phrase their expectations.
package cacheclient

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/opt"

	"github.com/memcachier/mc/v3"
)

const DefaultTimeout = 5 * time.Second

// Config describes one client connection.
type Config struct {
	// Address is host:port of the server.
	Address string

	// Timeout bounds connecting and each individual operation. Zero means DefaultTimeout.
	Timeout time.Duration

	// Username and Password enable SASL authentication when Username is not empty.
	Username string
	Password string
}

// Client issues one request per call over a single connection. A Client is used from one
// goroutine at a time.
type Client struct {
	mc      *mc.Client
	address string
	logger  framework.Logger
}

// Dial creates a client for the server at config.Address. The connection itself is opened by
// the first operation.
func Dial(config Config, logger framework.Logger) (*Client, error) {
	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", config.Address, err)
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	mcConfig := mc.DefaultConfig()
	// Fail fast against a single server.
	mcConfig.Retries = 1
	mcConfig.RetryDelay = 0
	mcConfig.Failover = false
	mcConfig.PoolSize = 1
	mcConfig.ConnectionTimeout = timeout
	mcConfig.DownRetryDelay = 0

	return &Client{
		mc:      mc.NewMCwithConfig(config.Address, config.Username, config.Password, mcConfig),
		address: config.Address,
		logger:  logger,
	}, nil
}

// Address returns the address the client talks to.
func (c *Client) Address() string { return c.address }

// Set stores value unconditionally. It returns false if the server refused the write.
func (c *Client) Set(key, value string) (bool, error) {
	return c.store("set", key, value, 0)
}

// CAS stores value only if token matches the key's current token. It returns false, and a nil
// error, when the server reports a mismatch.
func (c *Client) CAS(key, value string, token uint64) (bool, error) {
	return c.store("cas", key, value, token)
}

func (c *Client) store(op, key, value string, token uint64) (bool, error) {
	_, err := c.mc.Set(key, value, 0, 0, token)
	ok, err := refusal(err)
	c.logResult(op, key, token, ok, err)
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", op, key, err)
	}
	return ok, nil
}

// Get returns the stored value, or an empty Maybe if the key does not exist.
func (c *Client) Get(key string) (opt.Maybe[string], error) {
	value, _, _, err := c.mc.Get(key)
	if errors.Is(err, mc.ErrNotFound) {
		c.logger.Printf("get %q -> not found", key)
		return opt.None[string](), nil
	}
	if err != nil {
		c.logger.Printf("get %q -> error: %s", key, err)
		return opt.None[string](), fmt.Errorf("get %q: %w", key, err)
	}
	c.logger.Printf("get %q -> %q", key, value)
	return opt.Some(value), nil
}

// Delete removes the key. A zero token deletes unconditionally. It returns false when the key
// is missing or the token does not match.
func (c *Client) Delete(key string, token uint64) (bool, error) {
	ok, err := refusal(c.mc.DelCAS(key, token))
	c.logResult("delete", key, token, ok, err)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return ok, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	c.mc.Quit()
	return nil
}

func refusal(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mc.ErrKeyExists), errors.Is(err, mc.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) logResult(op, key string, token uint64, ok bool, err error) {
	switch {
	case err != nil:
		c.logger.Printf("%s %q cas=%d -> error: %s", op, key, token, err)
	case ok:
		c.logger.Printf("%s %q cas=%d -> ok", op, key, token)
	default:
		c.logger.Printf("%s %q cas=%d -> refused", op, key, token)
	}
}
