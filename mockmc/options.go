package mockmc

import (
	"time"

	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/helpers"
)

type serverConfig struct {
	ignoreCAS         bool
	forgetDeletes     bool
	keyLength         int
	latency           time.Duration
	refuseConnections bool
	logger            framework.Logger
}

// ServerOption is an option for Start.
type ServerOption helpers.ConfigOption[serverConfig]

func option(fn func(*serverConfig)) ServerOption {
	return helpers.OptionFunc[serverConfig](func(c *serverConfig) error {
		fn(c)
		return nil
	})
}

// IgnoreCAS makes every set and delete succeed regardless of the token supplied.
func IgnoreCAS() ServerOption {
	return option(func(c *serverConfig) { c.ignoreCAS = true })
}

// ForgetDeletes makes delete report success without removing anything.
func ForgetDeletes() ServerOption {
	return option(func(c *serverConfig) { c.forgetDeletes = true })
}

// TruncateKeys makes the server only consider the first n bytes of each key, so that distinct
// keys sharing a prefix collide.
func TruncateKeys(n int) ServerOption {
	return option(func(c *serverConfig) { c.keyLength = n })
}

// Latency delays every response.
func Latency(d time.Duration) ServerOption {
	return option(func(c *serverConfig) { c.latency = d })
}

// RefuseConnections makes the server close every connection as soon as it is accepted.
func RefuseConnections() ServerOption {
	return option(func(c *serverConfig) { c.refuseConnections = true })
}

// WithLogger sets a logger for connection and request events.
func WithLogger(logger framework.Logger) ServerOption {
	return option(func(c *serverConfig) { c.logger = logger })
}
