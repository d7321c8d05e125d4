package cachetests

import (
	"fmt"
	"os"
	"time"

	"github.com/memcashew/cache-test-harness/cacheclient"
	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/serverdef"
)

const (
	DefaultConcurrency = 10
	DefaultPairs       = 100
)

// Target is the server the suite runs against.
type Target interface {
	Address() string
}

// SuiteOptions controls the shape of a suite run. Zero values select the defaults.
type SuiteOptions struct {
	// Concurrency is the number of clients in the concurrency test.
	Concurrency int

	// Pairs is the number of bulk key/value pairs each round trip writes after its primary pair.
	// A negative value writes only the primary pair.
	Pairs int

	// KeyPrefix is prepended to every key the suite uses.
	KeyPrefix string

	// OpTimeout bounds each client operation.
	OpTimeout time.Duration

	// Capabilities lists the server behaviors the suite may rely on. Nil means all of them.
	Capabilities framework.Capabilities
}

func RunCacheTestSuite(
	target Target,
	filter mctest.Filter,
	testLogger mctest.TestLogger,
	options SuiteOptions,
) mctest.Results {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.Pairs < 0 {
		options.Pairs = 0
	} else if options.Pairs == 0 {
		options.Pairs = DefaultPairs
	}
	if options.OpTimeout <= 0 {
		options.OpTimeout = cacheclient.DefaultTimeout
	}
	capabilities := options.Capabilities
	if capabilities == nil {
		capabilities = serverdef.AllCapabilities()
	}

	fmt.Printf("Running cache server test suite against %s\n", target.Address())
	fmt.Println()
	if sdf, ok := filter.(mctest.SelfDescribingFilter); ok {
		sdf.Describe(os.Stdout, capabilities, serverdef.AllCapabilities())
	}

	config := mctest.TestConfiguration{
		Filter:       filter,
		Capabilities: capabilities,
		TestLogger:   testLogger,
		Context: CacheTestContext{
			address:     target.Address(),
			keyPrefix:   options.KeyPrefix,
			opTimeout:   options.OpTimeout,
			concurrency: options.Concurrency,
			pairs:       options.Pairs,
		},
	}

	return mctest.Run(config, doAllCacheTests)
}

func doAllCacheTests(t *mctest.T) {
	t.Run("basic", doBasicTests)
	t.Run("cas", doCASTests)
	t.Run("concurrency", doConcurrencyTests)
	t.Run("scripts", doScriptTests)
}
