package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/memcashew/cache-test-harness/cacheclient"
	"github.com/memcashew/cache-test-harness/cachetests"
	"github.com/memcashew/cache-test-harness/data"
	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/harness"
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/serverdef"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "MCTEST_"

// configDuration accepts "5s" style values in config files and environment variables.
type configDuration time.Duration

func (d *configDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = configDuration(parsed)
	return nil
}

// harnessConfig holds the settings that can be given in a config file or in MCTEST_ environment
// variables. Command-line flags override both.
type harnessConfig struct {
	Server         serverdef.ServerOptions `json:"server"`
	StartupTimeout configDuration          `json:"startupTimeout" env:"STARTUP_TIMEOUT"`
	StopTimeout    configDuration          `json:"stopTimeout" env:"STOP_TIMEOUT"`
	OpTimeout      configDuration          `json:"opTimeout" env:"OP_TIMEOUT"`
	Concurrency    int                     `json:"concurrency" env:"CONCURRENCY"`
	Pairs          int                     `json:"pairs" env:"PAIRS"`
	KeyPrefix      *string                 `json:"keyPrefix" env:"KEY_PREFIX"`
	Capabilities   []string                `json:"capabilities" env:"CAPABILITIES" envSeparator:","`
	JUnitFile      string                  `json:"junit" env:"JUNIT"`
}

func defaultHarnessConfig() harnessConfig {
	return harnessConfig{
		Server:         serverdef.DefaultServerOptions(),
		StartupTimeout: configDuration(harness.DefaultStartupTimeout),
		StopTimeout:    configDuration(harness.DefaultStopTimeout),
		OpTimeout:      configDuration(cacheclient.DefaultTimeout),
		Concurrency:    cachetests.DefaultConcurrency,
		Pairs:          cachetests.DefaultPairs,
		Capabilities:   serverdef.AllCapabilities(),
	}
}

type commandParams struct {
	configFile     string
	server         serverdef.ServerOptions
	startupTimeout time.Duration
	stopTimeout    time.Duration
	opTimeout      time.Duration
	concurrency    int
	pairs          int
	keyPrefix      string
	keyPrefixSet   bool
	capabilities   framework.Capabilities
	filters        mctest.RegexFilters
	skipFile       string
	recordFailures string
	debug          bool
	debugAll       bool
	jUnitFile      string
}

// stringList is a flag.Value collecting repeated options.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, " ") }

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func (c *commandParams) Read(args []string) bool {
	if err := c.parse(args, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		return false
	}
	return true
}

// parse resolves the settings in order: defaults, config file, environment, flags. The flags
// are parsed once to find -config, and then again with the loaded values as their defaults.
func (c *commandParams) parse(args []string, errOut io.Writer) error {
	cfg := defaultHarnessConfig()

	var scan commandParams
	scanFlags := scan.flagSet(cfg, nil)
	scanFlags.SetOutput(io.Discard)
	_ = scanFlags.Parse(args[1:])

	if scan.configFile != "" {
		fileData, err := os.ReadFile(scan.configFile)
		if err != nil {
			return fmt.Errorf("cannot read config file: %w", err)
		}
		if err := data.ParseJSONOrYAMLStrict(fileData, &cfg); err != nil {
			return fmt.Errorf("cannot parse config file %q: %w", scan.configFile, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("invalid environment settings: %w", err)
	}

	var capabilities string
	fs := c.flagSet(cfg, &capabilities)
	fs.SetOutput(errOut)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	c.server.Env = cfg.Server.Env
	c.keyPrefixSet = cfg.KeyPrefix != nil
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "key-prefix" {
			c.keyPrefixSet = true
		}
	})

	parsed, err := parseCapabilities(capabilities)
	if err != nil {
		return err
	}
	c.capabilities = parsed
	return c.validate()
}

func (c *commandParams) flagSet(cfg harnessConfig, capabilities *string) *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	if capabilities == nil {
		capabilities = new(string)
	}
	keyPrefix := ""
	if cfg.KeyPrefix != nil {
		keyPrefix = *cfg.KeyPrefix
	}
	c.server.ExtraArgs = append([]string(nil), cfg.Server.ExtraArgs...)

	fs.StringVar(&c.configFile, "config", "", "read settings from a YAML or JSON file")
	fs.StringVar(&c.server.Binary, "server", cfg.Server.Binary,
		"server executable; if empty, test the server already running at -host/-port")
	fs.StringVar(&c.server.Host, "host", cfg.Server.Host, "address the server listens on")
	fs.IntVar(&c.server.Port, "port", cfg.Server.Port, "port the server listens on")
	fs.IntVar(&c.server.Threads, "threads", cfg.Server.Threads, "worker threads for the server (-t)")
	fs.IntVar(&c.server.MemoryMB, "memory", cfg.Server.MemoryMB, "memory limit in MB for the server (-m); 0 to omit")
	fs.Var((*stringList)(&c.server.ExtraArgs), "server-arg", "extra argument for the server (repeatable)")
	fs.DurationVar(&c.startupTimeout, "startup-timeout", time.Duration(cfg.StartupTimeout),
		"how long to wait for the server to accept requests")
	fs.DurationVar(&c.stopTimeout, "stop-timeout", time.Duration(cfg.StopTimeout),
		"how long to wait after SIGTERM before killing the server")
	fs.DurationVar(&c.opTimeout, "op-timeout", time.Duration(cfg.OpTimeout), "timeout for each client operation")
	fs.IntVar(&c.concurrency, "concurrency", cfg.Concurrency, "number of concurrent clients")
	fs.IntVar(&c.pairs, "pairs", cfg.Pairs, "bulk key/value pairs per round trip")
	fs.StringVar(&c.keyPrefix, "key-prefix", keyPrefix,
		"prefix for every key; by default a random one is used against an external server")
	fs.StringVar(capabilities, "capabilities", strings.Join(cfg.Capabilities, ","),
		"comma-separated server capabilities")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.skipFile, "skip-from", "", "file containing IDs of tests to skip, one per line")
	fs.StringVar(&c.recordFailures, "record-failures", "", "write IDs of failed tests to this file")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", cfg.JUnitFile, "write JUnit XML output to the specified path")
	return fs
}

func (c *commandParams) validate() error {
	switch {
	case c.server.Host == "":
		return errors.New("-host must not be empty")
	case c.server.Port <= 0 || c.server.Port > 65535:
		return fmt.Errorf("-port %d is out of range", c.server.Port)
	case c.server.Threads <= 0:
		return errors.New("-threads must be positive")
	case c.concurrency <= 0:
		return errors.New("-concurrency must be positive")
	case c.pairs < 0:
		return errors.New("-pairs must not be negative")
	case strings.ContainsAny(c.keyPrefix, " \t\r\n"):
		return errors.New("-key-prefix must not contain whitespace")
	}
	return nil
}

func parseCapabilities(s string) (framework.Capabilities, error) {
	all := serverdef.AllCapabilities()
	ret := framework.Capabilities{}
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !all.Has(name) {
			return nil, fmt.Errorf("unknown capability %q (known: %s)", name, all)
		}
		if !ret.Has(name) {
			ret = append(ret, name)
		}
	}
	return ret, nil
}
