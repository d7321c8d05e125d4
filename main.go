package main

import (
	"bufio"
	"context"
	_ "embed" // this is required in order for go:embed to work
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/memcashew/cache-test-harness/cachetests"
	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/harness"
	"github.com/memcashew/cache-test-harness/framework/mctest"

	"github.com/google/uuid"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("cache-test-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams) (*mctest.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if params.server.External() {
		fmt.Printf("Testing the server already running at %s\n", params.server.Address())
	} else {
		fmt.Printf("Starting %s %s\n", params.server.Binary, strings.Join(params.server.Args(), " "))
	}
	server, err := harness.StartServer(ctx, harness.ServerConfig{
		Options:        params.server,
		StartupTimeout: params.startupTimeout,
		StopTimeout:    params.stopTimeout,
		StartupOutput:  os.Stdout,
	}, mainDebugLogger)
	if err != nil {
		return nil, fmt.Errorf("server did not start: %w", err)
	}
	defer stopServer(server)

	// On interrupt, stop the server so the running test fails fast, and let the run finish so
	// that the reports are still written. A second signal terminates the harness.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stopSignals()
			fmt.Fprintln(os.Stderr, "Interrupted; stopping server and skipping remaining tests")
			stopServer(server)
		case <-done:
		}
	}()

	keyPrefix := params.keyPrefix
	if !params.keyPrefixSet && server.Info().External {
		keyPrefix = "run-" + uuid.NewString() + ":"
		fmt.Printf("Using key prefix %q\n", keyPrefix)
	}

	var testLogger mctest.TestLogger
	consoleLogger := &mctest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		testLogger = mctest.MultiTestLogger{Loggers: []mctest.TestLogger{
			consoleLogger,
			mctest.NewJUnitTestLogger(params.jUnitFile, jUnitProperties(server.Info(), params, keyPrefix)...),
		}}
	}

	pairs := params.pairs
	if pairs == 0 {
		pairs = -1
	}
	filter := interruptibleFilter{RegexFilters: params.filters, ctx: ctx}
	results := cachetests.RunCacheTestSuite(server, filter, testLogger, cachetests.SuiteOptions{
		Concurrency:  params.concurrency,
		Pairs:        pairs,
		KeyPrefix:    keyPrefix,
		OpTimeout:    params.opTimeout,
		Capabilities: params.capabilities,
	})

	fmt.Println()
	logErr := testLogger.EndLog(results)

	if logErr != nil {
		return nil, fmt.Errorf("error writing log: %v", logErr)
	}

	if params.recordFailures != "" {
		f, err := os.Create(params.recordFailures)
		if err != nil {
			return nil, fmt.Errorf("cannot create suppression file: %v", err)
		}
		for _, test := range results.Failures {
			if len(test.TestID) != 0 {
				fmt.Fprintln(f, test.TestID)
			}
		}
		_ = f.Close()
	}

	if ctx.Err() != nil {
		return &results, errors.New("test run was interrupted")
	}
	return &results, nil
}

// interruptibleFilter excludes every test that has not started yet once ctx is done.
type interruptibleFilter struct {
	mctest.RegexFilters
	ctx context.Context
}

func (f interruptibleFilter) Match(id mctest.TestID) bool {
	return f.ctx.Err() == nil && f.RegexFilters.Match(id)
}

func stopServer(server *harness.Server) {
	if server.Info().External {
		_ = server.Stop()
		return
	}
	fmt.Println("Stopping server")
	if err := server.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop server: %s\n", err)
	}
}

func jUnitProperties(info harness.ServerInfo, params commandParams, keyPrefix string) []mctest.JUnitProperty {
	props := []mctest.JUnitProperty{
		{Name: "harnessVersion", Value: strings.TrimSpace(versionString)},
		{Name: "serverAddress", Value: info.Address},
		{Name: "capabilities", Value: params.capabilities.String()},
		{Name: "concurrency", Value: strconv.Itoa(params.concurrency)},
	}
	if info.External {
		props = append(props, mctest.JUnitProperty{Name: "serverMode", Value: "external"})
	} else {
		props = append(props,
			mctest.JUnitProperty{Name: "serverBinary", Value: info.Binary},
			mctest.JUnitProperty{Name: "serverArgs", Value: strings.Join(info.Args, " ")},
			mctest.JUnitProperty{Name: "serverPID", Value: strconv.Itoa(info.PID)},
		)
	}
	props = append(props, mctest.JUnitProperty{Name: "serverStartupTime", Value: info.StartupDuration.String()})
	if keyPrefix != "" {
		props = append(props, mctest.JUnitProperty{Name: "keyPrefix", Value: keyPrefix})
	}
	if params.filters.MustMatch.IsDefined() {
		props = append(props, mctest.JUnitProperty{Name: "run", Value: params.filters.MustMatch.String()})
	}
	if params.filters.MustNotMatch.IsDefined() {
		props = append(props, mctest.JUnitProperty{Name: "skip", Value: params.filters.MustNotMatch.String()})
	}
	return props
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %v", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore blank lines
		if strings.TrimSpace(line) == "" {
			continue
		}
		escaped := regexp.QuoteMeta(line)
		if err := params.filters.MustNotMatch.Set(escaped); err != nil {
			return fmt.Errorf("cannot parse suppression: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %v", err)
	}
	return nil
}
