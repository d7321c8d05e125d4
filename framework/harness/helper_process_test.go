package harness

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/memcashew/cache-test-harness/mockmc"
)

// When helperModeEnv is set, the test binary acts as the server executable. It accepts the same
// -i/-p/-t/-m arguments a real server does.
const helperModeEnv = "MCTEST_HARNESS_HELPER_MODE"

const (
	helperServe    = "serve"    // serve until SIGTERM
	helperSlow     = "slow"     // wait a while, then serve
	helperExit     = "exit"     // print an error and exit with status 3
	helperMute     = "mute"     // never listen
	helperStubborn = "stubborn" // serve and ignore SIGTERM
	helperCrash    = "crash"    // serve briefly, then exit with status 4
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperModeEnv); mode != "" {
		os.Exit(runHelperServer(mode, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runHelperServer(mode string, args []string) int {
	fs := flag.NewFlagSet("helper", flag.ContinueOnError)
	host := fs.String("i", "127.0.0.1", "")
	port := fs.Int("p", 11211, "")
	_ = fs.Int("t", 1, "")
	_ = fs.Int("m", 0, "")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM)

	switch mode {
	case helperExit:
		fmt.Fprintln(os.Stderr, "fatal: cannot bind")
		return 3
	case helperMute:
		fmt.Println("not listening")
		<-signals
		return 0
	case helperSlow:
		time.Sleep(300 * time.Millisecond)
	}

	server, err := mockmc.Start(net.JoinHostPort(*host, strconv.Itoa(*port)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer server.Close() //nolint:errcheck
	fmt.Printf("listening on %s\n", server.Address())
	fmt.Println("noise: accepted connection")

	if mode == helperCrash {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprintln(os.Stderr, "panic: out of slabs")
		return 4
	}

	for {
		<-signals
		if mode != helperStubborn {
			fmt.Println("shutting down")
			return 0
		}
		fmt.Println("ignoring SIGTERM")
	}
}
