package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memcashew/cache-test-harness/cacheclient"

	"github.com/cenkalti/backoff/v5"
)

const readinessKey = "mctest-readiness-check"

// waitUntilReady repeats a get of readinessKey until the server answers, with exponential backoff.
// A value or a not-found reply both mean the server is serving requests.
func (s *Server) waitUntilReady(ctx context.Context) error {
	fmt.Fprintf(s.config.StartupOutput, "Waiting for server at %s", s.info.Address)
	defer fmt.Fprintln(s.config.StartupOutput)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.Multiplier = 2

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		fmt.Fprint(s.config.StartupOutput, ".")
		select {
		case <-s.exited:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w during startup: %s", ErrServerExited, s.exitDescription()))
		default:
		}
		return struct{}{}, s.checkReady()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(s.config.StartupTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Printf("Readiness check failed (%s); retrying in %s", err, next)
		}),
	)
	switch {
	case err == nil:
		s.logger.Printf("Readiness check succeeded after %d attempt(s)", attempts)
		return nil
	case errors.Is(err, ErrServerExited):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: startup interrupted: %s", ErrNotReady, ctx.Err())
	default:
		return fmt.Errorf("%w at %s within %s (%d attempts): %s",
			ErrNotReady, s.info.Address, s.config.StartupTimeout, attempts, err)
	}
}

func (s *Server) checkReady() error {
	client, err := cacheclient.Dial(cacheclient.Config{Address: s.info.Address, Timeout: s.config.CheckTimeout}, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer client.Close() //nolint:errcheck
	_, err = client.Get(readinessKey)
	return err
}
