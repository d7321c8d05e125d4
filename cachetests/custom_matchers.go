package cachetests

import (
	"errors"

	"github.com/memcashew/cache-test-harness/framework/helpers"
	"github.com/memcashew/cache-test-harness/framework/opt"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
)

// StoredValue transforms the result of a get into the stored string, and fails the match if the
// key was not found.
func StoredValue() m.MatcherTransform {
	return m.Transform(
		"stored value",
		func(value interface{}) (interface{}, error) {
			v := value.(opt.Maybe[string])
			if !v.IsDefined() {
				return nil, errors.New("key was not found")
			}
			return v.Value(), nil
		}).
		EnsureInputValueType(opt.Maybe[string]{})
}

// HasValue matches a get result that found exactly this value.
func HasValue(expected string) m.Matcher {
	return StoredValue().Should(m.Equal(expected))
}

// IsNotFound matches a get result for a missing key.
func IsNotFound() m.Matcher {
	return m.Equal(opt.None[string]())
}

// ExpectGetResult checks the result of a get. An empty want means the key must be missing. The
// test continues after a mismatch.
func ExpectGetResult(t helpers.TestContext, what string, got, want opt.Maybe[string]) bool {
	return m.In(t).For(what).Assert(got, getResultMatcher(want))
}

// RequireGetResult is like ExpectGetResult but terminates the test on a mismatch.
func RequireGetResult(t helpers.TestContext, what string, got, want opt.Maybe[string]) {
	m.In(t).For(what).Require(got, getResultMatcher(want))
}

func getResultMatcher(want opt.Maybe[string]) m.Matcher {
	if want.IsDefined() {
		return HasValue(want.Value())
	}
	return IsNotFound()
}
