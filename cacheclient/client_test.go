package cacheclient

import (
	"testing"
	"time"

	"github.com/memcashew/cache-test-harness/framework"
	"github.com/memcashew/cache-test-harness/framework/opt"
	"github.com/memcashew/cache-test-harness/mockmc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, options ...mockmc.ServerOption) (*Client, *framework.CapturingLogger) {
	server, err := mockmc.Start("127.0.0.1:0", options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	var logger framework.CapturingLogger
	c, err := Dial(Config{Address: server.Address(), Timeout: time.Second}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, &logger
}

func TestDialRejectsBadAddress(t *testing.T) {
	_, err := Dial(Config{Address: "no-port"}, nil)
	assert.Error(t, err)
}

func TestSetAndGet(t *testing.T) {
	c, _ := newClient(t)

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, opt.None[string](), value)

	ok, err := c.Set("k", "v")
	require.NoError(t, err)
	assert.True(t, ok)

	value, err = c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, opt.Some("v"), value)
}

func TestCASMismatchIsFalseNotError(t *testing.T) {
	c, _ := newClient(t)

	ok, err := c.CAS("k", "v1", 999)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CAS("k", "v2", 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value.Value())
}

func TestDelete(t *testing.T) {
	c, _ := newClient(t)

	ok, err := c.Delete("missing", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = c.CAS("k", "v", 999)
	ok, err = c.Delete("k", 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Delete("k", 999)
	require.NoError(t, err)
	assert.True(t, ok)

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, value.IsDefined())
}

func TestOperationsAreLogged(t *testing.T) {
	c, logger := newClient(t)
	_, _ = c.Set("k", "v")
	_, _ = c.Get("k")

	var messages []string
	for _, m := range logger.Output() {
		messages = append(messages, m.Message)
	}
	assert.Equal(t, []string{`set "k" cas=0 -> ok`, `get "k" -> "v"`}, messages)
}

func TestTransportErrorIsError(t *testing.T) {
	c, _ := newClient(t, mockmc.RefuseConnections())
	_, err := c.Set("k", "v")
	assert.Error(t, err)
	_, err = c.Get("k")
	assert.Error(t, err)
}
