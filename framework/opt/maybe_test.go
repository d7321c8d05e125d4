package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type myStringer struct{}

func (myStringer) String() string { return "custom" }

func TestNone(t *testing.T) {
	assert.False(t, None[string]().IsDefined())
	assert.Equal(t, "", None[string]().Value())
	assert.Equal(t, 0, None[int]().Value())
	assert.Equal(t, None[string](), Maybe[string]{})
}

func TestSome(t *testing.T) {
	assert.True(t, Some("").IsDefined())
	assert.Equal(t, "x", Some("x").Value())
	assert.NotEqual(t, None[string](), Some(""))
}

func TestOrElse(t *testing.T) {
	assert.Equal(t, "fallback", None[string]().OrElse("fallback"))
	assert.Equal(t, "value", Some("value").OrElse("fallback"))
}

func TestString(t *testing.T) {
	assert.Equal(t, "[none]", None[int]().String())
	assert.Equal(t, "3", Some(3).String())
	assert.Equal(t, "custom", Some(myStringer{}).String())
}
