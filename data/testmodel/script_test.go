package testmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepDefaults(t *testing.T) {
	no := false
	assert.True(t, Step{Op: OpSet}.ExpectOK())
	assert.False(t, Step{Op: OpSet, OK: &no}.ExpectOK())
}

func TestStepString(t *testing.T) {
	no := false
	assert.Equal(t, `cas(k, "v", 1000) == false`, Step{Op: OpCAS, Key: "k", Value: "v", Token: 1000, OK: &no}.String())
	assert.Equal(t, "get(k) == not found", Step{Op: OpGet, Key: "k", NotFound: true}.String())
	assert.Equal(t, `get(k) == "v"`, Step{Op: OpGet, Key: "k", Value: "v"}.String())
	assert.Equal(t, "delete(k, 0) == true", Step{Op: OpDelete, Key: "k"}.String())
}

func TestValidate(t *testing.T) {
	yes := true
	assert.NoError(t, Script{Name: "ok", Steps: []Step{{Op: OpSet, Key: "k"}}}.Validate())
	assert.Error(t, Script{Name: "empty"}.Validate())
	assert.Error(t, Script{Name: "bad op", Steps: []Step{{Op: "incr", Key: "k"}}}.Validate())
	assert.Error(t, Script{Name: "no key", Steps: []Step{{Op: OpGet}}}.Validate())
	assert.Error(t, Script{Name: "get ok", Steps: []Step{{Op: OpGet, Key: "k", OK: &yes}}}.Validate())
	assert.Error(t, Script{Name: "zero cas", Steps: []Step{{Op: OpCAS, Key: "k"}}}.Validate())
}
