package data

import (
	"testing"

	"github.com/memcashew/cache-test-harness/data/testmodel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServerConfig struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	Capabilities []string `json:"capabilities"`
}

func TestParseScriptAsJSONOrYAML(t *testing.T) {
	for _, params := range []struct {
		desc  string
		input string
	}{
		{"JSON", `{"name":"x","steps":[{"op":"cas","key":"k","value":"a","token":999,"ok":false}]}`},
		{"YAML", `---
name: x
steps:
  - { op: cas, key: k, value: a, token: 999, ok: false }
`},
	} {
		t.Run(params.desc, func(t *testing.T) {
			var script testmodel.Script
			require.NoError(t, ParseJSONOrYAML([]byte(params.input), &script))
			assert.Equal(t, "x", script.Name)
			require.Len(t, script.Steps, 1)
			assert.Equal(t, testmodel.OpCAS, script.Steps[0].Op)
			assert.Equal(t, uint64(999), script.Steps[0].Token)
			assert.False(t, script.Steps[0].ExpectOK())
		})
	}
}

func TestYAMLMergeKeysInScriptSteps(t *testing.T) {
	input := `---
name: anchors
steps:
  - &write { op: set, key: k, value: a }
  - { <<: *write, value: b }
  - { op: get, key: k, value: b }
`
	var script testmodel.Script
	require.NoError(t, ParseJSONOrYAML([]byte(input), &script))
	require.Len(t, script.Steps, 3)
	assert.Equal(t, testmodel.Step{Op: testmodel.OpSet, Key: "k", Value: "b"}, script.Steps[1])
}

func TestJSONTypeErrorReportsFieldAndPosition(t *testing.T) {
	input := `{
  "steps": [
    {"op": "cas", "key": "k", "token": "abc"}
  ]
}`
	var script testmodel.Script
	err := ParseJSONOrYAML([]byte(input), &script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
	assert.Contains(t, err.Error(), "line 3")
}

func TestYAMLTypeErrorReportsField(t *testing.T) {
	input := `---
server:
  port: eleven
`
	var config testServerConfig
	err := ParseJSONOrYAML([]byte(input), &config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.NotContains(t, err.Error(), "line")
}

func TestMalformedJSONReportsPosition(t *testing.T) {
	var config testServerConfig
	err := ParseJSONOrYAML([]byte(`{"capabilities": ["cas", "set-get"}`), &config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON at line 1")
}

func TestMalformedYAMLReturnsYAMLError(t *testing.T) {
	var config testServerConfig
	err := ParseJSONOrYAML([]byte("server:\n  host: [unclosed\n"), &config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestNonStringYAMLKeyIsRejected(t *testing.T) {
	var out map[string]interface{}
	err := ParseJSONOrYAML([]byte("server:\n  1: one\n  2: two\n"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "of type int")
}

func TestStrictParseRejectsUnknownSettings(t *testing.T) {
	input := `---
server:
  host: 127.0.0.1
  prot: 12000
`
	var lenient testServerConfig
	require.NoError(t, ParseJSONOrYAML([]byte(input), &lenient))
	assert.Equal(t, "127.0.0.1", lenient.Server.Host)

	var strict testServerConfig
	err := ParseJSONOrYAMLStrict([]byte(input), &strict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prot")
}

func TestStrictParseAcceptsJSON(t *testing.T) {
	var config testServerConfig
	require.NoError(t, ParseJSONOrYAMLStrict([]byte(`{"server":{"port":12000},"capabilities":["cas"]}`), &config))
	assert.Equal(t, 12000, config.Server.Port)
	assert.Equal(t, []string{"cas"}, config.Capabilities)
}
