package cachetests

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/memcashew/cache-test-harness/data"
	"github.com/memcashew/cache-test-harness/data/testmodel"
	"github.com/memcashew/cache-test-harness/framework/mctest"
	"github.com/memcashew/cache-test-harness/framework/opt"

	"github.com/stretchr/testify/require"
)

const scriptsDataPath = "scripts"

type loadedScript struct {
	testmodel.Script
	testName  string
	keyPrefix string
}

func doScriptTests(t *mctest.T) {
	for _, script := range getAllScripts(t, scriptsDataPath) {
		t.Run(script.testName, func(t *mctest.T) {
			for _, capability := range script.RequireCapabilities {
				t.RequireCapability(capability)
			}
			RunScript(t, NewCacheClient(t), script.keyPrefix, script.Script)
		})
	}
}

// RunScript executes the steps of a script in order, prefixing every key with keyPrefix, and
// stops at the first step whose outcome differs from the expected one.
func RunScript(t *mctest.T, client *CacheClient, keyPrefix string, script testmodel.Script) {
	for i, step := range script.Steps {
		key := keyPrefix + step.Key
		t.Debug("step %d: %s", i, step)
		switch step.Op {
		case testmodel.OpSet:
			require.Equal(t, step.ExpectOK(), client.Set(t, key, step.Value), "step %d: %s", i, step)
		case testmodel.OpCAS:
			require.Equal(t, step.ExpectOK(), client.CAS(t, key, step.Value, step.Token), "step %d: %s", i, step)
		case testmodel.OpDelete:
			require.Equal(t, step.ExpectOK(), client.Delete(t, key, step.Token), "step %d: %s", i, step)
		case testmodel.OpGet:
			want := opt.Some(step.Value)
			if step.NotFound {
				want = opt.None[string]()
			}
			RequireGetResult(t, fmt.Sprintf("step %d: %s", i, step), client.Get(t, key), want)
		}
	}
}

func getAllScripts(t *mctest.T, path string) []loadedScript {
	sources, err := data.LoadAllDataFiles(path)
	require.NoError(t, err)

	ret := make([]loadedScript, 0, len(sources))
	perFile := make(map[string]int)
	for _, source := range sources {
		var script testmodel.Script
		require.NoError(t, source.ParseInto(&script))
		require.NoError(t, script.Validate())

		name := script.Name
		if name == "" {
			name = source.BaseName
		}
		if len(source.Params) != 0 {
			name += " " + source.ParamsString()
		}

		index := perFile[source.FilePath]
		perFile[source.FilePath]++
		base := strings.TrimSuffix(source.BaseName, filepath.Ext(source.BaseName))

		ret = append(ret, loadedScript{
			Script:    script,
			testName:  name,
			keyPrefix: fmt.Sprintf("%s-%d:", base, index),
		})
	}
	return ret
}
