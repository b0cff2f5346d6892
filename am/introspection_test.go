package am

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ILSP_CACHE_WORKERS", EnvKey("cache.workers"))
	assert.Equal(t, "ILSP_ANALYSIS_DOC_PREFIX", EnvKey("analysis.doc_prefix"))
}

func TestIntrospection_AllDefaults(t *testing.T) {
	isolate(t)

	_, intro, err := LoadWithSources("")
	require.NoError(t, err)

	assert.Empty(t, intro.Files)
	require.NotEmpty(t, intro.Settings)

	summary := intro.Summary()
	assert.Equal(t, len(intro.Settings), summary[SourceDefault])

	// sorted, flattened keys
	for i := 1; i < len(intro.Settings); i++ {
		assert.Less(t, intro.Settings[i-1].Key, intro.Settings[i].Key)
	}
	setting, ok := intro.Setting("workspace.max_parses_per_second")
	require.True(t, ok)
	assert.Equal(t, "built-in default", setting.SourcePath)

	_, ok = intro.Setting("does.not.exist")
	assert.False(t, ok)
}

func TestIntrospection_UserFile(t *testing.T) {
	home, _ := isolate(t)
	path := writeConfig(t, filepath.Join(home, DirName, UserConfigName), "[log]\njson = true\n")

	cfg, intro, err := LoadWithSources("")
	require.NoError(t, err)
	assert.True(t, cfg.Log.JSON)

	setting, ok := intro.Setting("log.json")
	require.True(t, ok)
	assert.Equal(t, SourceUser, setting.Source)
	assert.Equal(t, path, setting.SourcePath)
	assert.Equal(t, true, setting.Value)
	assert.Equal(t, []string{path}, intro.Files)
}
