package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/ilsp/errors"
)

// isolate points HOME and the working directory at fresh temp dirs
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(project)
	return home, project
}

func writeConfig(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/project config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, ";;;", cfg.Analysis.DocPrefix)
	assert.False(t, cfg.Analysis.ExemptLiterals)
	assert.Equal(t, []string{".il"}, cfg.Workspace.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LayerPrecedence(t *testing.T) {
	home, project := isolate(t)

	writeConfig(t, filepath.Join(home, DirName, UserConfigName), `
[analysis]
doc_prefix = ";;"
exempt_literals = true

[cache]
workers = 2
`)
	writeConfig(t, filepath.Join(project, ProjectConfigName), `
[cache]
workers = 6
`)
	explicit := writeConfig(t, filepath.Join(t.TempDir(), "override.toml"), `
[analysis]
doc_prefix = ";;;;"
`)

	cfg, intro, err := LoadWithSources(explicit)
	require.NoError(t, err)

	assert.Equal(t, ";;;;", cfg.Analysis.DocPrefix, "explicit file wins")
	assert.Equal(t, 6, cfg.Cache.Workers, "project file wins over user file")
	assert.True(t, cfg.Analysis.ExemptLiterals, "user file still applies")
	assert.Equal(t, DefaultShards, cfg.Cache.Shards)

	setting, ok := intro.Setting("analysis.doc_prefix")
	require.True(t, ok)
	assert.Equal(t, SourceExplicit, setting.Source)
	assert.Equal(t, explicit, setting.SourcePath)

	setting, ok = intro.Setting("cache.workers")
	require.True(t, ok)
	assert.Equal(t, SourceProject, setting.Source)

	setting, ok = intro.Setting("analysis.exempt_literals")
	require.True(t, ok)
	assert.Equal(t, SourceUser, setting.Source)

	setting, ok = intro.Setting("cache.shards")
	require.True(t, ok)
	assert.Equal(t, SourceDefault, setting.Source)

	assert.Len(t, intro.Files, 3)
}

func TestLoad_ProjectConfigFoundInParent(t *testing.T) {
	_, project := isolate(t)
	writeConfig(t, filepath.Join(project, ProjectConfigName), `
[workspace]
scan_concurrency = 9
`)
	nested := filepath.Join(project, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workspace.ScanConcurrency)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ILSP_CACHE_WORKERS", "12")
	t.Setenv("ILSP_SERVER_TRANSPORT", "websocket")

	cfg, intro, err := LoadWithSources("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Cache.Workers)
	assert.Equal(t, TransportWebSocket, cfg.Server.Transport)

	setting, ok := intro.Setting("cache.workers")
	require.True(t, ok)
	assert.Equal(t, SourceEnvironment, setting.Source)
	assert.Equal(t, "ILSP_CACHE_WORKERS", setting.SourcePath)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	home, _ := isolate(t)
	writeConfig(t, filepath.Join(home, DirName, UserConfigName), "[cache\nworkers = ")

	_, err := Load("")
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"websocket with address", func(c *Config) { c.Server.Transport = TransportWebSocket }, false},
		{"websocket without address", func(c *Config) {
			c.Server.Transport = TransportWebSocket
			c.Server.Address = ""
		}, true},
		{"unknown transport", func(c *Config) { c.Server.Transport = "pigeon" }, true},
		{"origin without scheme", func(c *Config) { c.Server.AllowedOrigins = []string{"localhost"} }, true},
		{"origin with port", func(c *Config) { c.Server.AllowedOrigins = []string{"http://localhost:5173"} }, false},
		{"empty doc prefix", func(c *Config) { c.Analysis.DocPrefix = "" }, true},
		{"no extensions", func(c *Config) { c.Workspace.Extensions = nil }, true},
		{"extension without dot", func(c *Config) { c.Workspace.Extensions = []string{"il"} }, true},
		{"zero scan concurrency", func(c *Config) { c.Workspace.ScanConcurrency = 0 }, true},
		{"negative debounce", func(c *Config) { c.Workspace.WatchDebounceMs = -1 }, true},
		{"zero debounce is valid", func(c *Config) { c.Workspace.WatchDebounceMs = 0 }, false},
		{"zero rate is valid (unlimited)", func(c *Config) { c.Workspace.MaxParsesPerSecond = 0 }, false},
		{"negative rate", func(c *Config) { c.Workspace.MaxParsesPerSecond = -1 }, true},
		{"zero shards", func(c *Config) { c.Cache.Shards = 0 }, true},
		{"zero workers", func(c *Config) { c.Cache.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ilsp.toml")

	require.NoError(t, WriteDefault(path, false))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	unknown, err := CheckFile(path)
	require.NoError(t, err)
	assert.Empty(t, unknown)

	// refuses to overwrite without force
	err = WriteDefault(path, false)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestWriteDefault_RotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ilsp.toml")
	writeConfig(t, path, "# first\n")

	for i := 0; i < 4; i++ {
		require.NoError(t, WriteDefault(path, true))
	}

	first, err := os.ReadFile(path + ".back3")
	require.NoError(t, err)
	assert.NotContains(t, string(first), "# first", "oldest backup was rotated out")

	for _, suffix := range []string{".back1", ".back2", ".back3"} {
		assert.FileExists(t, path+suffix)
	}
	assert.NoFileExists(t, path+".back4")
}

func TestCheckFile_UnknownKeys(t *testing.T) {
	path := writeConfig(t, filepath.Join(t.TempDir(), "ilsp.toml"), `
[analysis]
exempt_literal = true
doc_prefix = ";;"

[colour]
scheme = "dark"
`)

	unknown, err := CheckFile(path)
	require.NoError(t, err)
	assert.Contains(t, unknown, "analysis.exempt_literal")
	assert.NotContains(t, unknown, "analysis.doc_prefix")

	assert.Error(t, ValidateFile(path))
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	ok := writeConfig(t, filepath.Join(dir, "ok.toml"), "[cache]\nworkers = 3\n")
	assert.NoError(t, ValidateFile(ok))

	bad := writeConfig(t, filepath.Join(dir, "bad.toml"), "[cache]\nworkers = 0\n")
	assert.Error(t, ValidateFile(bad))

	broken := writeConfig(t, filepath.Join(dir, "broken.toml"), "workers = [")
	assert.Error(t, ValidateFile(broken))
}

func TestOptionsConversion(t *testing.T) {
	cfg := Defaults()
	cfg.Analysis.ExemptLiterals = true
	cfg.Workspace.WatchDebounceMs = 75
	cfg.Cache.Workers = 3

	opts := cfg.AnalysisOptions()
	assert.Equal(t, ";;;", opts.DocPrefix)
	assert.True(t, opts.ExemptLiterals)
	assert.Equal(t, []string{"let", "prog"}, opts.ScopingKeywords)

	opts.ScopingKeywords[0] = "mutated"
	assert.Equal(t, "let", cfg.Analysis.ScopingKeywords[0], "options do not alias the config")

	assert.Equal(t, 75*time.Millisecond, cfg.WatchOptions().Debounce)
	assert.Equal(t, cfg.Workspace.ScanConcurrency, cfg.ScanOptions().Concurrency)
	assert.True(t, cfg.ScanOptions().Filter.Match("a/b.il"))
	assert.Equal(t, 3, cfg.WorkerConfig().Workers)
}

func TestConfigWatcher_Reload(t *testing.T) {
	_, project := isolate(t)
	path := writeConfig(t, filepath.Join(project, ProjectConfigName), "[cache]\nworkers = 2\n")

	cw, err := NewConfigWatcher("", []string{path})
	require.NoError(t, err)
	cw.SetDebounce(20 * time.Millisecond)

	reloaded := make(chan *Config, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	cw.Start()
	defer cw.Stop()

	// unrelated files in the same directory are ignored
	writeConfig(t, filepath.Join(project, "notes.txt"), "hello")
	writeConfig(t, path, "[cache]\nworkers = 7\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7, cfg.Cache.Workers)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcher_InvalidConfigKeepsPrevious(t *testing.T) {
	_, project := isolate(t)
	path := writeConfig(t, filepath.Join(project, ProjectConfigName), "[cache]\nworkers = 2\n")

	cw, err := NewConfigWatcher("", []string{path})
	require.NoError(t, err)
	cw.SetDebounce(10 * time.Millisecond)

	called := make(chan struct{}, 1)
	cw.OnReload(func(*Config) error {
		called <- struct{}{}
		return nil
	})

	writeConfig(t, path, "[cache]\nworkers = 0\n")
	require.Error(t, cw.reload())
	assert.Empty(t, called)

	require.NoError(t, cw.Stop())
	require.NoError(t, cw.Stop(), "stop is idempotent")
}
