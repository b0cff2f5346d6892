package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
	ilsptest "github.com/teranos/ilsp/internal/testing"
	"github.com/teranos/ilsp/version"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	goleak.VerifyTestMain(m)
}

const (
	cleanSource = ";;; how many\n(count = 0)\n(count)\n"
	typoSource  = "(count = 0)\n(coutn)\n"
)

// run executes args against a fresh root in an isolated home directory
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)

	checkFormat = FormatText
	configFormat = FormatTOML
	configSources = false
	configForce = false
	configProject = false

	root := &cobra.Command{Use: "ilsp", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringP("config", "c", "", "")
	root.AddCommand(CheckCmd, ConfigCmd, VersionCmd)
	resetFlags(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// resetFlags restores every flag in the tree; subcommands are package
// globals and keep parsed values between executions
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestCheck_CleanWorkspace(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"main.il":         cleanSource,
		"lib/util.il":     "(y = 1)\n(y)\n",
		"notes/readme.md": "(not analysed)\n",
	})

	out, err := run(t, root, "check", ".")
	require.NoError(t, err)
	assert.Contains(t, out, "2 files checked: 0 errors, 0 warnings")
}

func TestCheck_ErrorsExitNonZero(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"main.il": typoSource,
	})

	out, err := run(t, root, "check", "main.il")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckFailed))
	assert.Contains(t, out, "main.il:2:2:")
	assert.Contains(t, out, `did you mean "count"?`)
	assert.Contains(t, out, "1 files checked: 1 errors, 0 warnings")
}

func TestCheck_JSONOutput(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"a.il": cleanSource,
		"b.il": typoSource,
	})

	out, err := run(t, root, "check", "--format", "json", root)
	require.ErrorIs(t, err, ErrCheckFailed)

	var result CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Files, 2)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, filepath.Join(root, "a.il"), result.Files[0].Path)
	assert.Empty(t, result.Files[0].Diagnostics)
	require.Len(t, result.Files[1].Diagnostics, 1)
	assert.Equal(t, "use-before-declaration", result.Files[1].Diagnostics[0].Code)
}

func TestCheck_YAMLOutput(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"a.il": cleanSource,
	})

	out, err := run(t, root, "check", "-f", "yaml", ".")
	require.NoError(t, err)

	var result CheckResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	require.Len(t, result.Files, 1)
	assert.Zero(t, result.Errors)
}

func TestCheck_ConfigAppliesToAnalysis(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"main.il":   "(x = nil)\n",
		"ilsp.toml": "[analysis]\nexempt_literals = true\n",
	})

	out, err := run(t, root, "check", "main.il")
	require.NoError(t, err)
	assert.Contains(t, out, "0 errors")
}

func TestCheck_UnknownFormat(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, root, "check", "--format", "xml", ".")
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestCheck_MissingPath(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, root, "check", "does-not-exist")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCheckFailed))
}

func TestConfigInit_ThenShowAndCheck(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "custom.toml")

	out, err := run(t, root, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")
	require.FileExists(t, path)

	_, err = run(t, root, "config", "init", path)
	require.Error(t, err, "existing file without --force")

	_, err = run(t, root, "config", "init", "--force", path)
	require.NoError(t, err)
	assert.FileExists(t, path+".back1")

	out, err = run(t, root, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = run(t, root, "--config", path, "config", "show", "--format", "json")
	require.NoError(t, err)
	var cfg am.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, am.Defaults().Analysis.DocPrefix, cfg.Analysis.DocPrefix)
}

func TestConfigInit_Project(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, root, "config", "init", "--project")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, am.ProjectConfigName))
}

func TestConfigCheck_UnknownKey(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"ilsp.toml": "[analysis]\nexempt_literal = true\n",
	})

	out, err := run(t, root, "config", "check")
	require.Error(t, err)
	assert.Contains(t, out, "analysis.exempt_literal")
	assert.Contains(t, out, "ilsp config show")
}

func TestConfigCheck_DefaultsOnly(t *testing.T) {
	out, err := run(t, t.TempDir(), "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "built-in defaults")
}

func TestConfigShow_Sources(t *testing.T) {
	root := ilsptest.CreateTestWorkspace(t, map[string]string{
		"ilsp.toml": "[analysis]\ndoc_prefix = \";;\"\n",
	})

	out, err := run(t, root, "config", "show", "--sources")
	require.NoError(t, err)
	assert.Contains(t, out, "analysis.doc_prefix")
	assert.Contains(t, out, "project")

	out, err = run(t, root, "config", "show", "--sources", "--format", "yaml")
	require.NoError(t, err)
	var intro am.ConfigIntrospection
	require.NoError(t, yaml.Unmarshal([]byte(out), &intro))
	setting, ok := intro.Setting("analysis.doc_prefix")
	require.True(t, ok)
	assert.Equal(t, am.SourceProject, setting.Source)
}

func TestConfigShow_TOMLRoundTrips(t *testing.T) {
	root := t.TempDir()
	out, err := run(t, root, "config", "show")
	require.NoError(t, err)

	path := filepath.Join(root, "shown.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
	unknown, err := am.CheckFile(path)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Get().String())

	out, err = run(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Get().GoVersion, info.GoVersion)
}
