package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
)

// ConfigCmd manages the ilsp configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the ilsp configuration",
	Long: `Manage the ilsp configuration.

Configuration cascade (later overrides earlier):
  1. [DEFAULT]     Built-in defaults
  2. [USER]        ~/.ilsp/config.toml
  3. [PROJECT]     ilsp.toml (searches up from the working directory)
  4. [EXPLICIT]    --config FILE
  5. [ENVIRONMENT] ILSP_* variables (ILSP_ANALYSIS_DOC_PREFIX, ...)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration",
	Long: `Write the built-in configuration as TOML. PATH defaults to the user config
~/.ilsp/config.toml, or ./ilsp.toml with --project.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configCheckCmd = &cobra.Command{
	Use:   "check [PATH...]",
	Short: "Validate configuration files",
	Long: `Validate configuration files strictly: unknown keys and invalid values are
errors. Without arguments every file in the active cascade is checked.`,
	RunE: runConfigCheck,
}

var (
	configForce   bool
	configProject bool
	configFormat  string
	configSources bool
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file (kept as .back1)")
	configInitCmd.Flags().BoolVar(&configProject, "project", false, "Write ./ilsp.toml instead of the user config")
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", FormatTOML, "Output format (toml, json, yaml)")
	configShowCmd.Flags().BoolVar(&configSources, "sources", false, "Show where each setting comes from")

	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configCheckCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := am.UserConfigPath()
	switch {
	case len(args) == 1:
		path = args[0]
	case configProject:
		path = am.ProjectConfigName
	}
	if path == "" {
		return errors.WithHint(errors.New("no home directory"), "pass an explicit PATH")
	}

	if err := am.WriteDefault(path, configForce); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Wrote default configuration to %s", abs)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, intro, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !configSources {
		return encode(out, configFormat, cfg)
	}
	if configFormat != FormatTOML {
		return encode(out, configFormat, intro)
	}

	// toml has no natural shape for the introspection list, print it
	fmt.Fprintln(out, "Configuration files (later overrides earlier):")
	if len(intro.Files) == 0 {
		fmt.Fprintln(out, "  (none, built-in defaults only)")
	}
	for _, f := range intro.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	fmt.Fprintln(out)

	summary := intro.Summary()
	sources := make([]string, 0, len(summary))
	for s := range summary {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Fprintf(out, "%s: %d settings\n", s, summary[am.ConfigSource(s)])
	}
	fmt.Fprintln(out)

	for _, s := range intro.Settings {
		where := string(s.Source)
		if s.SourcePath != "" && s.Source != am.SourceDefault {
			where = fmt.Sprintf("%s %s", s.Source, s.SourcePath)
		}
		fmt.Fprintf(out, "  %-36s = %-24v [%s]\n", s.Key, s.Value, where)
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	files := args
	if len(files) == 0 {
		explicit, _ := cmd.Flags().GetString("config")
		_, intro, err := am.LoadWithSources(explicit)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		files = intro.Files
		if len(files) == 0 {
			pterm.Info.WithWriter(out).Println("No configuration files found, built-in defaults are valid")
			return nil
		}
	}

	var failed int
	for _, f := range files {
		if err := am.ValidateFile(f); err != nil {
			failed++
			pterm.Error.WithWriter(out).Printfln("%v", err)
			for _, hint := range errors.GetAllHints(err) {
				pterm.Info.WithWriter(out).Println(hint)
			}
			continue
		}
		pterm.Success.WithWriter(out).Printfln("%s is valid", f)
	}
	if failed > 0 {
		return errors.Newf("%d of %d configuration files are invalid", failed, len(files))
	}
	return nil
}
