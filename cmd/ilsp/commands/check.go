package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/il/cache"
	"github.com/teranos/ilsp/il/workspace"
	"github.com/teranos/ilsp/logger"
)

// ErrCheckFailed is returned when a checked file has error diagnostics
var ErrCheckFailed = errors.New("check found errors")

// CheckCmd analyses files and prints their diagnostics
var CheckCmd = &cobra.Command{
	Use:   "check PATH...",
	Short: "Analyse .il files and print diagnostics",
	Long: `Analyse the given files and directories with the same rules the language
server uses. Directories are scanned with the workspace filter from the config.

Exits with status 1 when any error diagnostic is reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var checkFormat string

func init() {
	CheckCmd.Flags().StringVarP(&checkFormat, "format", "f", FormatText, "Output format (text, json, yaml)")
}

// CheckFile is the machine-readable result for one file
type CheckFile struct {
	Path        string                `json:"path" yaml:"path"`
	Diagnostics []analysis.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// CheckResult is the machine-readable result of a check run
type CheckResult struct {
	Files    []CheckFile `json:"files" yaml:"files"`
	Errors   int         `json:"errors" yaml:"errors"`
	Warnings int         `json:"warnings" yaml:"warnings"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	switch checkFormat {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return errors.WithHintf(errors.Newf("unknown format %q", checkFormat),
			"use one of %s, %s, %s", FormatText, FormatJSON, FormatYAML)
	}

	cfg, _, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.ComponentLogger("check")
	annotator := analysis.NewAnnotator(cfg.AnalysisOptions(), log)
	c := cache.New(annotator, cache.WithShards(cfg.Cache.Shards), cache.WithLogger(log))

	var result CheckResult
	for _, path := range args {
		report, err := workspace.Scan(cmd.Context(), c, path, cfg.ScanOptions(), log)
		if err != nil {
			return errors.Wrapf(err, "check %s", path)
		}
		errs, warnings := report.Counts()
		result.Errors += errs
		result.Warnings += warnings
		for _, f := range report.Files {
			result.Files = append(result.Files, CheckFile{Path: f.Path, Diagnostics: f.Diagnostics()})
		}
	}

	logger.Debugw("Check finished",
		logger.FieldCount, len(result.Files),
		"errors", result.Errors,
		"warnings", result.Warnings,
	)

	out := cmd.OutOrStdout()
	if checkFormat == FormatText {
		printCheck(out, result)
	} else if err := encode(out, checkFormat, result); err != nil {
		return err
	}

	if result.Errors > 0 {
		return ErrCheckFailed
	}
	return nil
}

func printCheck(w io.Writer, result CheckResult) {
	cwd, _ := os.Getwd()
	for _, f := range result.Files {
		name := f.Path
		if rel, err := filepath.Rel(cwd, f.Path); err == nil && cwd != "" {
			name = rel
		}
		for _, d := range f.Diagnostics {
			severityPrinter(d.Severity).WithWriter(w).Printfln("%s:%d:%d: %s [%s]",
				name, d.Range.Start.Line+1, d.Range.Start.Character+1, d.Message, d.Code)
		}
	}

	if result.Errors > 0 {
		pterm.Error.WithWriter(w).Printfln("%d files checked: %d errors, %d warnings",
			len(result.Files), result.Errors, result.Warnings)
		return
	}
	pterm.Success.WithWriter(w).Printfln("%d files checked: %d errors, %d warnings",
		len(result.Files), result.Errors, result.Warnings)
}

func severityPrinter(s analysis.Severity) pterm.PrefixPrinter {
	switch s {
	case analysis.SeverityError:
		return pterm.Error
	case analysis.SeverityWarning:
		return pterm.Warning
	}
	return pterm.Info
}
