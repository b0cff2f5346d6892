package commands

import (
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
)

// Output formats accepted by --format
const (
	FormatText = "text"
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// loadConfig loads the layered configuration honouring --config
func loadConfig(cmd *cobra.Command) (*am.Config, *am.ConfigIntrospection, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, intro, err := am.LoadWithSources(path)
	if err != nil {
		return nil, nil, path, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, path, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, intro, path, nil
}

// encode writes v in a structured format
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(v)
	}
	return errors.WithHintf(errors.Newf("unknown format %q", format),
		"use one of %s, %s, %s", FormatTOML, FormatJSON, FormatYAML)
}
