package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/ilsp/errors"
)

// Load reads the configuration from every layer. explicitPath, when not
// empty, names a file that must exist and takes precedence over the user
// and project files.
func Load(explicitPath string) (*Config, error) {
	cfg, _, err := LoadWithSources(explicitPath)
	return cfg, err
}

// LoadWithSources is Load that also reports where every setting came from
func LoadWithSources(explicitPath string) (*Config, *ConfigIntrospection, error) {
	v, sources, files, err := newViper(explicitPath)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, introspect(v, sources, files), nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads defaults overlaid with a single file, ignoring the
// other layers and the environment
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := mergeFile(v, configPath, SourceExplicit, map[string]SourceInfo{}); err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// UserConfigPath returns ~/.ilsp/config.toml, or "" without a home directory
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, UserConfigName)
}

// FindProjectConfig searches for ilsp.toml by walking up from dir.
// Returns the path to the first file found, or empty string if none found.
func FindProjectConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			return ""
		}
		dir = parent
	}
}

type layer struct {
	path   string
	source ConfigSource
}

// layers lists the config files in precedence order, lowest first
func layers(explicitPath string) []layer {
	out := []layer{{path: UserConfigPath(), source: SourceUser}}
	if wd, err := os.Getwd(); err == nil {
		out = append(out, layer{path: FindProjectConfig(wd), source: SourceProject})
	}
	if explicitPath != "" {
		out = append(out, layer{path: explicitPath, source: SourceExplicit})
	}
	return out
}

// newViper builds the layered viper instance and records, per key, the
// file that last set it
func newViper(explicitPath string) (*viper.Viper, map[string]SourceInfo, []string, error) {
	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	sources := make(map[string]SourceInfo)
	var files []string
	for _, l := range layers(explicitPath) {
		if l.path == "" {
			continue
		}
		if _, err := os.Stat(l.path); err != nil {
			if l.source == SourceExplicit {
				return nil, nil, nil, errors.Wrapf(err, "config file %s", l.path)
			}
			continue
		}
		if err := mergeFile(v, l.path, l.source, sources); err != nil {
			return nil, nil, nil, err
		}
		files = append(files, l.path)
	}
	return v, sources, files, nil
}

// mergeFile merges one TOML file into v
func mergeFile(v *viper.Viper, path string, source ConfigSource, sources map[string]SourceInfo) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("toml")
	if err := file.ReadInConfig(); err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "failed to read config file %s", path),
			"run 'ilsp config check "+path+"' for details",
		)
	}

	if err := v.MergeConfigMap(file.AllSettings()); err != nil {
		return errors.Wrapf(err, "failed to merge config file %s", path)
	}
	for _, key := range file.AllKeys() {
		sources[key] = SourceInfo{Source: source, Path: path}
	}
	return nil
}
