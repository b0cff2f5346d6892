package am

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/ilsp/errors"
)

// CheckFile decodes path strictly and returns the keys that do not map to
// any configuration field. Viper silently ignores such keys, so a typo like
// "exempt_literal" would otherwise have no effect.
func CheckFile(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)
	return unknown, nil
}

// ValidateFile is CheckFile that treats unknown keys as an error and also
// validates the file merged over the defaults
func ValidateFile(path string) error {
	unknown, err := CheckFile(path)
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		return errors.WithHint(
			errors.Newf("%s: unknown config keys %v", path, unknown),
			"run 'ilsp config show' to list the supported keys",
		)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		return err
	}
	return errors.Wrapf(cfg.Validate(), "%s", path)
}
