package am

import (
	"net/url"

	"github.com/teranos/ilsp/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportWebSocket:
		if c.Server.Address == "" {
			return errors.New("server.address cannot be empty for the websocket transport")
		}
	default:
		return errors.WithHint(
			errors.Newf("server.transport %q is not supported", c.Server.Transport),
			"use \"stdio\" or \"websocket\"",
		)
	}

	for _, origin := range c.Server.AllowedOrigins {
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.WithHint(
				errors.Newf("server.allowed_origins entry %q is not an origin", origin),
				"use scheme://host or scheme://host:port, e.g. \"http://localhost\"",
			)
		}
	}

	if c.Analysis.DocPrefix == "" {
		return errors.New("analysis.doc_prefix cannot be empty")
	}

	if len(c.Workspace.Extensions) == 0 {
		return errors.New("workspace.extensions cannot be empty")
	}
	for _, ext := range c.Workspace.Extensions {
		if ext == "" || ext[0] != '.' {
			return errors.Newf("workspace.extensions entry %q must start with '.'", ext)
		}
	}
	if c.Workspace.ScanConcurrency <= 0 {
		return errors.Newf("workspace.scan_concurrency must be > 0, got %d", c.Workspace.ScanConcurrency)
	}
	if c.Workspace.WatchDebounceMs < 0 {
		return errors.Newf("workspace.watch_debounce_ms must be >= 0, got %d", c.Workspace.WatchDebounceMs)
	}
	// 0 = unlimited
	if c.Workspace.MaxParsesPerSecond < 0 {
		return errors.Newf("workspace.max_parses_per_second must be >= 0, got %g", c.Workspace.MaxParsesPerSecond)
	}

	if c.Cache.Shards <= 0 {
		return errors.Newf("cache.shards must be > 0, got %d", c.Cache.Shards)
	}
	if c.Cache.Workers <= 0 {
		return errors.Newf("cache.workers must be > 0, got %d", c.Cache.Workers)
	}

	return nil
}
