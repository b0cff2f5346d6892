package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and Defaults
const (
	DefaultTransport       = TransportStdio
	DefaultAddress         = "127.0.0.1:7998"
	DefaultVerbosity       = 1
	DefaultDocPrefix       = ";;;"
	DefaultScanConcurrency = 4
	DefaultDebounceMs      = 200
	DefaultMaxParsesPerSec = 50
	DefaultShards          = 32
	DefaultWorkers         = 4
)

var (
	defaultAllowedOrigins  = []string{"http://localhost", "http://127.0.0.1"}
	defaultScopingKeywords = []string{"let", "prog"}
	defaultLiterals        = []string{"t", "nil"}
	defaultExtensions      = []string{".il"}
	defaultInclude         = []string{"**/*"}
	defaultExclude         = []string{"**/.git/**", "**/node_modules/**"}
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", DefaultTransport)
	v.SetDefault("server.address", DefaultAddress)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins)

	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", DefaultVerbosity)

	v.SetDefault("analysis.doc_prefix", DefaultDocPrefix)
	v.SetDefault("analysis.scoping_keywords", defaultScopingKeywords)
	v.SetDefault("analysis.exempt_literals", false) // literals are ordinary names unless exempted
	v.SetDefault("analysis.literals", defaultLiterals)
	v.SetDefault("analysis.predeclared", []string{})
	v.SetDefault("analysis.suggestions", true)

	v.SetDefault("workspace.extensions", defaultExtensions)
	v.SetDefault("workspace.include", defaultInclude)
	v.SetDefault("workspace.exclude", defaultExclude)
	v.SetDefault("workspace.scan_concurrency", DefaultScanConcurrency)
	v.SetDefault("workspace.follow_symlinks", true)
	v.SetDefault("workspace.watch", true)
	v.SetDefault("workspace.watch_debounce_ms", DefaultDebounceMs)
	v.SetDefault("workspace.max_parses_per_second", DefaultMaxParsesPerSec)

	v.SetDefault("cache.shards", DefaultShards)
	v.SetDefault("cache.workers", DefaultWorkers)
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:      DefaultTransport,
			Address:        DefaultAddress,
			AllowedOrigins: append([]string(nil), defaultAllowedOrigins...),
		},
		Log: LogConfig{Verbosity: DefaultVerbosity},
		Analysis: AnalysisConfig{
			DocPrefix:       DefaultDocPrefix,
			ScopingKeywords: append([]string(nil), defaultScopingKeywords...),
			Literals:        append([]string(nil), defaultLiterals...),
			Predeclared:     []string{},
			Suggestions:     true,
		},
		Workspace: WorkspaceConfig{
			Extensions:         append([]string(nil), defaultExtensions...),
			Include:            append([]string(nil), defaultInclude...),
			Exclude:            append([]string(nil), defaultExclude...),
			ScanConcurrency:    DefaultScanConcurrency,
			FollowSymlinks:     true,
			Watch:              true,
			WatchDebounceMs:    DefaultDebounceMs,
			MaxParsesPerSecond: DefaultMaxParsesPerSec,
		},
		Cache: CacheConfig{
			Shards:  DefaultShards,
			Workers: DefaultWorkers,
		},
	}
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Transport: %s}, Analysis: {ExemptLiterals: %t}, Cache: {Shards: %d, Workers: %d}}",
		c.Server.Transport, c.Analysis.ExemptLiterals, c.Cache.Shards, c.Cache.Workers)
}
