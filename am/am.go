// Package am loads, validates and persists the ilsp configuration.
//
// Configuration is layered, lowest precedence first: built-in defaults,
// the user file ~/.ilsp/config.toml, the nearest project ilsp.toml found
// walking up from the working directory, an explicit --config file, and
// ILSP_* environment variables.
package am

// Config represents the ilsp configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" toml:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" toml:"log" yaml:"log"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" toml:"analysis" yaml:"analysis"`
	Workspace WorkspaceConfig `mapstructure:"workspace" toml:"workspace" yaml:"workspace"`
	Cache     CacheConfig     `mapstructure:"cache" toml:"cache" yaml:"cache"`
}

// ServerConfig configures the language server transport
type ServerConfig struct {
	Transport      string   `mapstructure:"transport" toml:"transport" yaml:"transport"` // stdio | websocket
	Address        string   `mapstructure:"address" toml:"address" yaml:"address"`       // websocket listen address
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins"`
}

// Transport names
const (
	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
)

// LogConfig configures the global logger
type LogConfig struct {
	File      string `mapstructure:"file" toml:"file" yaml:"file"` // empty = stderr
	JSON      bool   `mapstructure:"json" toml:"json" yaml:"json"`
	Verbosity int    `mapstructure:"verbosity" toml:"verbosity" yaml:"verbosity"`
}

// AnalysisConfig configures the annotator
type AnalysisConfig struct {
	DocPrefix       string   `mapstructure:"doc_prefix" toml:"doc_prefix" yaml:"doc_prefix"`
	ScopingKeywords []string `mapstructure:"scoping_keywords" toml:"scoping_keywords" yaml:"scoping_keywords"`
	ExemptLiterals  bool     `mapstructure:"exempt_literals" toml:"exempt_literals" yaml:"exempt_literals"`
	Literals        []string `mapstructure:"literals" toml:"literals" yaml:"literals"`
	Predeclared     []string `mapstructure:"predeclared" toml:"predeclared" yaml:"predeclared"`
	Suggestions     bool     `mapstructure:"suggestions" toml:"suggestions" yaml:"suggestions"`
}

// WorkspaceConfig configures file discovery and watching
type WorkspaceConfig struct {
	Extensions         []string `mapstructure:"extensions" toml:"extensions" yaml:"extensions"`
	Include            []string `mapstructure:"include" toml:"include" yaml:"include"`
	Exclude            []string `mapstructure:"exclude" toml:"exclude" yaml:"exclude"`
	ScanConcurrency    int      `mapstructure:"scan_concurrency" toml:"scan_concurrency" yaml:"scan_concurrency"`
	FollowSymlinks     bool     `mapstructure:"follow_symlinks" toml:"follow_symlinks" yaml:"follow_symlinks"`
	Watch              bool     `mapstructure:"watch" toml:"watch" yaml:"watch"`
	WatchDebounceMs    int      `mapstructure:"watch_debounce_ms" toml:"watch_debounce_ms" yaml:"watch_debounce_ms"`
	MaxParsesPerSecond float64  `mapstructure:"max_parses_per_second" toml:"max_parses_per_second" yaml:"max_parses_per_second"`
}

// CacheConfig sizes the symbol cache and its update workers
type CacheConfig struct {
	Shards  int `mapstructure:"shards" toml:"shards" yaml:"shards"`
	Workers int `mapstructure:"workers" toml:"workers" yaml:"workers"`
}

// Locations of configuration files
const (
	DirName           = ".ilsp"
	UserConfigName    = "config.toml"
	ProjectConfigName = "ilsp.toml"
	EnvPrefix         = "ILSP"
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
