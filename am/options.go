package am

import (
	"time"

	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/il/cache"
	"github.com/teranos/ilsp/il/workspace"
)

// AnalysisOptions converts the analysis section into annotator options
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		DocPrefix:       c.Analysis.DocPrefix,
		ScopingKeywords: append([]string(nil), c.Analysis.ScopingKeywords...),
		ExemptLiterals:  c.Analysis.ExemptLiterals,
		Literals:        append([]string(nil), c.Analysis.Literals...),
		Predeclared:     append([]string(nil), c.Analysis.Predeclared...),
		Suggestions:     c.Analysis.Suggestions,
	}
}

// Filter returns the workspace file filter
func (c *Config) Filter() workspace.Filter {
	return workspace.Filter{
		Extensions: append([]string(nil), c.Workspace.Extensions...),
		Include:    append([]string(nil), c.Workspace.Include...),
		Exclude:    append([]string(nil), c.Workspace.Exclude...),
	}
}

// ScanOptions returns the settings for the initial workspace scan
func (c *Config) ScanOptions() workspace.ScanOptions {
	return workspace.ScanOptions{
		Filter:         c.Filter(),
		Concurrency:    c.Workspace.ScanConcurrency,
		FollowSymlinks: c.Workspace.FollowSymlinks,
	}
}

// WatchOptions returns the file watcher settings
func (c *Config) WatchOptions() workspace.WatchOptions {
	return workspace.WatchOptions{
		Filter:       c.Filter(),
		Debounce:     time.Duration(c.Workspace.WatchDebounceMs) * time.Millisecond,
		MaxPerSecond: c.Workspace.MaxParsesPerSecond,
	}
}

// WorkerConfig returns the update worker settings
func (c *Config) WorkerConfig() cache.WorkerConfig {
	cfg := cache.DefaultWorkerConfig()
	cfg.Workers = c.Cache.Workers
	return cfg
}
