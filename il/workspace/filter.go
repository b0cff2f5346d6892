// Package workspace discovers the source files under a workspace root,
// analyses them in bounded parallel batches and watches them for changes.
package workspace

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects workspace files by extension and slash-separated glob
// patterns relative to the root
type Filter struct {
	Extensions []string `json:"extensions" yaml:"extensions"`
	Include    []string `json:"include" yaml:"include"`
	Exclude    []string `json:"exclude" yaml:"exclude"`
}

// DefaultFilter selects every .il file outside VCS and dependency folders
func DefaultFilter() Filter {
	return Filter{
		Extensions: []string{".il"},
		Include:    []string{"**/*"},
		Exclude:    []string{"**/.git/**", "**/node_modules/**"},
	}
}

// Match reports whether the file at rel should be analysed
func (f Filter) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !f.hasExtension(rel) {
		return false
	}
	if len(f.Include) > 0 && !matchAny(f.Include, rel) {
		return false
	}
	return !matchAny(f.Exclude, rel)
}

// SkipDir reports whether nothing below the directory rel can match
func (f Filter) SkipDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}
	// probe a child path so that "dir/**" patterns exclude the directory itself
	return matchAny(f.Exclude, path.Join(rel, "_"))
}

func (f Filter) hasExtension(rel string) bool {
	ext := path.Ext(rel)
	for _, want := range f.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
