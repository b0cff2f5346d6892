package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/logger"
)

// ScanOptions configures the initial workspace scan
type ScanOptions struct {
	Filter         Filter
	Concurrency    int
	FollowSymlinks bool
}

// DefaultScanOptions returns the scan settings used without configuration
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Filter:         DefaultFilter(),
		Concurrency:    4,
		FollowSymlinks: true,
	}
}

// Updater refreshes the analysis of one file
type Updater interface {
	Update(ctx context.Context, path string) (analysis.Result, error)
}

// FileReport is the outcome of analysing one file
type FileReport struct {
	Path   string          `json:"path" yaml:"path"`
	Result analysis.Result `json:"result" yaml:"result"`
	Err    error           `json:"-" yaml:"-"`
}

// Diagnostics returns the file's diagnostics; an unreadable file yields a
// single warning
func (f FileReport) Diagnostics() []analysis.Diagnostic {
	if f.Err != nil {
		return []analysis.Diagnostic{analysis.UnreadableDiagnostic(f.Err)}
	}
	return f.Result.Diagnostics
}

// Report summarises a scan
type Report struct {
	Root     string        `json:"root" yaml:"root"`
	Files    []FileReport  `json:"files" yaml:"files"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Counts returns the number of error and warning diagnostics
func (r Report) Counts() (errs, warnings int) {
	for _, f := range r.Files {
		for _, d := range f.Diagnostics() {
			switch d.Severity {
			case analysis.SeverityError:
				errs++
			case analysis.SeverityWarning:
				warnings++
			}
		}
	}
	return errs, warnings
}

// Scan collects the files under root and analyses each of them
func Scan(ctx context.Context, u Updater, root string, opts ScanOptions, log *zap.SugaredLogger) (Report, error) {
	if log == nil {
		log = logger.ComponentLogger("il.workspace")
	}
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return Report{}, errors.Wrapf(err, "resolve root %s", root)
	}

	paths, err := Collect(ctx, abs, opts)
	if err != nil {
		return Report{}, err
	}

	files, err := UpdateAll(ctx, u, paths, opts.Concurrency)
	if err != nil {
		return Report{}, err
	}

	report := Report{Root: abs, Files: files, Duration: time.Since(start)}
	errs, warnings := report.Counts()
	log.Infow("Workspace scanned",
		logger.FieldRoot, abs,
		logger.FieldCount, len(files),
		"errors", errs,
		"warnings", warnings,
		logger.FieldDurationMS, report.Duration.Milliseconds(),
	)
	return report, nil
}

// UpdateAll runs u.Update on every path with at most concurrency updates in
// flight. Per-file failures are recorded in the reports; only cancellation
// aborts the batch.
func UpdateAll(ctx context.Context, u Updater, paths []string, concurrency int) ([]FileReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	reports := make([]FileReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := u.Update(gctx, p)
			reports[i] = FileReport{Path: p, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "workspace update")
	}
	return reports, nil
}

// Collect returns the sorted absolute paths of the files under root
// selected by opts.Filter. Symlinked directories are followed once each when
// FollowSymlinks is set.
func Collect(ctx context.Context, root string, opts ScanOptions) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "stat root %s", abs)
	}
	if !info.IsDir() {
		// a single file is its own workspace
		return []string{abs}, nil
	}

	c := &collector{
		root:    abs,
		opts:    opts,
		visited: make(map[string]struct{}),
	}
	if err := c.walk(ctx, abs, abs); err != nil {
		return nil, err
	}
	sort.Strings(c.paths)
	return c.paths, nil
}

type collector struct {
	root    string
	opts    ScanOptions
	visited map[string]struct{}
	paths   []string
}

// walk visits dir, resolved through any symlinks, under the logical path
// prefix
func (c *collector) walk(ctx context.Context, dir, prefix string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", dir)
	}
	if _, seen := c.visited[real]; seen {
		return nil
	}
	c.visited[real] = struct{}{}

	return filepath.WalkDir(real, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == real {
				return err
			}
			// unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		logical := filepath.Join(prefix, mustRel(real, p))
		rel := mustRel(c.root, logical)

		switch {
		case d.IsDir():
			if p == real {
				return nil
			}
			if c.opts.Filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			// p is already resolved; a symlink to it may have been walked first
			if _, seen := c.visited[p]; seen {
				return filepath.SkipDir
			}
			c.visited[p] = struct{}{}
		case d.Type()&fs.ModeSymlink != 0:
			if !c.opts.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(p)
			if err != nil {
				return nil
			}
			if target.IsDir() {
				if c.opts.Filter.SkipDir(rel) {
					return nil
				}
				return c.walk(ctx, p, logical)
			}
			if c.opts.Filter.Match(rel) {
				c.paths = append(c.paths, logical)
			}
		case d.Type().IsRegular():
			if c.opts.Filter.Match(rel) {
				c.paths = append(c.paths, logical)
			}
		}
		return nil
	})
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
