package patcher

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sokinpui/tfx/internal/fs"
	"github.com/sokinpui/tfx/internal/textedit"
	"github.com/sokinpui/tfx/model"
)

// DefaultPreviewLines is how many lines are shown after a replace step.
const DefaultPreviewLines = 15

// Options control how a Patcher stores and reports edits.
type Options struct {
	// Writer stores new content. Defaults to fs.DiskWriter.
	Writer fs.Writer
	// DryRun computes edits and diffs without writing anything.
	DryRun bool
	// PreviewLines is the number of lines re-read after a replace step.
	PreviewLines int
}

// Outcome describes the effect of one edit on one file.
type Outcome struct {
	Path    string
	Before  string
	After   string
	Changed bool
	// Written reports whether the Writer was called.
	Written bool
	// Counts holds the occurrences replaced by each operation.
	Counts  []int
	Preview []string
	Diff    string
}

// Patcher applies text edits to target files. Every edit is a single
// load → transform → store sequence with no locking, so a concurrent
// writer between load and store loses its update.
type Patcher struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Patcher. A nil logger disables diagnostics.
func New(opts Options, logger *zap.Logger) *Patcher {
	if opts.Writer == nil {
		opts.Writer = fs.DiskWriter{}
	}
	if opts.PreviewLines < 0 {
		opts.PreviewLines = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{opts: opts, logger: logger}
}

// Append appends block to the file unless marker is already present.
func (p *Patcher) Append(path, marker, block string) (*Outcome, error) {
	if marker == "" {
		return nil, fmt.Errorf("append to %s: marker is empty", path)
	}
	before, err := fs.ReadTarget(path)
	if err != nil {
		return nil, err
	}
	after, appended := textedit.AppendIfAbsent(before, marker, block)
	p.logger.Debug("append evaluated",
		zap.String("path", path),
		zap.String("marker", marker),
		zap.Bool("appended", appended))

	out := &Outcome{Path: path, Before: before, After: after, Changed: appended}
	if !appended {
		return out, nil
	}
	return out, p.store(out)
}

// Replace folds ops over the file content and writes the result back,
// whether or not anything changed. The file is then re-read to build the
// preview. Unless strict is set, a search text that does not occur is
// skipped.
func (p *Patcher) Replace(path string, ops []model.EditOperation, strict bool) (*Outcome, error) {
	before, err := fs.ReadTarget(path)
	if err != nil {
		return nil, err
	}
	after, counts, err := textedit.ApplyReplacements(before, ops, strict)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	for i, n := range counts {
		p.logger.Debug("replacement evaluated",
			zap.String("path", path),
			zap.Int("operation", i+1),
			zap.Int("occurrences", n))
	}

	out := &Outcome{Path: path, Before: before, After: after, Changed: before != after, Counts: counts}
	if err := p.store(out); err != nil {
		return out, err
	}
	if p.opts.DryRun || p.opts.PreviewLines == 0 {
		return out, nil
	}

	written, err := fs.ReadTarget(path)
	if err != nil {
		return out, err
	}
	out.Preview = textedit.HeadLines(written, p.opts.PreviewLines)
	return out, nil
}

// Region makes the named marker-delimited region of the file hold body.
func (p *Patcher) Region(path, prefix, name, body string) (*Outcome, error) {
	before, err := fs.ReadTarget(path)
	if err != nil {
		return nil, err
	}
	after, changed, err := textedit.UpsertRegion(before, prefix, name, body)
	if err != nil {
		return nil, fmt.Errorf("region in %s: %w", path, err)
	}
	p.logger.Debug("region evaluated",
		zap.String("path", path),
		zap.String("region", name),
		zap.Bool("changed", changed))

	out := &Outcome{Path: path, Before: before, After: after, Changed: changed}
	if !changed {
		return out, nil
	}
	return out, p.store(out)
}

// store writes the outcome, or only diffs it in dry-run mode.
func (p *Patcher) store(out *Outcome) error {
	if p.opts.DryRun {
		diff, err := UnifiedDiff(out.Path, out.Before, out.After)
		if err != nil {
			return fmt.Errorf("diff %s: %w", out.Path, err)
		}
		out.Diff = diff
		return nil
	}
	if err := p.opts.Writer.WriteFile(out.Path, out.After); err != nil {
		return err
	}
	out.Written = true
	return nil
}
