package tfx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sokinpui/tfx/cli"
	"github.com/sokinpui/tfx/internal/fs"
	"github.com/sokinpui/tfx/internal/nvim"
	"github.com/sokinpui/tfx/internal/patcher"
	"github.com/sokinpui/tfx/internal/recipe"
	"github.com/sokinpui/tfx/internal/source"
	"github.com/sokinpui/tfx/internal/state"
	"github.com/sokinpui/tfx/model"
)

// ProgressUpdate is called after every step with its result.
type ProgressUpdate func(result model.StepResult)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	stateManager     *state.Manager
	sourceProvider   *source.SourceProvider
	logger           *zap.Logger
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	stateManager, err := state.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &App{
		cfg:            cfg,
		stateManager:   stateManager,
		sourceProvider: source.New(cfg.RecipePath),
		logger:         logger,
	}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	return config.Build()
}

// Close flushes buffered diagnostics.
func (a *App) Close() {
	_ = a.logger.Sync()
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute() (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	default:
		return a.processContent()
	}
}

// processContent reads the recipe source and runs it.
func (a *App) processContent() (model.Summary, error) {
	src, err := a.sourceProvider.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if src.Content == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	baseDir := ""
	if a.cfg.RecipePath != "" {
		baseDir = filepath.Dir(a.cfg.RecipePath)
	}
	return a.runContent(src.Name, src.Content, baseDir)
}

func (a *App) runContent(name, content, baseDir string) (model.Summary, error) {
	format, err := recipe.DetectFormat(recipe.Format(a.cfg.Format), name, content)
	if err != nil {
		return model.Summary{}, err
	}
	r, err := recipe.Parse(content, format)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to load recipe from %s: %w", name, err)
	}
	a.logger.Debug("recipe loaded",
		zap.String("source", name),
		zap.String("format", string(format)),
		zap.String("name", r.Name),
		zap.Int("steps", len(r.Steps)))
	return a.Run(r, baseDir)
}

// resolverFor picks the directory target paths resolve against: the
// configured root, else the recipe's root relative to baseDir, else the
// working directory.
func (a *App) resolverFor(r *recipe.Recipe, baseDir string) (*fs.PathResolver, error) {
	if a.cfg.Root != "" {
		return fs.NewPathResolver(a.cfg.Root)
	}
	if r.Root == "" {
		return fs.NewPathResolver("")
	}
	base, err := fs.NewPathResolver(baseDir)
	if err != nil {
		return nil, err
	}
	return base.WithRoot(r.Root), nil
}

// Run applies every step of r in order and stops at the first failure.
// Steps applied before a failure stay applied and are journaled.
func (a *App) Run(r *recipe.Recipe, baseDir string) (model.Summary, error) {
	resolver, err := a.resolverFor(r, baseDir)
	if err != nil {
		return model.Summary{}, err
	}

	writer, closeWriter, err := a.newWriter()
	if err != nil {
		return model.Summary{}, err
	}
	defer closeWriter()

	summary := model.Summary{}
	if r.Name != "" {
		summary.Message = fmt.Sprintf("Recipe %s", r.Name)
	}
	if a.cfg.DryRun {
		summary.Message += " (dry run, nothing written)"
	}

	var (
		ops     []state.Operation
		runErr  error
		touched = make(map[string]bool)
	)
	for _, step := range r.Steps {
		result, op, err := a.runStep(step, resolver, writer)
		if err != nil {
			result.Status = model.StatusFailed
			result.Message = err.Error()
			summary.Failed = append(summary.Failed, result.Path)
			runErr = fmt.Errorf("step %s: %w", step.ID, err)
		}
		summary.Steps = append(summary.Steps, result)
		a.report(result)

		if op != nil {
			ops = append(ops, *op)
		}
		if result.Status == model.StatusApplied && !a.cfg.DryRun && !touched[result.Path] {
			touched[result.Path] = true
			summary.Modified = append(summary.Modified, result.Path)
		}
		if runErr != nil {
			break
		}
	}

	if len(ops) > 0 {
		runID := state.NewRunID()
		if err := a.stateManager.Write(runID, ops); err != nil {
			if runErr == nil {
				runErr = err
			}
			a.logger.Warn("journal not written", zap.Error(err))
		} else {
			summary.RunID = runID
		}
	}

	a.relativizeSummaryPaths(&summary)
	return summary, runErr
}

// runStep applies one step. It returns a journal operation when the step
// changed the file on disk.
func (a *App) runStep(step recipe.Step, resolver *fs.PathResolver, writer fs.Writer) (model.StepResult, *state.Operation, error) {
	path := resolver.Resolve(step.File)
	result := model.StepResult{StepID: step.ID, Kind: step.Kind, Path: path}
	key := stepKey(step)

	previewLines := a.cfg.PreviewLines
	if step.Preview != nil {
		previewLines = *step.Preview
	}
	p := patcher.New(patcher.Options{
		Writer:       writer,
		DryRun:       a.cfg.DryRun,
		PreviewLines: previewLines,
	}, a.logger.With(zap.String("step", step.ID)))

	would := ""
	if a.cfg.DryRun {
		would = "would be "
	}

	var (
		out *patcher.Outcome
		err error
	)
	switch step.Kind {
	case model.KindAppend:
		out, err = p.Append(path, step.Marker, step.Block)
		if err != nil {
			return result, nil, err
		}
		if out.Changed {
			result.Status = model.StatusApplied
			result.Message = fmt.Sprintf("%s %sadded to %s", step.Marker, would, path)
		} else {
			result.Status = model.StatusUnchanged
			result.Message = fmt.Sprintf("%s already present", step.Marker)
		}

	case model.KindReplace:
		if !a.cfg.Force && a.stateManager.IsApplied(key, path) {
			result.Status = model.StatusSkipped
			result.Message = "already applied (use --force to run it again)"
			return result, nil, nil
		}
		out, err = p.Replace(path, step.Replacements, step.Strict || a.cfg.Strict)
		if err != nil {
			return result, nil, err
		}
		total, missing := 0, 0
		for _, n := range out.Counts {
			total += n
			if n == 0 {
				missing++
			}
		}
		if out.Changed {
			result.Status = model.StatusApplied
			result.Message = fmt.Sprintf("%s %smodified: %d occurrence(s) replaced", path, would, total)
		} else {
			result.Status = model.StatusUnchanged
			result.Message = fmt.Sprintf("%s unchanged: no search text matched", path)
		}
		if missing > 0 && out.Changed {
			result.Message += fmt.Sprintf(", %d operation(s) matched nothing", missing)
		}
		result.Preview = out.Preview

	case model.KindRegion:
		out, err = p.Region(path, step.CommentPrefix, step.Region, step.Block)
		if err != nil {
			return result, nil, err
		}
		if out.Changed {
			result.Status = model.StatusApplied
			result.Message = fmt.Sprintf("region %s %supdated in %s", step.Region, would, path)
		} else {
			result.Status = model.StatusUnchanged
			result.Message = fmt.Sprintf("region %s already up to date", step.Region)
		}

	default:
		return result, nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}

	result.Diff = out.Diff
	if !out.Written || !out.Changed {
		return result, nil, nil
	}

	beforeHash, err := a.stateManager.SaveSnapshot(out.Before)
	if err != nil {
		return result, nil, err
	}
	afterHash, err := a.stateManager.SaveSnapshot(out.After)
	if err != nil {
		return result, nil, err
	}
	return result, &state.Operation{
		StepKey:    key,
		Path:       path,
		BeforeHash: beforeHash,
		AfterHash:  afterHash,
	}, nil
}

func stepKey(step recipe.Step) string {
	parts := []string{string(step.Kind), step.Marker, step.Block, step.Region, step.CommentPrefix}
	for _, op := range step.Replacements {
		parts = append(parts, op.Search, op.Replace)
	}
	return state.StepKey(step.ID, parts...)
}

func (a *App) report(result model.StepResult) {
	a.logger.Info("step finished",
		zap.String("step", result.StepID),
		zap.String("kind", string(result.Kind)),
		zap.String("path", result.Path),
		zap.String("status", string(result.Status)))
	if a.progressCallback != nil {
		a.progressCallback(result)
	}
}

// newWriter returns the configured Writer and a function releasing it.
func (a *App) newWriter() (fs.Writer, func(), error) {
	if !a.cfg.Nvim || a.cfg.DryRun {
		return fs.DiskWriter{}, func() {}, nil
	}
	manager, err := nvim.New()
	if err != nil {
		return nil, nil, err
	}
	return manager, manager.Close, nil
}

// undoLastOperation restores every file of the last run to its content
// before the run, newest step first.
func (a *App) undoLastOperation() (model.Summary, error) {
	entry, err := a.stateManager.GetEntryToUndo()
	if err != nil {
		return model.Summary{}, err
	}
	if entry == nil {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	ops := make([]state.Operation, len(entry.Operations))
	for i, op := range entry.Operations {
		ops[len(ops)-1-i] = op
	}
	summary, err := a.restore(ops, func(op state.Operation) (string, string) {
		return op.AfterHash, op.BeforeHash
	})
	summary.RunID = entry.RunID
	summary.Message = "Undid last operation."
	return summary, err
}

// redoLastOperation reapplies the last undone run, oldest step first.
func (a *App) redoLastOperation() (model.Summary, error) {
	entry, err := a.stateManager.GetEntryToRedo()
	if err != nil {
		return model.Summary{}, err
	}
	if entry == nil {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	summary, err := a.restore(entry.Operations, func(op state.Operation) (string, string) {
		return op.BeforeHash, op.AfterHash
	})
	summary.RunID = entry.RunID
	summary.Message = "Redid last undone operation."
	return summary, err
}

// restore writes, for each operation, the snapshot named by the second
// hash, provided the file still holds the content named by the first.
func (a *App) restore(ops []state.Operation, hashes func(state.Operation) (expect, target string)) (model.Summary, error) {
	writer, closeWriter, err := a.newWriter()
	if err != nil {
		return model.Summary{}, err
	}
	defer closeWriter()

	var summary model.Summary
	done := make(map[string]bool)
	failed := make(map[string]bool)
	for _, op := range ops {
		expect, target := hashes(op)
		if err := a.restoreFile(writer, op.Path, expect, target); err != nil {
			a.logger.Warn("restore failed", zap.String("path", op.Path), zap.Error(err))
			if !failed[op.Path] {
				failed[op.Path] = true
				summary.Failed = append(summary.Failed, op.Path)
			}
			continue
		}
		if !done[op.Path] {
			done[op.Path] = true
			summary.Modified = append(summary.Modified, op.Path)
		}
	}

	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) restoreFile(writer fs.Writer, path, expectHash, targetHash string) error {
	current, err := fs.ReadTarget(path)
	if err != nil {
		return err
	}
	// Core safety check: if the file has been changed since, leave it alone.
	if fs.HashContent(current) != expectHash {
		return fmt.Errorf("%s changed since the recorded run", path)
	}
	content, err := a.stateManager.LoadSnapshot(targetHash)
	if err != nil {
		return err
	}
	return writer.WriteFile(path, content)
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		// Cannot get CWD, so we can't make paths relative.
		return
	}

	makeRelative := func(p string) string {
		rel, err := filepath.Rel(wd, p)
		if err != nil || filepath.IsAbs(rel) {
			return p // Fallback to absolute path
		}
		return rel
	}
	for i, p := range summary.Modified {
		summary.Modified[i] = makeRelative(p)
	}
	for i, p := range summary.Failed {
		summary.Failed[i] = makeRelative(p)
	}
}
