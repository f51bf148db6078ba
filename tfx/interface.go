package tfx

import (
	"fmt"

	"github.com/sokinpui/tfx/cli"
	"github.com/sokinpui/tfx/internal/patcher"
	"github.com/sokinpui/tfx/internal/ui"
	"github.com/sokinpui/tfx/model"
)

// Config for using tfx as a library.
type Config struct {
	// Root is the directory relative target paths resolve against.
	Root string
	// StateDir holds the journal and snapshots (default: .tfx at the git root).
	StateDir string
	// Format is "auto", "yaml" or "markdown". Empty means auto.
	Format string
	// PreviewLines after replace steps. Zero disables the preview.
	PreviewLines int
	DryRun       bool
	Strict       bool
	Force        bool
}

// Apply parses the given recipe and applies it to files.
func Apply(content string, config Config) (model.Summary, error) {
	format := config.Format
	if format == "" {
		format = "auto"
	}
	cliCfg := &cli.Config{
		Root:         config.Root,
		StateDir:     config.StateDir,
		Format:       format,
		PreviewLines: config.PreviewLines,
		DryRun:       config.DryRun,
		Strict:       config.Strict,
		Force:        config.Force,
	}

	app, err := New(cliCfg)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize tfx app: %w", err)
	}
	defer app.Close()

	return app.runContent("library", content, "")
}

// AppendBlockIfAbsent appends block to the file at path unless marker
// already occurs in it, and reports whether it wrote the file.
func AppendBlockIfAbsent(path, marker, block string) (bool, error) {
	out, err := patcher.New(patcher.Options{}, nil).Append(path, marker, block)
	if err != nil {
		return false, err
	}
	if out.Changed {
		ui.Success("Added %s to %s", marker, path)
	} else {
		ui.Info("%s already present", marker)
	}
	return out.Changed, nil
}

// ApplyOrderedReplacements replaces every occurrence of each search text in
// order and writes the file back, then prints its first lines. Search texts
// that do not occur are skipped. Running it twice applies the operations
// twice.
func ApplyOrderedReplacements(path string, operations []model.EditOperation) error {
	out, err := patcher.New(patcher.Options{PreviewLines: patcher.DefaultPreviewLines}, nil).Replace(path, operations, false)
	if err != nil {
		return err
	}
	ui.Success("File modified successfully: %s", path)
	ui.Preview(out.Preview)
	return nil
}
