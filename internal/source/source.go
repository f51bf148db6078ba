package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// Recipe is recipe text together with where it came from.
type Recipe struct {
	// Name is the file path, "stdin" or "clipboard".
	Name    string
	Content string
}

// SourceProvider determines and retrieves the recipe content.
type SourceProvider struct {
	path  string
	stdin *os.File
	// readClipboard is swapped in tests.
	readClipboard func() (string, error)
}

// New creates a SourceProvider. A non-empty path always wins over stdin
// and the clipboard.
func New(path string) *SourceProvider {
	return &SourceProvider{
		path:          path,
		stdin:         os.Stdin,
		readClipboard: clipboard.ReadAll,
	}
}

// GetContent retrieves the recipe from the configured file, from stdin (if
// piped) or from the clipboard.
func (sp *SourceProvider) GetContent() (Recipe, error) {
	if sp.path != "" {
		content, err := os.ReadFile(sp.path)
		if err != nil {
			return Recipe{}, fmt.Errorf("failed to read recipe: %w", err)
		}
		return Recipe{Name: sp.path, Content: string(content)}, nil
	}

	if sp.isPiped() {
		content, err := io.ReadAll(sp.stdin)
		if err != nil {
			return Recipe{}, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return Recipe{Name: "stdin", Content: string(content)}, nil
	}

	content, err := sp.readClipboard()
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return Recipe{Name: "clipboard"}, nil
	}
	return Recipe{Name: "clipboard", Content: content}, nil
}

func (sp *SourceProvider) isPiped() bool {
	if sp.stdin == nil {
		return false
	}
	stat, err := sp.stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
