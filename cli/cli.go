package cli

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	RecipePath   string
	Root         string `env:"TFX_ROOT"`
	Format       string `env:"TFX_FORMAT" envDefault:"auto"`
	StateDir     string `env:"TFX_STATE_DIR"`
	PreviewLines int    `env:"TFX_PREVIEW_LINES" envDefault:"15"`
	Strict       bool   `env:"TFX_STRICT"`
	DryRun       bool
	Force        bool
	Nvim         bool
	Plain        bool
	Verbose      bool
	Undo         bool
	Redo         bool
}

// ParseFlags parses the process arguments on top of environment defaults.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs reads TFX_* environment variables, then lets flags in args
// override them.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error: invalid environment: %w", err)
	}

	fs := pflag.NewFlagSet("tfx", pflag.ContinueOnError)

	// Define flags
	fs.StringVarP(&cfg.Root, "root", "C", cfg.Root, "Directory relative target paths resolve against (default: recipe root or current directory).")
	fs.StringVarP(&cfg.Format, "format", "f", cfg.Format, "Recipe format: auto, yaml or markdown.")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory for the run journal and snapshots (default: .tfx at the git root).")
	fs.IntVarP(&cfg.PreviewLines, "preview-lines", "p", cfg.PreviewLines, "Lines of the file shown after a replace step (0 disables the preview).")
	fs.BoolVarP(&cfg.Strict, "strict", "s", cfg.Strict, "Fail when a search text is not found instead of skipping it.")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print the diff of every step without writing files.")
	fs.BoolVar(&cfg.Force, "force", false, "Run replace steps even if the journal records them as applied.")
	fs.BoolVar(&cfg.Nvim, "nvim", false, "Write through Neovim buffers so edits land in the editor's undo history.")
	fs.BoolVar(&cfg.Plain, "plain", false, "Print plain status lines instead of the interactive view.")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log diagnostics to stderr.")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last run.")
	fs.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone run.")

	fs.Usage = func() {
		fmt.Println("Usage: tfx [flags] [recipe]")
		fmt.Println("\nApply an edit recipe read from a file, stdin (pipe) or the clipboard.")
		fmt.Println("\nExample: tfx -C ../agenda_frontend recipes/fix_my_bookings_provider.md")
		fmt.Println("\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}

	switch rest := fs.Args(); {
	case len(rest) > 1:
		return nil, fmt.Errorf("error: expected at most one recipe, got %d", len(rest))
	case len(rest) == 1:
		if cfg.Undo || cfg.Redo {
			return nil, fmt.Errorf("error: --undo and --redo do not take a recipe")
		}
		cfg.RecipePath = rest[0]
	}

	if cfg.PreviewLines < 0 {
		return nil, fmt.Errorf("error: --preview-lines must not be negative")
	}
	switch cfg.Format {
	case "auto", "yaml", "yml", "markdown", "md":
	default:
		return nil, fmt.Errorf("error: unknown format %q", cfg.Format)
	}

	return cfg, nil
}
