package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/sokinpui/tfx/cli"
	"github.com/sokinpui/tfx/internal/tui"
	"github.com/sokinpui/tfx/internal/ui"
	"github.com/sokinpui/tfx/model"
	"github.com/sokinpui/tfx/tfx"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := tfx.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	code := run(app, cfg)
	app.Close()
	os.Exit(code)
}

func run(app *tfx.App, cfg *cli.Config) int {
	// The interactive view needs a terminal and would garble diffs and logs.
	interactive := isatty.IsTerminal(os.Stdout.Fd()) && !cfg.Plain && !cfg.Verbose && !cfg.DryRun
	if interactive {
		if _, err := tui.Run(app); err != nil {
			if errors.Is(err, tui.ErrInterrupted) {
				ui.Warning("Interrupted: steps applied so far stay applied (see --undo).")
			}
			return 1
		}
		return 0
	}

	app.SetProgressCallback(ui.StepResult)
	summary, err := app.Execute()
	printSummary(cfg, summary)
	if err != nil {
		ui.Error("Error: %v", err)
		var detailed *tfx.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return 1
	}
	return 0
}

func printSummary(cfg *cli.Config, summary model.Summary) {
	switch {
	case cfg.Undo:
		ui.PrintUndoSummary(summary)
	case cfg.Redo:
		ui.PrintRedoSummary(summary)
	default:
		ui.PrintRunSummary(summary)
	}
}
