package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/tfx/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	FaintColor   = color.New(color.Faint)
)

// Status lines go to Stderr; previews, diffs and summaries go to Stdout.
var (
	Stderr io.Writer = os.Stderr
	Stdout io.Writer = os.Stdout
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(Stderr, "  "+format+"\n", a...)
}

// Preview prints numbered lines the way a quick `head -n` check would.
func Preview(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(Stdout, "\nFirst %d lines:\n", len(lines))
	for i, line := range lines {
		fmt.Fprintf(Stdout, "%s %s\n", FaintColor.Sprintf("%d:", i+1), line)
	}
}

// StepResult prints the status line of a finished step, followed by its
// diff or preview.
func StepResult(r model.StepResult) {
	switch r.Status {
	case model.StatusApplied:
		Success("[%s] %s", r.StepID, r.Message)
	case model.StatusSkipped, model.StatusUnchanged:
		Info("[%s] %s", r.StepID, r.Message)
	case model.StatusFailed:
		Error("[%s] %s", r.StepID, r.Message)
	}
	if r.Diff != "" {
		fmt.Fprint(Stdout, r.Diff)
	}
	Preview(r.Preview)
}

// --- Summaries ---

func PrintRunSummary(s model.Summary) {
	Header("\n--- Run Summary ---")
	if s.Message != "" {
		Info("%s", s.Message)
	}

	counts := make(map[model.StepStatus]int)
	for _, r := range s.Steps {
		counts[r.Status]++
	}
	if len(s.Steps) > 0 {
		Info("%d applied, %d skipped, %d unchanged, %d failed",
			counts[model.StatusApplied],
			counts[model.StatusSkipped],
			counts[model.StatusUnchanged],
			counts[model.StatusFailed])
	}
	if s.RunID != "" {
		Info("Run id: %s", s.RunID)
	}
	printFiles(s)
}

func PrintUndoSummary(s model.Summary) {
	Header("\n--- Undo Summary ---")
	if s.Message != "" {
		Info("%s", s.Message)
	}
	printFiles(s)
}

func PrintRedoSummary(s model.Summary) {
	Header("\n--- Redo Summary ---")
	if s.Message != "" {
		Info("%s", s.Message)
	}
	printFiles(s)
}

func printFiles(s model.Summary) {
	if len(s.Modified) > 0 {
		Success("Modified %d file(s):", len(s.Modified))
		for _, f := range s.Modified {
			fmt.Fprintf(Stdout, "  - %s\n", f)
		}
	}
	if len(s.Failed) > 0 {
		Error("Failed to process %d file(s):", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(Stdout, "  - %s\n", f)
		}
	}
}
