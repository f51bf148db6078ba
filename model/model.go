package model

// EditOperation is an exact literal substitution. Every occurrence of Search
// in the current content is replaced with Replace.
type EditOperation struct {
	Search  string `yaml:"search"`
	Replace string `yaml:"replace"`
}

// StepKind selects how a recipe step edits its target file.
type StepKind string

const (
	KindAppend  StepKind = "append"
	KindReplace StepKind = "replace"
	KindRegion  StepKind = "region"
)

// StepStatus is the outcome of running one step.
type StepStatus string

const (
	StatusApplied   StepStatus = "applied"
	StatusSkipped   StepStatus = "skipped"
	StatusUnchanged StepStatus = "unchanged"
	StatusFailed    StepStatus = "failed"
)

// StepResult reports what a single step did to its target.
type StepResult struct {
	StepID  string
	Kind    StepKind
	Path    string
	Status  StepStatus
	Message string
	// Preview holds the leading lines of the file after a replace step.
	Preview []string
	// Diff is the unified diff computed in dry-run mode.
	Diff string
}

// Summary holds the results of an operation for display.
type Summary struct {
	RunID    string
	Steps    []StepResult
	Modified []string
	Failed   []string
	Message  string
}
