package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/sokinpui/tfx/model"
)

func TestUpdateCollectsSteps(t *testing.T) {
	var m tea.Model = New(nil)

	m, cmd := m.Update(stepMsg{model.StepResult{StepID: "a", Status: model.StatusApplied, Message: "lib/a.dart modified"}})
	assert.Nil(t, cmd)
	m, _ = m.Update(stepMsg{model.StepResult{StepID: "b", Status: model.StatusSkipped, Message: "already applied"}})

	view := m.View()
	assert.Contains(t, view, "lib/a.dart modified")
	assert.Contains(t, view, "already applied")
	assert.Contains(t, view, "Processing...")

	m, cmd = m.Update(summaryMsg{model.Summary{Message: "Recipe demo", Modified: []string{"lib/a.dart"}}})
	assert.NotNil(t, cmd)
	got := m.(Model)
	assert.Equal(t, stateSummary, got.state)
	assert.Len(t, got.steps, 2)

	view = got.View()
	assert.Contains(t, view, "Recipe demo")
	assert.Contains(t, view, "Modified:")
	assert.NotContains(t, view, "Processing...")
}

func TestUpdateError(t *testing.T) {
	var m tea.Model = New(nil)
	boom := errors.New("boom")

	m, cmd := m.Update(errorMsg{err: boom, summary: model.Summary{Failed: []string{"lib/a.dart"}}})
	assert.NotNil(t, cmd)
	got := m.(Model)
	assert.Equal(t, stateError, got.state)
	assert.Equal(t, boom, got.err)
	assert.Equal(t, []string{"lib/a.dart"}, got.summary.Failed)
	assert.Contains(t, got.View(), "boom")
}

func TestRenderSummaryNothingToDo(t *testing.T) {
	m := New(nil)
	m.state = stateSummary
	assert.Contains(t, m.View(), "Nothing to do.")
}

func TestViewShowsPreviewAndDiff(t *testing.T) {
	var m tea.Model = New(nil)
	m, _ = m.Update(stepMsg{model.StepResult{
		StepID:  "drop-business-provider",
		Status:  model.StatusApplied,
		Message: "lib/a.dart modified: 5 occurrence(s) replaced",
		Preview: []string{"import 'package:flutter_riverpod/flutter_riverpod.dart';", ""},
	}})
	m, _ = m.Update(stepMsg{model.StepResult{
		StepID: "b",
		Status: model.StatusApplied,
		Diff:   "--- a/lib/b.dart\n+++ b/lib/b.dart\n@@ -1 +1 @@\n-x\n+y\n",
	}})
	m, _ = m.Update(summaryMsg{model.Summary{Modified: []string{"lib/a.dart"}}})

	view := m.View()
	assert.Contains(t, view, "First 2 lines:")
	assert.Contains(t, view, "import 'package:flutter_riverpod/flutter_riverpod.dart';")
	assert.Contains(t, view, "+y")
}

func TestQuitWhileProcessing(t *testing.T) {
	var m tea.Model = New(nil)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)

	got := m.(Model)
	assert.Equal(t, stateError, got.state)
	assert.ErrorIs(t, got.err, ErrInterrupted)

	// Quitting after the summary keeps it.
	m, _ = New(nil).Update(summaryMsg{model.Summary{Message: "done"}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.Equal(t, stateSummary, m.(Model).state)
}
