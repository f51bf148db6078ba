package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokinpui/tfx/internal/fs"
)

const (
	stateDirName  = ".tfx"
	stateFileName = "state.tfx"
	SnapshotDir   = "snapshots"
)

// Operation records one step applied to one file.
type Operation struct {
	StepKey    string
	Path       string
	BeforeHash string // SHA256 of the content before the step
	AfterHash  string // SHA256 of the content after the step
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	RunID      string
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file and content snapshots.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// StepKey identifies a step by id and by the exact edits it performs, so
// changing a step's payload makes it eligible to run again.
func StepKey(id string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(id))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return id + "@" + hex.EncodeToString(h.Sum(nil))[:16]
}

// NewRunID returns a fresh identifier for a history entry.
func NewRunID() string {
	return uuid.NewString()
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// DefaultDir returns the state directory used when none is configured: .tfx
// at the git root of the working directory, or in the working directory.
func DefaultDir() (string, error) {
	rootDir, err := findGitRoot()
	if err != nil {
		rootDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
	}
	return filepath.Join(rootDir, stateDirName), nil
}

// New creates and loads a state manager rooted at stateDir.
func New(stateDir string) (*Manager, error) {
	if stateDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}
	if err := os.MkdirAll(filepath.Join(stateDir, SnapshotDir), 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.statePath, err)
	}
	return m, nil
}

func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	// First block is current index
	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		header := strings.Fields(lines[0])
		if len(header) != 2 {
			return fmt.Errorf("invalid state file: malformed entry header '%s'", lines[0])
		}
		ts, err := strconv.ParseInt(header[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", header[0], err)
		}

		entry := HistoryEntry{Timestamp: ts, RunID: header[1]}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return errors.New("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				StepKey:    opLines[i],
				Path:       opLines[i+1],
				BeforeHash: opLines[i+2],
				AfterHash:  opLines[i+3],
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if index < -1 || index >= len(m.state.History) {
		return fmt.Errorf("invalid state file: current index %d out of range", index)
	}
	m.state.CurrentIndex = index
	return nil
}

func (m *Manager) save() error {
	var blocks []string

	// Current index block
	blocks = append(blocks, strconv.Itoa(m.state.CurrentIndex))

	// History entry blocks
	for _, entry := range m.state.History {
		var b strings.Builder
		fmt.Fprintf(&b, "%d %s", entry.Timestamp, entry.RunID)
		for _, op := range entry.Operations {
			b.WriteString("\n" + op.StepKey)
			b.WriteString("\n" + op.Path)
			b.WriteString("\n" + op.BeforeHash)
			b.WriteString("\n" + op.AfterHash)
		}
		blocks = append(blocks, b.String())
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := os.WriteFile(m.statePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	return nil
}

// Write adds a new run to the history, discarding any undone runs.
func (m *Manager) Write(runID string, operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	m.state.History = append(m.state.History, HistoryEntry{
		RunID:      runID,
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// IsApplied reports whether a step with this key was applied to path by a
// run that has not been undone.
func (m *Manager) IsApplied(stepKey, path string) bool {
	for _, entry := range m.state.History[:m.state.CurrentIndex+1] {
		for _, op := range entry.Operations {
			if op.StepKey == stepKey && op.Path == path {
				return true
			}
		}
	}
	return false
}

// GetEntryToUndo returns the last applied run and moves the history pointer.
func (m *Manager) GetEntryToUndo() (*HistoryEntry, error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	entry := m.state.History[m.state.CurrentIndex]
	m.state.CurrentIndex--
	return &entry, m.save()
}

// GetEntryToRedo returns the next undone run and moves the history pointer.
func (m *Manager) GetEntryToRedo() (*HistoryEntry, error) {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil, nil
	}
	m.state.CurrentIndex = nextIndex
	entry := m.state.History[nextIndex]
	return &entry, m.save()
}

// SaveSnapshot stores content under its hash and returns the hash.
func (m *Manager) SaveSnapshot(content string) (string, error) {
	hash := fs.HashContent(content)
	path := filepath.Join(m.StateDir, SnapshotDir, hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("could not write snapshot: %w", err)
	}
	return hash, nil
}

// LoadSnapshot returns the content stored under hash.
func (m *Manager) LoadSnapshot(hash string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.StateDir, SnapshotDir, hash))
	if err != nil {
		return "", fmt.Errorf("could not read snapshot %s: %w", hash, err)
	}
	return string(data), nil
}
