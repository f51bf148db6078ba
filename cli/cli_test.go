package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"recipes/fix.md"})
	require.NoError(t, err)

	assert.Equal(t, "recipes/fix.md", cfg.RecipePath)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, 15, cfg.PreviewLines)
	assert.False(t, cfg.Strict)
	assert.False(t, cfg.DryRun)
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{"-C", "/srv/app", "-n", "--strict", "-p", "3", "--format", "yaml", "--plain", "fix.yaml"})
	require.NoError(t, err)

	assert.Equal(t, "/srv/app", cfg.Root)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Plain)
	assert.Equal(t, 3, cfg.PreviewLines)
	assert.Equal(t, "yaml", cfg.Format)
}

func TestParseArgsEnvironment(t *testing.T) {
	t.Setenv("TFX_ROOT", "/from/env")
	t.Setenv("TFX_PREVIEW_LINES", "7")
	t.Setenv("TFX_STRICT", "true")
	t.Setenv("TFX_STATE_DIR", "/tmp/state")

	cfg, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Root)
	assert.Equal(t, 7, cfg.PreviewLines)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "/tmp/state", cfg.StateDir)

	t.Run("flags override environment", func(t *testing.T) {
		cfg, err := ParseArgs([]string{"--root", "/from/flag", "--preview-lines", "0", "--strict=false"})
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", cfg.Root)
		assert.Equal(t, 0, cfg.PreviewLines)
		assert.False(t, cfg.Strict)
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("TFX_PREVIEW_LINES", "many")
		_, err := ParseArgs(nil)
		assert.ErrorContains(t, err, "invalid environment")
	})
}

func TestParseArgsValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"undo and redo", []string{"-u", "-r"}, "mutually exclusive"},
		{"two recipes", []string{"a.yaml", "b.yaml"}, "at most one recipe"},
		{"undo with recipe", []string{"--undo", "a.yaml"}, "do not take a recipe"},
		{"negative preview", []string{"--preview-lines=-1"}, "must not be negative"},
		{"unknown format", []string{"-f", "toml"}, "unknown format"},
		{"unknown flag", []string{"--bogus"}, "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
