package patcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/tfx/internal/fs"
	"github.com/sokinpui/tfx/internal/textedit"
	"github.com/sokinpui/tfx/model"
)

// countingWriter records every write before passing it to disk.
type countingWriter struct {
	writes []string
}

func (w *countingWriter) WriteFile(path, content string) error {
	w.writes = append(w.writes, path)
	return fs.DiskWriter{}.WriteFile(path, content)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAppend(t *testing.T) {
	path := writeTemp(t, "providers.dart", "final x = 1;")
	w := &countingWriter{}
	p := New(Options{Writer: w}, nil)

	out, err := p.Append(path, "final y", "\nfinal y = 2;\n")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.True(t, out.Written)
	assert.Equal(t, "final x = 1;\nfinal y = 2;\n", readFile(t, path))

	out, err = p.Append(path, "final y", "\nfinal y = 2;\n")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.False(t, out.Written)
	assert.Len(t, w.writes, 1, "second append must not write")
	assert.Equal(t, "final x = 1;\nfinal y = 2;\n", readFile(t, path))
}

func TestAppendErrors(t *testing.T) {
	p := New(Options{}, nil)

	_, err := p.Append(filepath.Join(t.TempDir(), "missing.dart"), "m", "b")
	assert.True(t, fs.IsFileAccess(err))

	path := writeTemp(t, "a.dart", "x")
	_, err = p.Append(path, "", "b")
	assert.Error(t, err)
}

func TestReplace(t *testing.T) {
	const content = "import 'a.dart';\n" +
		"MyBooking _fromCustomerBooking(\n" +
		"  Map<String, dynamic> json, {\n" +
		"  required String businessName,\n" +
		"}) {\n"

	t.Run("removes the line and previews the result", func(t *testing.T) {
		path := writeTemp(t, "my_bookings_provider.dart", content)
		p := New(Options{PreviewLines: DefaultPreviewLines}, nil)

		out, err := p.Replace(path, []model.EditOperation{{Search: "  required String businessName,\n", Replace: ""}}, false)
		require.NoError(t, err)

		got := readFile(t, path)
		assert.NotContains(t, got, "businessName")
		assert.Equal(t, strings.Count(content, "\n")-1, strings.Count(got, "\n"))
		assert.Equal(t, []int{1}, out.Counts)
		assert.Equal(t, textedit.HeadLines(got, 15), out.Preview)
		assert.Len(t, out.Preview, 4)
	})

	t.Run("missing search writes identical content", func(t *testing.T) {
		path := writeTemp(t, "x.dart", content)
		w := &countingWriter{}
		p := New(Options{Writer: w}, nil)

		out, err := p.Replace(path, []model.EditOperation{{Search: "nope", Replace: ""}}, false)
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Len(t, w.writes, 1, "replace writes unconditionally")
		assert.Equal(t, content, readFile(t, path))
		assert.Nil(t, out.Preview)
	})

	t.Run("strict failure leaves the file untouched", func(t *testing.T) {
		path := writeTemp(t, "x.dart", content)
		w := &countingWriter{}
		p := New(Options{Writer: w}, nil)

		_, err := p.Replace(path, []model.EditOperation{{Search: "nope", Replace: ""}}, true)
		require.ErrorIs(t, err, textedit.ErrSearchNotFound)
		assert.Empty(t, w.writes)
		assert.Equal(t, content, readFile(t, path))
	})

	t.Run("rerun is not idempotent", func(t *testing.T) {
		path := writeTemp(t, "v.dart", "const v = 'v1';\n")
		p := New(Options{}, nil)
		ops := []model.EditOperation{{Search: "v1", Replace: "v1.1"}}

		_, err := p.Replace(path, ops, false)
		require.NoError(t, err)
		_, err = p.Replace(path, ops, false)
		require.NoError(t, err)
		assert.Equal(t, "const v = 'v1.1.1';\n", readFile(t, path))
	})

	t.Run("missing file", func(t *testing.T) {
		p := New(Options{}, nil)
		_, err := p.Replace(filepath.Join(t.TempDir(), "gone.dart"), nil, false)
		assert.True(t, fs.IsFileAccess(err))
	})
}

func TestDryRun(t *testing.T) {
	path := writeTemp(t, "a.dart", "one\ntwo\n")
	w := &countingWriter{}
	p := New(Options{Writer: w, DryRun: true, PreviewLines: 15}, nil)

	out, err := p.Replace(path, []model.EditOperation{{Search: "two", Replace: "three"}}, false)
	require.NoError(t, err)
	assert.Empty(t, w.writes)
	assert.False(t, out.Written)
	assert.Equal(t, "one\ntwo\n", readFile(t, path))
	assert.Contains(t, out.Diff, "-two")
	assert.Contains(t, out.Diff, "+three")

	out, err = p.Append(path, "four", "four\n")
	require.NoError(t, err)
	assert.Contains(t, out.Diff, "+four")
	assert.Empty(t, w.writes)
}

func TestRegion(t *testing.T) {
	path := writeTemp(t, "r.dart", "void main() {}\n")
	w := &countingWriter{}
	p := New(Options{Writer: w}, nil)

	out, err := p.Region(path, "//", "auth", "final a = 1;")
	require.NoError(t, err)
	assert.True(t, out.Changed)

	out, err = p.Region(path, "//", "auth", "final a = 1;")
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Len(t, w.writes, 1)

	begin, end := textedit.RegionMarkers("//", "auth")
	assert.Equal(t, "void main() {}\n"+begin+"\nfinal a = 1;\n"+end+"\n", readFile(t, path))
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := UnifiedDiff("lib/a.dart", "a\n", "a\n")
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = UnifiedDiff("lib/a.dart", "a\nb\n", "a\nc\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/lib/a.dart")
	assert.Contains(t, diff, "+++ b/lib/a.dart")
}
