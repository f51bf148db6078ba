package textedit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/tfx/model"
)

func TestAppendIfAbsent(t *testing.T) {
	const original = "final x = 1;"
	const block = "\nfinal y = 2;\n"

	got, appended := AppendIfAbsent(original, "final y", block)
	require.True(t, appended)
	assert.Equal(t, original+block, got)
	assert.True(t, strings.HasSuffix(got, block))

	again, appended := AppendIfAbsent(got, "final y", block)
	assert.False(t, appended)
	assert.Equal(t, got, again)
}

func TestApplyReplacements(t *testing.T) {
	t.Run("removes a single line", func(t *testing.T) {
		content := "MyBooking _fromCustomerBooking(\n  Map<String, dynamic> json, {\n  required String businessName,\n  required Map<int, String> locationNames,\n}) {\n"
		ops := []model.EditOperation{{Search: "  required String businessName,\n", Replace: ""}}

		got, counts, err := ApplyReplacements(content, ops, false)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, counts)
		assert.NotContains(t, got, "businessName")
		assert.Equal(t, strings.Count(content, "\n")-1, strings.Count(got, "\n"))

		want := "MyBooking _fromCustomerBooking(\n  Map<String, dynamic> json, {\n  required Map<int, String> locationNames,\n}) {\n"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("content mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing search is a silent no-op", func(t *testing.T) {
		content := "line one\nline two\n"
		ops := []model.EditOperation{{Search: "not here", Replace: "x"}}

		got, counts, err := ApplyReplacements(content, ops, false)
		require.NoError(t, err)
		assert.Equal(t, content, got)
		assert.Equal(t, []int{0}, counts)
	})

	t.Run("strict mode fails on missing search", func(t *testing.T) {
		content := "a\nb\n"
		ops := []model.EditOperation{
			{Search: "a", Replace: "A"},
			{Search: "zzz", Replace: ""},
		}

		got, _, err := ApplyReplacements(content, ops, true)
		require.ErrorIs(t, err, ErrSearchNotFound)
		assert.Contains(t, err.Error(), "operation 2")
		assert.Equal(t, content, got, "strict failure must not return partial output")
	})

	t.Run("replaces every occurrence in order", func(t *testing.T) {
		content := "x x x"
		ops := []model.EditOperation{
			{Search: "x", Replace: "y"},
			{Search: "y y", Replace: "z"},
		}

		got, counts, err := ApplyReplacements(content, ops, false)
		require.NoError(t, err)
		assert.Equal(t, "z y", got)
		assert.Equal(t, []int{3, 1}, counts)
	})

	t.Run("empty search is rejected", func(t *testing.T) {
		_, _, err := ApplyReplacements("abc", []model.EditOperation{{Search: ""}}, false)
		assert.ErrorIs(t, err, ErrEmptySearch)
	})

	t.Run("second application is not idempotent", func(t *testing.T) {
		ops := []model.EditOperation{{Search: "v1", Replace: "v1.1"}}

		once, _, err := ApplyReplacements("version v1\n", ops, false)
		require.NoError(t, err)
		twice, _, err := ApplyReplacements(once, ops, false)
		require.NoError(t, err)

		assert.Equal(t, "version v1.1\n", once)
		assert.Equal(t, "version v1.1.1\n", twice)
	})
}

func TestUpsertRegion(t *testing.T) {
	begin, end := RegionMarkers("//", "providers")

	t.Run("inserts missing region at end", func(t *testing.T) {
		got, changed, err := UpsertRegion("import 'a.dart';", "//", "providers", "final p = 1;")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "import 'a.dart';\n"+begin+"\nfinal p = 1;\n"+end+"\n", got)
	})

	t.Run("rerun is a no-op", func(t *testing.T) {
		first, _, err := UpsertRegion("", "//", "providers", "final p = 1;\n")
		require.NoError(t, err)
		second, changed, err := UpsertRegion(first, "//", "providers", "final p = 1;\n")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, first, second)
	})

	t.Run("replaces body and keeps surroundings", func(t *testing.T) {
		content := "head\n  " + begin + "\n  old\n  " + end + "\ntail\n"
		got, changed, err := UpsertRegion(content, "//", "providers", "  new")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "head\n  "+begin+"\n  new\n  "+end+"\ntail\n", got)

		_, changed, err = UpsertRegion(got, "//", "providers", "  new")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("unterminated region", func(t *testing.T) {
		_, _, err := UpsertRegion(begin+"\nbody\n", "//", "providers", "x")
		assert.ErrorIs(t, err, ErrUnterminatedRegion)
	})
}

func TestHeadLines(t *testing.T) {
	content := "1  \n2\t\n3\n4\n"
	assert.Equal(t, []string{"1", "2"}, HeadLines(content, 2))
	assert.Equal(t, []string{"1", "2", "3", "4"}, HeadLines(content, 15))
	assert.Nil(t, HeadLines(content, 0))
	assert.Nil(t, HeadLines("", 3))
}
