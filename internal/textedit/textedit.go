package textedit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/tfx/model"
)

var (
	// ErrSearchNotFound is returned in strict mode when a search literal
	// does not occur in the content it is applied to.
	ErrSearchNotFound = errors.New("search text not found")
	// ErrEmptySearch rejects operations that would match between every rune.
	ErrEmptySearch = errors.New("search text is empty")
	// ErrUnterminatedRegion means a begin marker has no matching end marker.
	ErrUnterminatedRegion = errors.New("region has no end marker")
)

// AppendIfAbsent returns content with block appended, unless marker already
// occurs in content. The boolean reports whether anything was appended.
func AppendIfAbsent(content, marker, block string) (string, bool) {
	if strings.Contains(content, marker) {
		return content, false
	}
	return content + block, true
}

// ApplyReplacements folds ops over content in order. Each operation sees the
// output of the previous one and replaces every occurrence of its search
// text. The returned slice holds the number of occurrences each operation
// replaced.
//
// A search text that does not occur is skipped, unless strict is set, in
// which case the original content is returned together with an error
// wrapping ErrSearchNotFound.
func ApplyReplacements(content string, ops []model.EditOperation, strict bool) (string, []int, error) {
	counts := make([]int, len(ops))
	result := content
	for i, op := range ops {
		if op.Search == "" {
			return content, counts, fmt.Errorf("operation %d: %w", i+1, ErrEmptySearch)
		}
		n := strings.Count(result, op.Search)
		counts[i] = n
		if n == 0 {
			if strict {
				return content, counts, fmt.Errorf("operation %d (%q): %w", i+1, firstLine(op.Search), ErrSearchNotFound)
			}
			continue
		}
		result = strings.ReplaceAll(result, op.Search, op.Replace)
	}
	return result, counts, nil
}

// RegionMarkers returns the begin and end marker lines delimiting a named
// region. prefix is the line-comment token of the target language.
func RegionMarkers(prefix, name string) (begin, end string) {
	return fmt.Sprintf("%s tfx:begin %s", prefix, name), fmt.Sprintf("%s tfx:end %s", prefix, name)
}

// UpsertRegion makes the named region hold exactly body. A missing region is
// appended at the end of content. The boolean reports whether content changed.
func UpsertRegion(content, prefix, name, body string) (string, bool, error) {
	begin, end := RegionMarkers(prefix, name)
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	bi := strings.Index(content, begin)
	if bi == -1 {
		var b strings.Builder
		b.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(begin + "\n")
		b.WriteString(body)
		b.WriteString(end + "\n")
		return b.String(), true, nil
	}

	bodyStart := bi + len(begin)
	if nl := strings.IndexByte(content[bodyStart:], '\n'); nl != -1 {
		bodyStart += nl + 1
	} else {
		return content, false, fmt.Errorf("region %q: %w", name, ErrUnterminatedRegion)
	}

	ei := strings.Index(content[bodyStart:], end)
	if ei == -1 {
		return content, false, fmt.Errorf("region %q: %w", name, ErrUnterminatedRegion)
	}
	endIdx := bodyStart + ei

	// Keep the end marker's indentation outside the body.
	bodyEnd := endIdx
	lineStart := strings.LastIndexByte(content[:endIdx], '\n') + 1
	if lineStart >= bodyStart && strings.TrimSpace(content[lineStart:endIdx]) == "" {
		bodyEnd = lineStart
	}

	if content[bodyStart:bodyEnd] == body {
		return content, false, nil
	}
	return content[:bodyStart] + body + content[bodyEnd:], true, nil
}

// HeadLines returns up to n leading lines of content with trailing
// whitespace removed.
func HeadLines(content string, n int) []string {
	if n <= 0 || content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t\r\n"))
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i] + " ..."
	}
	return s
}
