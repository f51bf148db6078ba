package recipe

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sokinpui/tfx/model"
)

// pathInHintRegex matches a backticked path such as `lib/main.dart`.
var pathInHintRegex = regexp.MustCompile("`([^`\n]+)`")

// codeBlock is a fenced block with its parsed info string.
type codeBlock struct {
	directive string
	attrs     map[string]string
	content   string
	line      int
}

type markdownBuilder struct {
	recipe      Recipe
	currentFile string
	// openReplace is the index of the replace step that further
	// search/replace pairs for currentFile extend, or -1.
	openReplace int
	pending     *codeBlock
}

// parseMarkdown reads a recipe written as Markdown. A paragraph holding a
// backticked path selects the file the following code blocks edit. Fenced
// blocks whose info string starts with append, search, replace or region
// become steps; every other block is ignored.
func parseMarkdown(source []byte) (*Recipe, error) {
	root := goldmark.DefaultParser().Parse(text.NewReader(source))
	b := &markdownBuilder{openReplace: -1}

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 && b.recipe.Name == "" {
				b.recipe.Name = strings.TrimSpace(string(rawLines(n, source)))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if path := extractPathFromHint(string(rawLines(n, source))); path != "" {
				if b.pending != nil {
					return ast.WalkStop, fmt.Errorf("line %d: search block has no following replace block", b.pending.line)
				}
				b.currentFile = path
				b.openReplace = -1
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			block, ok := readCodeBlock(n, source)
			if !ok {
				return ast.WalkSkipChildren, nil
			}
			if err := b.add(block); err != nil {
				return ast.WalkStop, err
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	if b.pending != nil {
		return nil, fmt.Errorf("line %d: search block has no following replace block", b.pending.line)
	}
	return &b.recipe, nil
}

func (b *markdownBuilder) add(block codeBlock) error {
	if b.currentFile == "" {
		return fmt.Errorf("line %d: %s block appears before any `file/path` paragraph", block.line, block.directive)
	}
	if b.pending != nil && block.directive != "replace" {
		return fmt.Errorf("line %d: search block has no following replace block", b.pending.line)
	}

	switch block.directive {
	case "append":
		b.openReplace = -1
		b.recipe.Steps = append(b.recipe.Steps, Step{
			ID:     block.attrs["id"],
			Kind:   model.KindAppend,
			File:   b.currentFile,
			Marker: block.attrs["marker"],
			Block:  block.content,
		})
	case "region":
		b.openReplace = -1
		b.recipe.Steps = append(b.recipe.Steps, Step{
			ID:            block.attrs["id"],
			Kind:          model.KindRegion,
			File:          b.currentFile,
			Region:        block.attrs["name"],
			CommentPrefix: block.attrs["prefix"],
			Block:         block.content,
		})
	case "search":
		copied := block
		b.pending = &copied
	case "replace":
		if b.pending == nil {
			return fmt.Errorf("line %d: replace block without a preceding search block", block.line)
		}
		search := b.pending
		b.pending = nil
		op := model.EditOperation{
			Search:  trimFinalNewline(search.content, search.attrs),
			Replace: trimFinalNewline(block.content, block.attrs),
		}

		_, strict := search.attrs["strict"]
		id, hasID := search.attrs["id"]
		if b.openReplace == -1 || hasID {
			b.recipe.Steps = append(b.recipe.Steps, Step{
				ID:   id,
				Kind: model.KindReplace,
				File: b.currentFile,
			})
			b.openReplace = len(b.recipe.Steps) - 1
		}
		step := &b.recipe.Steps[b.openReplace]
		step.Replacements = append(step.Replacements, op)
		step.Strict = step.Strict || strict
		if v, ok := search.attrs["preview"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("line %d: invalid preview %q", search.line, v)
			}
			step.Preview = &n
		}
	}
	return nil
}

func readCodeBlock(n *ast.FencedCodeBlock, source []byte) (codeBlock, bool) {
	if n.Info == nil {
		return codeBlock{}, false
	}
	fields := splitInfo(string(n.Info.Segment.Value(source)))
	if len(fields) == 0 {
		return codeBlock{}, false
	}
	switch fields[0] {
	case "append", "search", "replace", "region":
	default:
		return codeBlock{}, false
	}

	attrs := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		key, value, _ := strings.Cut(f, "=")
		attrs[key] = value
	}

	var content bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		content.Write(line.Value(source))
	}

	return codeBlock{
		directive: fields[0],
		attrs:     attrs,
		content:   content.String(),
		line:      lineOf(source, n.Info.Segment.Start),
	}, true
}

// splitInfo splits an info string on spaces, keeping double-quoted values
// together and unquoting them: marker="two words" yields marker=two words.
func splitInfo(info string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}
	for _, r := range info {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return fields
}

func trimFinalNewline(content string, attrs map[string]string) string {
	if _, keep := attrs["eol"]; keep {
		return content
	}
	return strings.TrimSuffix(content, "\n")
}

func rawLines(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	return buf.Bytes()
}

func extractPathFromHint(hint string) string {
	hint = strings.TrimSpace(hint)

	// A path hint must be enclosed in backticks, e.g., `path/to/file.dart`
	if match := pathInHintRegex.FindStringSubmatch(hint); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		// Disallow spaces to avoid capturing commands like `dart run build_runner` as a path.
		if !strings.Contains(path, " ") && strings.ContainsAny(path, "./") {
			return path
		}
	}

	return ""
}

func lineOf(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
