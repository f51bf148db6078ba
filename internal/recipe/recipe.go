package recipe

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sokinpui/tfx/model"
)

// Format selects the recipe syntax.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// DefaultCommentPrefix is used for region markers when a step sets none.
const DefaultCommentPrefix = "//"

// Recipe is an ordered list of edits against files below Root.
type Recipe struct {
	Name  string `yaml:"name"`
	Root  string `yaml:"root"`
	Steps []Step `yaml:"steps"`
}

// Step is a single edit of a single file.
type Step struct {
	ID   string         `yaml:"id"`
	Kind model.StepKind `yaml:"kind"`
	File string         `yaml:"file"`

	// append
	Marker string `yaml:"marker"`
	// append and region
	Block string `yaml:"block"`

	// region
	Region        string `yaml:"region"`
	CommentPrefix string `yaml:"comment_prefix"`

	// replace
	Replacements []model.EditOperation `yaml:"replacements"`
	Strict       bool                  `yaml:"strict"`
	// Preview overrides the number of lines shown after the step.
	Preview *int `yaml:"preview"`
}

// ValidationError lists every problem found in a recipe.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid recipe:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Normalize fills default ids and comment prefixes, then validates.
func (r *Recipe) Normalize() error {
	var problems []string
	if len(r.Steps) == 0 {
		problems = append(problems, "recipe has no steps")
	}

	seen := make(map[string]int)
	for i := range r.Steps {
		s := &r.Steps[i]
		n := i + 1
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s#%d", filepath.ToSlash(s.File), n)
		}
		if prev, ok := seen[s.ID]; ok {
			problems = append(problems, fmt.Sprintf("step %d: id %q already used by step %d", n, s.ID, prev))
		} else {
			seen[s.ID] = n
		}
		if strings.ContainsAny(s.ID, "\n\r") {
			problems = append(problems, fmt.Sprintf("step %d: id must be a single line", n))
		}
		if s.File == "" {
			problems = append(problems, fmt.Sprintf("step %d (%s): file is required", n, s.ID))
		}
		if s.Preview != nil && *s.Preview < 0 {
			problems = append(problems, fmt.Sprintf("step %d (%s): preview must not be negative", n, s.ID))
		}

		switch s.Kind {
		case model.KindAppend:
			if s.Marker == "" {
				problems = append(problems, fmt.Sprintf("step %d (%s): append needs a marker", n, s.ID))
			}
		case model.KindReplace:
			if len(s.Replacements) == 0 {
				problems = append(problems, fmt.Sprintf("step %d (%s): replace needs at least one replacement", n, s.ID))
			}
			for j, op := range s.Replacements {
				if op.Search == "" {
					problems = append(problems, fmt.Sprintf("step %d (%s): replacement %d has an empty search", n, s.ID, j+1))
				}
			}
		case model.KindRegion:
			if s.Region == "" || strings.ContainsAny(s.Region, " \t\r\n") {
				problems = append(problems, fmt.Sprintf("step %d (%s): region needs a name without whitespace", n, s.ID))
			}
			if s.CommentPrefix == "" {
				s.CommentPrefix = DefaultCommentPrefix
			}
		case "":
			problems = append(problems, fmt.Sprintf("step %d (%s): kind is required", n, s.ID))
		default:
			problems = append(problems, fmt.Sprintf("step %d (%s): unknown kind %q", n, s.ID, s.Kind))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// DetectFormat picks a format from an explicit choice, the recipe file
// name, or the content itself.
func DetectFormat(requested Format, name, content string) (Format, error) {
	switch requested {
	case FormatYAML, FormatMarkdown:
		return requested, nil
	case FormatAuto, "":
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown recipe format %q", requested)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	if strings.Contains(content, "```") {
		return FormatMarkdown, nil
	}
	return FormatYAML, nil
}

// Parse decodes and normalizes a recipe.
func Parse(content string, format Format) (*Recipe, error) {
	var (
		r   *Recipe
		err error
	)
	switch format {
	case FormatYAML:
		r, err = parseYAML(content)
	case FormatMarkdown:
		r, err = parseMarkdown([]byte(content))
	default:
		return nil, fmt.Errorf("unsupported recipe format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}
