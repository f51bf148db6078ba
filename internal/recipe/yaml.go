package recipe

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

func parseYAML(content string) (*Recipe, error) {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)

	var r Recipe
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return &Recipe{}, nil
		}
		return nil, fmt.Errorf("parsing yaml recipe: %w", err)
	}
	return &r, nil
}
