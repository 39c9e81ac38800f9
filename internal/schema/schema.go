// Package schema publishes the JSON schema of "patchkit parse --json" output.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed parse_output.json
var parseOutputSchema []byte

var (
	loaderOnce sync.Once
	loader     gojsonschema.JSONLoader
	loaderErr  error
)

// ParseOutputSchema returns the decoded schema document.
func ParseOutputSchema() (map[string]any, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal(parseOutputSchema, &schemaMap); err != nil {
		return nil, fmt.Errorf("schema: decode parse output schema: %w", err)
	}
	return schemaMap, nil
}

// Raw returns the schema text as embedded in the binary.
func Raw() []byte {
	return append([]byte(nil), parseOutputSchema...)
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string {
	return "schema: parse output is invalid: " + strings.Join(e.Issues, "; ")
}

// ValidateParseOutput checks raw JSON against the parse output schema.
func ValidateParseOutput(raw []byte) error {
	loaderOnce.Do(func() {
		schemaMap, err := ParseOutputSchema()
		if err != nil {
			loaderErr = err
			return
		}
		loader = gojsonschema.NewGoLoader(schemaMap)
	})
	if loaderErr != nil {
		return loaderErr
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema: validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return ValidationError{Issues: issues}
}
