package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// Schema returns the JSON Schema of a batch response.
func Schema() map[string]any {
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []string{constants.KeyTimeTaken, constants.KeyImageCount, constants.KeyCacheHits, constants.KeyCacheMisses},
		"properties": map[string]any{
			constants.KeyTimeTaken:   map[string]any{"type": "number", "minimum": 0},
			constants.KeyImageCount:  map[string]any{"type": "integer", "minimum": 1},
			constants.KeyCacheHits:   map[string]any{"type": "integer", "minimum": 0},
			constants.KeyCacheMisses: map[string]any{"type": "integer", "minimum": 0},
		},
		"additionalProperties": map[string]any{"type": "string"},
	}
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func responseSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(Schema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("response.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("response.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Validate checks a raw response body against Schema.
func Validate(data []byte) error {
	schema, err := responseSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
