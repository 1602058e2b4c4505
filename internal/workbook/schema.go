package workbook

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

const schemaURL = "tabula://workbook.schema.json"

const workbookSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["sheets"],
  "additionalProperties": false,
  "properties": {
    "sheets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "rows": {
            "type": ["array", "null"],
            "items": {
              "type": ["array", "null"],
              "items": {"type": ["string", "number", "boolean", "null"]}
            }
          }
        }
      }
    }
  }
}`

//nolint:gochecknoglobals // compiled once
var (
	compiledSchema *jsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = jsonschema.CompileString(schemaURL, workbookSchema)
	})
	return compiledSchema, compileErr
}

// ValidateDocument checks a decoded document against the workbook schema.
// raw is the generic decoded form (maps, slices, scalars) of the file.
func ValidateDocument(raw any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile workbook schema: %w", err)
	}

	// normalize to JSON types; yaml decodes ints and timestamps differently
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", tabulaerrors.ErrWorkbookInvalid, err)
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return fmt.Errorf("%w: %w", tabulaerrors.ErrWorkbookInvalid, err)
	}

	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%w: %w", tabulaerrors.ErrWorkbookInvalid, err)
	}
	return nil
}
