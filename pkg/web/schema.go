package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxQuestionLength bounds a single chat question, in characters
const maxQuestionLength = 4000

var askSchemaJSON = fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"question": {"type": ["string", "null"], "maxLength": %d}
	}
}`, maxQuestionLength)

const searchSchemaJSON = `{
	"type": "object",
	"properties": {
		"province":    {"type": ["string", "null"]},
		"city":        {"type": ["string", "null"]},
		"level":       {"type": ["string", "null"]},
		"departments": {"type": ["string", "null"]},
		"page":        {"type": "integer", "minimum": 1}
	}
}`

var (
	askSchema    = mustSchema(askSchemaJSON)
	searchSchema = mustSchema(searchSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// validateBody checks a raw JSON body against schema
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}
