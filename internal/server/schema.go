package server

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const evaluateSchema = `{
  "type": "object",
  "properties": {
    "content": {"type": "string"},
    "userContext": {
      "type": ["object", "null"],
      "properties": {
        "age": {"type": "string"},
        "symptoms": {"type": "string"},
        "medicalHistory": {"type": "string"},
        "timeframe": {"type": "string"}
      }
    }
  }
}`

const chatSchema = `{
  "type": "object",
  "properties": {
    "message": {"type": "string"}
  }
}`

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://safeguard.schemas.local/api/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("load %s schema: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return compiled, nil
}
