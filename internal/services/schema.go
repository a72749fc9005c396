package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/tidwall/gjson"
)

var errSchemaNotJSON = errors.New("input argument schema is not valid JSON")

// DefaultArguments synthesizes an arguments object from an entry point's
// input schema. Only properties that declare a default are present, each
// holding its literal default; property order follows the schema.
func DefaultArguments(schema string) (json.RawMessage, error) {
	if strings.TrimSpace(schema) == "" {
		return json.RawMessage(`{}`), nil
	}
	if !gjson.Valid(schema) {
		return nil, errSchemaNotJSON
	}

	var b bytes.Buffer
	b.WriteByte('{')
	n := 0
	gjson.Get(schema, "properties").ForEach(func(key, prop gjson.Result) bool {
		def := prop.Get("default")
		if !def.Exists() {
			return true
		}
		name, _ := json.Marshal(key.String())
		if n > 0 {
			b.WriteByte(',')
		}
		b.Write(name)
		b.WriteByte(':')
		b.WriteString(def.Raw)
		n++
		return true
	})
	b.WriteByte('}')
	return json.RawMessage(b.Bytes()), nil
}

// ValidateArguments checks args against an entry point's input schema. An
// empty schema accepts any object.
func ValidateArguments(schema string, args json.RawMessage) error {
	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if _, ok := value.(map[string]any); !ok {
		return errors.New("arguments must be a JSON object")
	}
	if strings.TrimSpace(schema) == "" {
		return nil
	}
	if !gjson.Valid(schema) {
		return errSchemaNotJSON
	}

	compiled, err := jsonschema.NewCompiler().Compile([]byte(schema))
	if err != nil {
		return fmt.Errorf("failed to compile input argument schema: %w", err)
	}
	result := compiled.Validate(value)
	if result.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
