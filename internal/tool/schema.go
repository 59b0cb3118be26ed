package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// validateArgs compiles a handler's JSON-Schema and validates args against
// it, returning the validator's error unchanged; the Executor reports it as
// a "missing or invalid arguments" tool result. Schemas are data values,
// validated at call time, not statically typed functions.
func validateArgs(schema map[string]any, args json.RawMessage) error {
	if schema == nil {
		return nil
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-args.json", bytesReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("tool-args.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("invalid arguments JSON: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return err
	}
	return nil
}
