package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema builds a JSON-schema parameter map for T's exported
// fields, suitable for protocol.Tool.Parameters. Field tags:
//
//	json:"name"                          - parameter name
//	json:",omitempty"                    - optional parameter
//	jsonschema:"required"                - force-required regardless of omitempty
//	jsonschema:"description=..."         - parameter description
//	jsonschema:"enum=a|b|c"              - allowed values
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
