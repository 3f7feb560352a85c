package assembler

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ModuleInfoSchema returns the JSON Schema document describing ModuleInfo,
// the module_info block of every module file.
func ModuleInfoSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := r.Reflect(&ModuleInfo{})
	schema.Title = "module_info"
	schema.Description = "Per-module summary written to modules/<uid>.json (schema " + SchemaVersion + ")"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
