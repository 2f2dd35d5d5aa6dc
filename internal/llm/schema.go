package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects T into an inline JSON schema suitable for strict
// structured output: no $refs and no additional properties.
func SchemaFor[T any](name, description string) *Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic("llm: reflect schema " + name + ": " + err.Error())
	}
	def := map[string]any{}
	if err := json.Unmarshal(raw, &def); err != nil {
		panic("llm: decode schema " + name + ": " + err.Error())
	}
	delete(def, "$schema")
	delete(def, "$id")
	return &Schema{Name: name, Description: description, Definition: def}
}
