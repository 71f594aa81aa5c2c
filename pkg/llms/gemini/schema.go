package gemini

import (
	"encoding/json"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/invopop/jsonschema"
)

func generateJSONSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var value T
	schema := reflector.Reflect(value)

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	var schemaMap map[string]any
	err = json.Unmarshal(schemaJSON, &schemaMap)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	// The response schema endpoint rejects the draft marker.
	delete(schemaMap, "$schema")
	return schemaMap, nil
}
