package provider

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a strict JSON schema: no additional
// properties, every declared property required, all definitions inlined.
// The result is embedded in prompts so the model sees the exact shape the
// extractor will decode.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureStrictSchema(schemaObj)
	return schemaObj
}

// SchemaJSON renders GenerateSchema's output as indented JSON for prompt
// embedding.
func SchemaJSON[T any]() string {
	b, err := json.MarshalIndent(GenerateSchema[T](), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrictSchema walks the schema recursively, closing every object
// and marking every property required.
func ensureStrictSchema(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		// Map-typed fields carry their value schema in additionalProperties;
		// only plain objects get closed.
		if _, isMap := schema[additionalPropertiesKey].(map[string]interface{}); !isMap {
			schema[additionalPropertiesKey] = false
		}

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureStrictSchema(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureStrictSchema(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		ensureStrictSchema(additionalProps)
	}
}
