package provider

import (
	"strings"
	"testing"
)

type schemaFixture struct {
	Title string `json:"title"`
	Items []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"items"`
}

func TestGenerateSchema_Strict(t *testing.T) {
	t.Parallel()

	schema := GenerateSchema[schemaFixture]()
	if schema["type"] != "object" {
		t.Fatalf("type=%v", schema["type"])
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("additionalProperties=%v, want false", schema["additionalProperties"])
	}

	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("required=%T", schema["required"])
	}
	if len(required) != 2 {
		t.Fatalf("required=%v", required)
	}

	items := schema["properties"].(map[string]interface{})["items"].(map[string]interface{})
	inner := items["items"].(map[string]interface{})
	if inner["additionalProperties"] != false {
		t.Fatalf("nested object not closed: %v", inner)
	}
}

func TestGenerateSchema_KeepsMapValueSchema(t *testing.T) {
	t.Parallel()

	type withMap struct {
		Positions map[string]string `json:"positions"`
	}
	schema := GenerateSchema[withMap]()
	positions := schema["properties"].(map[string]interface{})["positions"].(map[string]interface{})
	values, ok := positions["additionalProperties"].(map[string]interface{})
	if !ok {
		t.Fatalf("map value schema clobbered: %v", positions["additionalProperties"])
	}
	if values["type"] != "string" {
		t.Fatalf("value schema=%v", values)
	}
}

func TestSchemaJSON(t *testing.T) {
	t.Parallel()

	s := SchemaJSON[schemaFixture]()
	for _, want := range []string{`"title"`, `"items"`, `"additionalProperties": false`} {
		if !strings.Contains(s, want) {
			t.Fatalf("schema JSON missing %s:\n%s", want, s)
		}
	}
}
