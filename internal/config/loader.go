package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

// SchemaURL identifies the embedded schema.
const SchemaURL = "mapbridge.v1.schema.json"

//go:embed mapbridge.v1.schema.json
var embeddedSchema string

// Schema returns the embedded JSON schema document.
func Schema() string {
	return embeddedSchema
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath == "" {
		return jsonschema.CompileString(SchemaURL, embeddedSchema)
	}
	return jsonschema.Compile(schemaPath)
}

// LoadAndValidate loads and validates the configuration. An empty schemaPath
// uses the embedded schema. Defaults and environment overrides are applied
// after validation.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}
	return Parse(data, schemaPath)
}

// Parse validates and decodes a YAML document.
func Parse(data []byte, schemaPath string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	config.ApplyDefaults()
	if err := config.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &config, nil
}
