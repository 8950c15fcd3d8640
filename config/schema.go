package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the base JSON Schema for the core canopy
// configuration. It reflects the Config struct from types.go but excludes
// the 'Extensions' field, which is handled by schema composition.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Do not allow unknown fields, extensions will be added explicitly during composition.
		AllowAdditionalProperties: false,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	// A temporary struct that omits the Extensions field so it's not
	// included in the base schema.
	type BaseConfig struct {
		Version  string         `yaml:"version" jsonschema:"required,description=Configuration version (e.g. '1.0')"`
		Listener ListenerConfig `yaml:"listener,omitempty" jsonschema:"description=Hook event listener settings"`
		Scan     ScanConfig     `yaml:"scan,omitempty" jsonschema:"description=Process discovery settings"`
		Pricing  PricingConfig  `yaml:"pricing,omitempty" jsonschema:"description=Token pricing overrides"`
	}

	schema := r.Reflect(&BaseConfig{})
	schema.Title = "Canopy Configuration"
	schema.Description = "Base schema for core canopy.yml properties."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
