package schema

// ExtensionSchemaURLs maps canopy extension keys to the canonical URL of
// their JSON schema. Extensions publish their own schemas, and this
// manifest is used to compose them into a unified schema for validation
// and IDE support.
//
// Extension schemas are currently empty: the 'logging' schema is
// generated locally by tools/logging-schema-generator and merged at
// release time once it is published as a release asset.
var ExtensionSchemaURLs = map[string]string{
	// "logging": "https://github.com/grovetools/canopy/releases/download/v0.1.0/logging.schema.json",
}
