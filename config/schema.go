package config

//go:generate go run ../tools/schema-generator ../schema/definitions

import (
	"sync"

	"github.com/grovetools/provenance/schema"
)

var schemaOptions = schema.ReflectOptions{
	Title:        "prov configuration",
	Description:  "Schema for prov.yml. Unknown top-level keys are extensions.",
	FieldNameTag: "yaml",
	OpenRoot:     true,
}

var (
	validatorOnce sync.Once
	validator     *schema.Validator
)

// GenerateSchema generates the JSON Schema for prov.yml.
func GenerateSchema() ([]byte, error) {
	return schema.Reflect(&Config{}, schemaOptions)
}

// Validator returns the compiled configuration schema.
func Validator() *schema.Validator {
	validatorOnce.Do(func() {
		validator = schema.MustValidatorFor("prov.schema.json", &Config{}, schemaOptions)
	})
	return validator
}
