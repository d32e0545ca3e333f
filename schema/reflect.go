package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ReflectOptions controls how a Go type is turned into a JSON Schema.
type ReflectOptions struct {
	Title       string
	Description string
	// FieldNameTag selects the struct tag that names properties, e.g.
	// "json" for records or "yaml" for configuration files.
	FieldNameTag string
	// OpenRoot allows unknown keys at the top level while nested objects
	// stay closed. Used for configuration with free-form extensions.
	OpenRoot bool
}

// Reflect generates a JSON Schema document for v.
func Reflect(v interface{}, opts ReflectOptions) ([]byte, error) {
	tag := opts.FieldNameTag
	if tag == "" {
		tag = "json"
	}
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Expand struct references instead of using $ref for a flat schema.
		ExpandedStruct: true,
		FieldNameTag:   tag,
	}

	s := r.Reflect(v)
	s.Title = opts.Title
	s.Description = opts.Description
	if opts.OpenRoot {
		s.AdditionalProperties = nil
	}

	return json.MarshalIndent(s, "", "  ")
}

// MustValidatorFor reflects v and compiles the result. It panics on error
// and is meant for package-level validators over fixed types.
func MustValidatorFor(name string, v interface{}, opts ReflectOptions) *Validator {
	data, err := Reflect(v, opts)
	if err != nil {
		panic(err)
	}
	validator, err := NewValidator(name, data)
	if err != nil {
		panic(err)
	}
	return validator
}
