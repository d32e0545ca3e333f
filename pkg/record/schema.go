package record

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/schema"
)

// document is the on-disk shape of a record. It drives both decoding and
// the published JSON Schema.
type document struct {
	StartTime                 time.Time         `json:"start_time" jsonschema:"description=When the scoped work began"`
	EndTime                   time.Time         `json:"end_time" jsonschema:"description=When the scoped work completed"`
	Duration                  string            `json:"duration" jsonschema:"description=end_time minus start_time,pattern=^-?([0-9]+(\\.[0-9]*)?(ns|us|µs|ms|s|m|h))+$"`
	FileHash                  string            `json:"file_hash" jsonschema:"description=Lowercase hex SHA-1 of the artifact,pattern=^[0-9a-f]{40}$"`
	WorkingDirectory          string            `json:"working_directory" jsonschema:"description=Process working directory at completion"`
	CallStack                 []string          `json:"call_stack" jsonschema:"description=Frames at completion as file:line function (innermost first)"`
	EnvironmentDescriptorPath string            `json:"environment_descriptor_path" jsonschema:"description=Descriptor file holding the environment export,minLength=1"`
	ArtifactPath              string            `json:"artifact_path,omitempty" jsonschema:"description=Artifact path as given to the session"`
	Label                     string            `json:"label,omitempty" jsonschema:"description=Caller-supplied context label"`
	InvocationID              string            `json:"invocation_id,omitempty" jsonschema:"description=Per-session UUID,format=uuid"`
	Labels                    map[string]string `json:"labels,omitempty" jsonschema:"description=Free-form caller context"`
}

var knownKeys = map[string]bool{
	KeyStartTime:             true,
	KeyEndTime:               true,
	KeyDuration:              true,
	KeyFileHash:              true,
	KeyWorkingDirectory:      true,
	KeyCallStack:             true,
	KeyEnvironmentDescriptor: true,
	KeyArtifactPath:          true,
	KeyLabel:                 true,
	KeyInvocationID:          true,
	KeyLabels:                true,
}

var schemaOptions = schema.ReflectOptions{
	Title:        "provenance record",
	Description:  "Metadata sidecar describing how an artifact was produced.",
	FieldNameTag: "json",
	OpenRoot:     true,
}

var (
	validatorOnce sync.Once
	validator     *schema.Validator
)

// Schema returns the JSON Schema of a sidecar record.
func Schema() ([]byte, error) {
	return schema.Reflect(&document{}, schemaOptions)
}

func recordValidator() *schema.Validator {
	validatorOnce.Do(func() {
		validator = schema.MustValidatorFor("record.schema.json", &document{}, schemaOptions)
	})
	return validator
}

// Validate checks raw sidecar content against the record schema.
func Validate(data []byte) error {
	if err := recordValidator().ValidateJSON(data); err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordInvalid, "record does not match schema")
	}
	return nil
}

// Unmarshal validates and decodes sidecar content. Keys outside the record
// schema are kept in Extra as decoded JSON values.
func Unmarshal(data []byte) (*Record, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRecordInvalid, "decoding record")
	}

	duration, err := time.ParseDuration(doc.Duration)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRecordInvalid, fmt.Sprintf("invalid duration %q", doc.Duration))
	}

	r := &Record{
		StartTime:                 doc.StartTime,
		EndTime:                   doc.EndTime,
		Duration:                  duration,
		FileHash:                  doc.FileHash,
		WorkingDirectory:          doc.WorkingDirectory,
		CallStack:                 doc.CallStack,
		EnvironmentDescriptorPath: doc.EnvironmentDescriptorPath,
		ArtifactPath:              doc.ArtifactPath,
		Label:                     doc.Label,
		InvocationID:              doc.InvocationID,
		Labels:                    doc.Labels,
	}

	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRecordInvalid, "decoding record")
	}
	for k, v := range all {
		if knownKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]interface{})
		}
		r.Extra[k] = v
	}

	return r, nil
}
