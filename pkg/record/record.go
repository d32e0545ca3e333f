// Package record defines the provenance metadata record written next to an
// artifact, its JSON encoding and the sidecar file that holds it.
package record

import (
	"time"
)

// Record keys as they appear in a sidecar file.
const (
	KeyStartTime             = "start_time"
	KeyEndTime               = "end_time"
	KeyDuration              = "duration"
	KeyFileHash              = "file_hash"
	KeyWorkingDirectory      = "working_directory"
	KeyCallStack             = "call_stack"
	KeyEnvironmentDescriptor = "environment_descriptor_path"
	KeyArtifactPath          = "artifact_path"
	KeyLabel                 = "label"
	KeyInvocationID          = "invocation_id"
	KeyLabels                = "labels"
)

// Record describes how one artifact was produced.
type Record struct {
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	FileHash         string
	WorkingDirectory string
	// CallStack lists "file:line function" frames, innermost first.
	CallStack                 []string
	EnvironmentDescriptorPath string

	ArtifactPath string
	Label        string
	InvocationID string
	Labels       map[string]string

	// Extra holds caller-supplied values. They are encoded through the
	// Encoder's converters and must not reuse a record key.
	Extra map[string]interface{}
}

// Fields returns the record as a flat key/value map with Go values. Empty
// optional keys are left out.
func (r *Record) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, 11+len(r.Extra))
	for k, v := range r.Extra {
		fields[k] = v
	}

	callStack := r.CallStack
	if callStack == nil {
		callStack = []string{}
	}

	fields[KeyStartTime] = r.StartTime
	fields[KeyEndTime] = r.EndTime
	fields[KeyDuration] = r.Duration
	fields[KeyFileHash] = r.FileHash
	fields[KeyWorkingDirectory] = r.WorkingDirectory
	fields[KeyCallStack] = callStack
	fields[KeyEnvironmentDescriptor] = r.EnvironmentDescriptorPath

	if r.ArtifactPath != "" {
		fields[KeyArtifactPath] = r.ArtifactPath
	}
	if r.Label != "" {
		fields[KeyLabel] = r.Label
	}
	if r.InvocationID != "" {
		fields[KeyInvocationID] = r.InvocationID
	}
	if len(r.Labels) > 0 {
		fields[KeyLabels] = r.Labels
	}
	return fields
}

// Marshal encodes the record with the default encoder.
func (r *Record) Marshal() ([]byte, error) {
	return NewEncoder().Encode(r.Fields())
}
