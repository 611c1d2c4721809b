package project

import "fmt"

// MetadataError represents a failure to determine the build metadata of a
// project environment (missing platformio.ini, unknown environment, ...).
type MetadataError struct {
	// Dir is the project directory
	Dir string
	// Environment is the requested environment name
	Environment string
	// Underlying error
	Err error
}

func (e *MetadataError) Error() string {
	if e.Environment == "" {
		return fmt.Sprintf("cannot read project metadata in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("cannot read metadata of environment %q in %s: %v", e.Environment, e.Dir, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// ArtifactError represents a build artifact that is missing on disk.
type ArtifactError struct {
	// Artifact is "firmware" or "addr2line"
	Artifact string
	// Path is the expected location (may be empty if it could not be derived)
	Path string
	// Hint suggests how to fix the problem
	Hint string
	// Underlying error if any
	Err error
}

func (e *ArtifactError) Error() string {
	msg := fmt.Sprintf("failed to find %s", e.Artifact)
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %s does not exist", e.Artifact, e.Path)
	}
	if e.Hint != "" {
		msg += ", " + e.Hint
	}
	return msg
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}
