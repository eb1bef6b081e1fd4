package models

import "fmt"

// ValidationError reports missing or malformed request input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ExtractionError reports that a specific uploaded document could not be parsed.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %q: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UpstreamServiceError reports a failed call to the embedding, index or
// completion service. Op names the failing stage.
type UpstreamServiceError struct {
	Op  string
	Err error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a missing required setting at startup.
// It is fatal: the process must not serve requests.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + e.Field
}
