package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Job lifecycle errors
	ErrJobNotFound       = fmt.Errorf("job not found")
	ErrChunkNotFound     = fmt.Errorf("chunk not found")
	ErrJobTimeout        = fmt.Errorf("job timed out")
	ErrJobTerminal       = fmt.Errorf("job already in a terminal status")
	ErrInvalidDocument   = fmt.Errorf("invalid source document")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")

	// Translator and service errors
	ErrTranslatorRequest     = fmt.Errorf("translator request failed")
	ErrTranslatorUnavailable = fmt.Errorf("translator unavailable")
	ErrRateLimited           = fmt.Errorf("rate limited by translation provider")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
