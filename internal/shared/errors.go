package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Identity errors
	ErrMissingUser = fmt.Errorf("missing user id")

	// Statement errors
	ErrNoHeaders = fmt.Errorf("could not detect CSV headers")

	// Mapping errors
	ErrIncompleteMapping = fmt.Errorf("column mapping incomplete")
	ErrDuplicateColumn   = fmt.Errorf("column mapped to more than one field")
	ErrUnknownColumn     = fmt.Errorf("column not present in headers")

	// Import errors
	ErrNoCandidates      = fmt.Errorf("no importable rows")
	ErrInvalidTransition = fmt.Errorf("invalid job status transition")
	ErrJobNotFound       = fmt.Errorf("import job not found")
	ErrImportFailed      = fmt.Errorf("import failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
