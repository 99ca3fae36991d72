package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/foodcsp/internal/compiler"
)

// Error code constants - unified across all CLI commands.
// Record validation codes (E120-E130) come from the compiler.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E002" // Path not found
	ErrCodeReadFailed    = "E003" // File read error
	ErrCodeSchema        = "E004" // CUE syntax or schema error
	ErrCodeRegistry      = "E005" // Invalid participants or shops
	ErrCodeDefault       = "E006" // Invalid default constraint
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeUnknownRecord = "E010" // No record with this ID
	ErrCodeInvalidFilter = "E011" // Unusable solution filter
	ErrCodeJournal       = "E012" // Journal read or write failed
	ErrCodeInfeasible    = "E013" // Model has no solution
	ErrCodeAborted       = "E014" // Override of a default declined
)

// LoadError represents an error that occurred while loading a domain file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDomainFile compiles the domain at path, or the embedded default
// domain when path is empty.
func LoadDomainFile(path string) (*compiler.Domain, error) {
	if path == "" {
		d, err := compiler.DefaultDomain()
		if err != nil {
			return nil, convertCompileError(err, "default domain")
		}
		return d, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("domain file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing domain file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading domain file: %v", err)}
	}

	d, err := compiler.LoadDomain(src, path)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return d, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue" || strings.HasPrefix(field, "constraints"):
		return ErrCodeSchema
	case field == "shops" || field == "participants":
		return ErrCodeRegistry
	case strings.HasPrefix(field, "defaults"):
		return ErrCodeDefault
	default:
		return ErrCodeGeneric
	}
}
