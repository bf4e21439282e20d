// Package errors defines the structured error type shared by every Arbor
// package. Errors carry a category, a stable code, the offending source path
// and an optional cause so the CLI can present them uniformly.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolution  ErrorType = "resolution"
	ErrorTypeComposition ErrorType = "composition"
	ErrorTypeDependency  ErrorType = "dependency"
	ErrorTypeTarget      ErrorType = "target"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
)

// ArborError is a structured error type with context.
type ArborError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *ArborError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ArborError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same type and code.
func (e *ArborError) Is(target error) bool {
	var t *ArborError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ArborError) WithContext(key string, value interface{}) *ArborError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *ArborError) WithLocation(filePath string, line, column int) *ArborError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithFile sets the offending source path.
func (e *ArborError) WithFile(filePath string) *ArborError {
	e.FilePath = filePath

	return e
}

// WithComponent adds component context.
func (e *ArborError) WithComponent(component string) *ArborError {
	e.Component = component

	return e
}

// NewResolutionError reports a reference that no store or media lookup could satisfy.
func NewResolutionError(code, message string) *ArborError {
	return &ArborError{
		Type:    ErrorTypeResolution,
		Code:    code,
		Message: message,
	}
}

// NewCompositionError reports a missing or cyclic template or widget, or an
// editable left unresolved.
func NewCompositionError(code, message string, cause error) *ArborError {
	return &ArborError{
		Type:    ErrorTypeComposition,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewDependencyError reports malformed script input or a script cycle.
func NewDependencyError(code, message string, cause error) *ArborError {
	return &ArborError{
		Type:    ErrorTypeDependency,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTargetError reports a build target naming or write failure.
func NewTargetError(code, message string, cause error) *ArborError {
	return &ArborError{
		Type:    ErrorTypeTarget,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ArborError {
	return &ArborError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ArborError {
	return &ArborError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ArborError {
	return &ArborError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ArborError {
	return &ArborError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *ArborError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsResolutionError checks if an error comes from reference resolution.
func IsResolutionError(err error) bool {
	return hasType(err, ErrorTypeResolution)
}

// IsCompositionError checks if an error comes from component composition.
func IsCompositionError(err error) bool {
	return hasType(err, ErrorTypeComposition)
}

// IsDependencyError checks if an error comes from script dependency analysis.
func IsDependencyError(err error) bool {
	return hasType(err, ErrorTypeDependency)
}

// IsTargetError checks if an error comes from the build target.
func IsTargetError(err error) bool {
	return hasType(err, ErrorTypeTarget)
}

// IsConfigError checks if an error is configuration related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var ae *ArborError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}

	return false
}

// hasType walks the chain since wrapping may change the outer type.
func hasType(err error, t ErrorType) bool {
	for err != nil {
		var ae *ArborError
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Type == t {
			return true
		}
		err = ae.Cause
	}

	return false
}

// Common error codes.
const (
	ErrCodeMissingVariable   = "ERR_MISSING_VARIABLE"
	ErrCodeMissingMedia      = "ERR_MISSING_MEDIA"
	ErrCodeMissingParam      = "ERR_MISSING_PARAM"
	ErrCodeCircularVariable  = "ERR_CIRCULAR_VARIABLE"
	ErrCodeInvalidReference  = "ERR_INVALID_REFERENCE"
	ErrCodeInvalidVariables  = "ERR_INVALID_VARIABLES"
	ErrCodeMissingLayout     = "ERR_MISSING_LAYOUT"
	ErrCodeMalformedLayout   = "ERR_MALFORMED_LAYOUT"
	ErrCodeMissingEditable   = "ERR_MISSING_EDITABLE"
	ErrCodeUnresolvedSlot    = "ERR_UNRESOLVED_EDITABLE"
	ErrCodeEditableNotEmpty  = "ERR_EDITABLE_NOT_EMPTY"
	ErrCodeCompositionCycle  = "ERR_COMPOSITION_CYCLE"
	ErrCodeInvalidOperator   = "ERR_INVALID_OPERATOR"
	ErrCodeInvalidDescriptor = "ERR_INVALID_DESCRIPTOR"
	ErrCodeScriptSyntax      = "ERR_SCRIPT_SYNTAX"
	ErrCodeUnhandledNode     = "ERR_UNHANDLED_NODE"
	ErrCodeScriptCycle       = "ERR_SCRIPT_CYCLE"
	ErrCodeMissingScript     = "ERR_MISSING_SCRIPT"
	ErrCodeMissingStyle      = "ERR_MISSING_STYLE"
	ErrCodeMissingExtension  = "ERR_MISSING_EXTENSION"
	ErrCodeWriteFailed       = "ERR_WRITE_FAILED"
	ErrCodeTargetCollision   = "ERR_TARGET_COLLISION"
	ErrCodeReadFailed        = "ERR_READ_FAILED"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidLocale     = "ERR_INVALID_LOCALE"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeBuildFailed       = "ERR_BUILD_FAILED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *ArborError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal error.
func ErrPathTraversal(path string) *ArborError {
	return NewValidationError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrBuildFailed wraps the first unrecoverable failure of a page build.
func ErrBuildFailed(page string, cause error) *ArborError {
	return Wrap(cause, ErrorTypeInternal, ErrCodeBuildFailed, "build failed for page").WithComponent(page)
}
