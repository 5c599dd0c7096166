package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypePlugin     ErrorType = "plugin"
	ErrorTypeAsset      ErrorType = "asset"
	ErrorTypeSchema     ErrorType = "schema"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// EditorError is a structured error type with context.
type EditorError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *EditorError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *EditorError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *EditorError) Is(target error) bool {
	var t *EditorError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *EditorError) WithContext(key string, value interface{}) *EditorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *EditorError) WithComponent(component string) *EditorError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *EditorError {
	return &EditorError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *EditorError {
	return &EditorError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewPluginError creates an error attributed to a plugin or extension.
func NewPluginError(code, message string, cause error) *EditorError {
	return &EditorError{
		Type:        ErrorTypePlugin,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewAssetError creates an asset loading error.
func NewAssetError(code, message string, cause error) *EditorError {
	return &EditorError{
		Type:        ErrorTypeAsset,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewSchemaError creates a schema definition error.
func NewSchemaError(code, message string) *EditorError {
	return &EditorError{
		Type:    ErrorTypeSchema,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *EditorError {
	return &EditorError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *EditorError {
	return &EditorError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Recoverable
	}

	return false
}

// IsType reports whether err carries an EditorError of the given type.
func IsType(err error, typ ErrorType) bool {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Type == typ
	}

	return false
}

// Common error codes.
const (
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeUnknownFeature    = "ERR_UNKNOWN_FEATURE"
	ErrCodeDependencyCycle   = "ERR_DEPENDENCY_CYCLE"
	ErrCodeAssetLoad         = "ERR_ASSET_LOAD"
	ErrCodePluginSetup       = "ERR_PLUGIN_SETUP"
	ErrCodePluginAttach      = "ERR_PLUGIN_ATTACH"
	ErrCodePluginDuplicate   = "ERR_PLUGIN_DUPLICATE"
	ErrCodeExtensionFailed   = "ERR_EXTENSION_FAILED"
	ErrCodeSchemaInvalid     = "ERR_SCHEMA_INVALID"
	ErrCodeUnknownSanitizer  = "ERR_UNKNOWN_SANITIZER"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError     = "ERR_INTERNAL"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
	ErrCodeUnsupportedFormat = "ERR_UNSUPPORTED_FORMAT"
)

// ErrUnknownFeature creates the configuration error returned when an asset
// feature was never registered.
func ErrUnknownFeature(feature string) *EditorError {
	return NewConfigError(ErrCodeUnknownFeature, "unknown asset feature: "+feature).
		WithContext("feature", feature)
}

// ErrDependencyCycle creates a configuration error describing a cycle.
func ErrDependencyCycle(cycle []string) *EditorError {
	return NewConfigError(ErrCodeDependencyCycle,
		"dependency cycle: "+strings.Join(cycle, " -> ")).
		WithContext("cycle", cycle)
}
