// Package errors provides the error taxonomy for the crosswalk system.
// Structural violations are fatal for a run; unresolved conflicts and schema
// drift are recoverable and carry enough context for an operator to act.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentstation/crosswalk/pkg/constants"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join mirror the standard library so callers need a single import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Sentinel errors for the crosswalk system
var (
	// ErrInvariant indicates a structural violation (duplicate link, non-dense IDs, null IDs, row-count drift)
	ErrInvariant = errors.New("invariant violated")

	// ErrUnresolved indicates an identity collision that no policy could settle
	ErrUnresolved = errors.New("unresolved conflict")

	// ErrAborted indicates the operator quit an interactive resolution
	ErrAborted = errors.New("aborted by operator")

	// ErrSchemaDrift indicates a column expected on one side is absent
	ErrSchemaDrift = errors.New("schema drift")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidStage indicates a reference engine transition from the wrong state
	ErrInvalidStage = errors.New("invalid stage")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrLocked indicates another ingestion holds the canonical table
	ErrLocked = errors.New("locked")
)

// InvariantError represents a structural violation detected by a hard check.
type InvariantError struct {
	Check  string // "dense_ids", "duplicate_link", "null_id", "row_count"
	Detail string
	IDs    []string
}

// Error implements the error interface
func (e *InvariantError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("invariant %s violated: %s (ids: %s)", e.Check, e.Detail, summarizeIDs(e.IDs))
	}
	return fmt.Sprintf("invariant %s violated: %s", e.Check, e.Detail)
}

// Is implements errors.Is support
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

// NewInvariantError creates a new InvariantError
func NewInvariantError(check, detail string, ids ...string) *InvariantError {
	return &InvariantError{Check: check, Detail: detail, IDs: ids}
}

// ConflictError represents an identity group that could not be split or merged.
type ConflictError struct {
	Identity string
	Rows     int
	Message  string
	Err      error
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if e.Identity != "" {
		return fmt.Sprintf("conflict for %s (%d rows): %s", e.Identity, e.Rows, e.Message)
	}
	return fmt.Sprintf("conflict (%d rows): %s", e.Rows, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrUnresolved
}

// SchemaError represents a column absent from a table that needed it.
type SchemaError struct {
	Table   string
	Columns []string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s is missing columns: %s", e.Table, strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaDrift
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(table string, columns ...string) *SchemaError {
	return &SchemaError{Table: table, Columns: columns}
}

// StageError represents an engine transition requested from the wrong stage.
type StageError struct {
	Operation string
	Have      string
	Want      []string
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("%s requires stage %s, have %s", e.Operation, strings.Join(e.Want, " or "), e.Have)
}

// Is implements errors.Is support
func (e *StageError) Is(target error) bool {
	return target == ErrInvalidStage
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// MergeError represents an invalid link set produced by a merge pass
type MergeError struct {
	Criterion string
	Side      string // "reference" or "supplemental"
	IDs       []string
	Err       error
}

// Error implements the error interface
func (e *MergeError) Error() string {
	where := "loop merge"
	if e.Criterion != "" {
		where = "criterion " + e.Criterion
	}
	return fmt.Sprintf("%s produced duplicate %s links (ids: %s)", where, e.Side, summarizeIDs(e.IDs))
}

// Unwrap implements errors.Unwrap
func (e *MergeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MergeError) Is(target error) bool {
	return target == ErrInvariant
}

// NewMergeError creates a new MergeError
func NewMergeError(criterion, side string, ids []string) *MergeError {
	return &MergeError{Criterion: criterion, Side: side, IDs: ids}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "csv", "yaml", ...
	File    string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d: %s", e.Format, e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "rename", "lock"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsInvariant checks if an error is a structural violation
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// IsUnresolved checks if an error is an unresolved conflict
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolved)
}

// IsAborted checks if an operator quit a manual resolution
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// IsSchemaDrift checks if an error reports missing columns
func IsSchemaDrift(err error) bool {
	return errors.Is(err, ErrSchemaDrift)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

func summarizeIDs(ids []string) string {
	if len(ids) <= constants.MaxReportIDs {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s, ... %d more", strings.Join(ids[:constants.MaxReportIDs], ", "), len(ids)-constants.MaxReportIDs)
}
