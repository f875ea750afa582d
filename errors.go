// FILE: modconf/errors.go
package modconf

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by spec construction and registry operations.
var (
	// ErrValidationFailed indicates a candidate value failed its validator.
	ErrValidationFailed = errors.New("validation failed")

	// ErrSpecNotBuilt indicates a value handle was used before Build completed.
	ErrSpecNotBuilt = errors.New("spec not built")

	// ErrNotRegistered indicates the (owner, side, file name) triple is unknown.
	ErrNotRegistered = errors.New("config not registered")

	// ErrNotLoaded indicates a reload was requested for an entry that never loaded.
	ErrNotLoaded = errors.New("config not loaded")

	// ErrBadFileName indicates a custom file name is not a bare .toml name.
	ErrBadFileName = errors.New("invalid config file name")

	// ErrUnknownSyncFile indicates a sync payload names no registered server config.
	ErrUnknownSyncFile = errors.New("sync payload for unknown config file")

	// ErrServerSideLoad indicates LoadSide was called for the server side,
	// which resolves against a per-save directory via LoadServerConfigs.
	ErrServerSideLoad = errors.New("server configs load through LoadServerConfigs")

	// ErrClosed indicates the registry has been shut down.
	ErrClosed = errors.New("registry closed")
)

// BuilderStateError reports a builder call that is invalid in the current
// builder state, such as Pop with no open section.
type BuilderStateError struct {
	// Op is the offending builder operation.
	Op string
	// Detail describes why the operation was rejected.
	Detail string
}

// Error implements the error interface.
func (e *BuilderStateError) Error() string {
	return fmt.Sprintf("builder %s: %s", e.Op, e.Detail)
}

// DuplicatePathError reports two sibling definitions sharing a name.
type DuplicatePathError struct {
	// Path is the full dot path of the colliding definition.
	Path string
}

// Error implements the error interface.
func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("duplicate definition at path %q", e.Path)
}

// UnbalancedSectionError reports sections left open at Build.
type UnbalancedSectionError struct {
	// Open lists the paths of sections pushed without a matching Pop,
	// outermost first.
	Open []string
}

// Error implements the error interface.
func (e *UnbalancedSectionError) Error() string {
	return fmt.Sprintf("unbalanced sections at build: %s still open", strings.Join(e.Open, ", "))
}

// ValidationError describes a rejected candidate value. It is recovered
// during load: the value falls back to its default and the document is
// marked for rewrite.
type ValidationError struct {
	// Path is the value path that failed validation.
	Path string
	// Message describes the failure.
	Message string
	// Value is the rejected candidate.
	Value any
	// Code categorizes the failure.
	Code ValidationErrorCode
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is implements error matching against ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrorCode categorizes validation failures.
type ValidationErrorCode uint8

const (
	// CodeTypeMismatch indicates the candidate's data type is wrong.
	CodeTypeMismatch ValidationErrorCode = iota
	// CodeOutOfRange indicates a numeric candidate is outside [min, max].
	CodeOutOfRange
	// CodeNotAllowed indicates the candidate is not in the allowed set.
	CodeNotAllowed
	// CodeEmptyList indicates an empty list where elements are required.
	CodeEmptyList
	// CodeBadElement indicates a list element failed the element validator.
	CodeBadElement
	// CodeRejected indicates a custom validator rejected the candidate.
	CodeRejected
)

// String returns a short name for the error code.
func (c ValidationErrorCode) String() string {
	switch c {
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeOutOfRange:
		return "out_of_range"
	case CodeNotAllowed:
		return "not_allowed"
	case CodeEmptyList:
		return "empty_list"
	case CodeBadElement:
		return "bad_element"
	case CodeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// DeserializationError reports a structurally unparseable backing document.
// It is recovered during load: the document is treated as empty and every
// value falls back to its default.
type DeserializationError struct {
	// Err is the parser error.
	Err error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("unparseable config document: %v", e.Err)
}

// Unwrap returns the parser error.
func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// DuplicateRegistrationError reports a registration whose file name is
// already claimed on that side. Owner names the entry holding the claim.
type DuplicateRegistrationError struct {
	Owner    string
	Side     Side
	FileName string
}

// Error implements the error interface.
func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("config already registered: owner %q side %s file %q", e.Owner, e.Side, e.FileName)
}

// SyncPayloadMismatchError reports paths in a sync payload that do not
// exist in the local spec. It is recovered: known paths are applied and
// unknown paths are ignored.
type SyncPayloadMismatchError struct {
	// FileName identifies the target config file.
	FileName string
	// Unknown lists the payload paths with no local definition.
	Unknown []string
}

// Error implements the error interface.
func (e *SyncPayloadMismatchError) Error() string {
	return fmt.Sprintf("sync payload for %q references unknown paths: %s", e.FileName, strings.Join(e.Unknown, ", "))
}
