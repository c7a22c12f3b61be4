// Package errors provides centralized error definitions and error handling
// utilities for the crew codebase. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - TeamError: errors related to team registry operations
//   - MailboxError: errors related to inbox messaging
//   - TaskError: errors related to the task graph
//   - LockError: errors related to cross-process locking
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewTeamError("failed to load config", errors.ErrTeamNotFound).WithTeam("t1")
//
//	// Semantic error
//	err := errors.NewNotFoundError("task", "42")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrLockTimeout) { ... }
//
//	var tErr *errors.TaskError
//	if errors.As(err, &tErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry (lock timeouts)
//   - UserFacing: errors safe to display to callers (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Team-related sentinel errors
var (
	// ErrTeamNotFound indicates that a team could not be found.
	ErrTeamNotFound = New("team not found")
	// ErrTeamExists indicates that a team with the same name already exists.
	ErrTeamExists = New("team already exists")
	// ErrTeammatesActive indicates a team deletion was refused because
	// one or more agents have not terminated.
	ErrTeammatesActive = New("teammates still active")
	// ErrAgentNotFound indicates that an agent could not be found in a team.
	ErrAgentNotFound = New("agent not found")
	// ErrAgentExists indicates that an agent name is already taken in a team.
	ErrAgentExists = New("agent already exists")
)

// Mailbox-related sentinel errors
var (
	// ErrInvalidRecipient indicates a message could not be routed: broadcast
	// attempted by a non-lead, or the recipient does not exist.
	ErrInvalidRecipient = New("invalid recipient")
	// ErrInvalidMessageKind indicates an unknown message kind.
	ErrInvalidMessageKind = New("invalid message kind")
	// ErrInvalidPayload indicates a payload that fails its kind's schema.
	ErrInvalidPayload = New("invalid message payload")
)

// Task-related sentinel errors
var (
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrCycleDetected indicates a dependency edge that would create a cycle.
	ErrCycleDetected = New("dependency cycle detected")
	// ErrDependencyNotComplete indicates a completion attempt while a
	// dependency is not yet completed.
	ErrDependencyNotComplete = New("dependency not complete")
)

// Storage and locking sentinel errors
var (
	// ErrNotFound indicates that a record is absent on disk.
	ErrNotFound = New("record not found")
	// ErrCorrupt indicates an on-disk record that cannot be decoded.
	// It is surfaced, never auto-repaired; silent repair could hide data loss.
	ErrCorrupt = New("record corrupt")
	// ErrLockTimeout indicates a lock was not acquired within the timeout.
	// Callers may retry with backoff.
	ErrLockTimeout = New("lock acquisition timed out")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TeamError represents errors related to team registry operations.
//
// Example:
//
//	err := errors.NewTeamError("delete refused", errors.ErrTeammatesActive).WithTeam("t1")
type TeamError struct {
	baseError
	Team  string
	Agent string
}

// NewTeamError creates a new TeamError.
func NewTeamError(message string, cause error) *TeamError {
	return &TeamError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTeam adds a team name to the error context.
func (e *TeamError) WithTeam(team string) *TeamError {
	e.Team = team
	return e
}

// WithAgent adds an agent name to the error context.
func (e *TeamError) WithAgent(agent string) *TeamError {
	e.Agent = agent
	return e
}

// Error returns the formatted error message.
func (e *TeamError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, fmt.Sprintf("team=%s", e.Team))
	}
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.Agent))
	}

	prefix := "team error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("team error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TeamError) Is(target error) bool {
	if _, ok := target.(*TeamError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MailboxError represents errors related to inbox messaging.
//
// Example:
//
//	err := errors.NewMailboxError("broadcast refused", errors.ErrInvalidRecipient).
//		WithTeam("t1").WithAgent("w1")
type MailboxError struct {
	baseError
	Team  string
	Agent string
}

// NewMailboxError creates a new MailboxError.
func NewMailboxError(message string, cause error) *MailboxError {
	return &MailboxError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTeam adds a team name to the error context.
func (e *MailboxError) WithTeam(team string) *MailboxError {
	e.Team = team
	return e
}

// WithAgent adds the inbox owner's agent name to the error context.
func (e *MailboxError) WithAgent(agent string) *MailboxError {
	e.Agent = agent
	return e
}

// Error returns the formatted error message.
func (e *MailboxError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, fmt.Sprintf("team=%s", e.Team))
	}
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("inbox=%s", e.Agent))
	}

	prefix := "mailbox error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("mailbox error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *MailboxError) Is(target error) bool {
	if _, ok := target.(*MailboxError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TaskError represents errors related to the task graph.
//
// Example:
//
//	err := errors.NewTaskError("update rejected", errors.ErrCycleDetected).
//		WithTeam("t1").WithTaskID(2)
type TaskError struct {
	baseError
	Team   string
	TaskID int
}

// NewTaskError creates a new TaskError.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		TaskID: -1, // -1 indicates not set
	}
}

// WithTeam adds a team name to the error context.
func (e *TaskError) WithTeam(team string) *TaskError {
	e.Team = team
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *TaskError) WithTaskID(id int) *TaskError {
	e.TaskID = id
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, fmt.Sprintf("team=%s", e.Team))
	}
	if e.TaskID >= 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}

	prefix := "task error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("task error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LockError represents errors related to cross-process locking.
// Lock timeouts are retryable by construction.
type LockError struct {
	baseError
	Resource string
}

// NewLockError creates a new LockError. When the cause is ErrLockTimeout
// the error is marked retryable.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  errors.Is(cause, ErrLockTimeout),
			userFacing: true,
		},
	}
}

// WithResource adds the lock resource path to the error context.
func (e *LockError) WithResource(resource string) *LockError {
	e.Resource = resource
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	prefix := "lock error"
	if e.Resource != "" {
		prefix = fmt.Sprintf("lock error [resource=%s]", e.Resource)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("team", "t1")
//	fmt.Println(err) // "team 't1' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			cause:      ErrNotFound,
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause replaces the underlying cause.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("agent", "w1")
//	fmt.Println(err) // "agent 'w1' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("name", "bad/name", "must be filesystem-safe")
type ValidationError struct {
	baseError
	Field  string
	Value  string
	Reason string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    fmt.Sprintf("invalid %s: %s", field, reason),
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// classifier is implemented by errors that carry classification metadata.
type classifier interface {
	Severity() Severity
	IsRetryable() bool
	IsUserFacing() bool
}

// IsRetryable returns true if the error is transient and the operation may
// succeed on retry. Lock timeouts are the only retryable errors in the
// coordination surface.
func IsRetryable(err error) bool {
	var c classifier
	if errors.As(err, &c) {
		return c.IsRetryable()
	}
	return errors.Is(err, ErrLockTimeout)
}

// IsUserFacing returns true if the error message is safe to display to
// callers of the coordination surface.
func IsUserFacing(err error) bool {
	var c classifier
	if errors.As(err, &c) {
		return c.IsUserFacing()
	}
	return false
}

// SeverityOf returns the severity of an error, defaulting to SeverityError
// for errors without classification metadata.
func SeverityOf(err error) Severity {
	var c classifier
	if errors.As(err, &c) {
		return c.Severity()
	}
	return SeverityError
}

// IsNotFound returns true for any absent-resource error: the ErrNotFound
// sentinel, domain sentinels for missing teams/agents/tasks, or a
// NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

// Wrap annotates err with a message, preserving the error chain.
// Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message, preserving the error chain.
// Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
