// Package domain defines the error taxonomy shared by the parser, planner,
// evaluator, resolver, and protocol server. Every error a query can produce
// is one of these types; the front ends map them to user-visible messages
// and, on the wire, to SQLSTATE codes.
package domain

import "fmt"

// SyntaxError indicates malformed SQL text. Line and Column locate the
// offending token (1-based).
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// ResolutionError indicates a table identifier could not be loaded, or the
// loaded unit does not satisfy the provider contract.
type ResolutionError struct {
	Identifier string
	Message    string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Identifier, e.Message)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PlanError indicates a statically detectable planning failure: unknown or
// ambiguous column, invalid aggregate mixing, schema mismatch.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string { return e.Message }

// EvalError indicates a runtime expression failure: an unresolvable type
// mismatch, division by zero, an unsupported operator for a value kind.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string { return e.Message }

// ProtocolError indicates a malformed or unsupported wire message.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// ErrSyntax creates a SyntaxError with a formatted message.
func ErrSyntax(line, column int, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Line: line, Column: column, Message: fmt.Sprintf(format, args...)}
}

// ErrResolution creates a ResolutionError for the given identifier.
func ErrResolution(identifier string, err error) *ResolutionError {
	msg := "not found"
	if err != nil {
		msg = err.Error()
	}
	return &ResolutionError{Identifier: identifier, Message: msg, Err: err}
}

// ErrResolutionf creates a ResolutionError with a formatted message.
func ErrResolutionf(identifier, format string, args ...interface{}) *ResolutionError {
	return &ResolutionError{Identifier: identifier, Message: fmt.Sprintf(format, args...)}
}

// ErrPlan creates a PlanError with a formatted message.
func ErrPlan(format string, args ...interface{}) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// ErrEval creates an EvalError with a formatted message.
func ErrEval(format string, args ...interface{}) *EvalError {
	return &EvalError{Message: fmt.Sprintf(format, args...)}
}

// ErrProtocol creates a ProtocolError with a formatted message.
func ErrProtocol(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}
