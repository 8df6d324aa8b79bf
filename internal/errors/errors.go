// Package errors provides the error taxonomy for runsheet conversion.
// Every fatal condition carries an operation name, a kind, and a message
// naming the offending field, file, or row so callers can surface the
// diagnostic context instead of a bare failure.
package errors

import (
	stderrors "errors"
	"strings"
)

// Op represents an operation name for error context.
type Op string

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Kind represents the category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindStructure: investigation file is missing or repeats a section.
	KindStructure
	// KindNoMatch: no assay table matches the configured assay types.
	KindNoMatch
	// KindColumn: a source column could not be resolved and no fallback exists.
	KindColumn
	// KindSuffix: read suffix extraction found zero or several candidates.
	KindSuffix
	// KindSchema: the produced runsheet violates its schema.
	KindSchema
	// KindRemote: a filename could not be resolved to a remote URL.
	KindRemote
	KindConfig
	KindIO
	KindParse
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindStructure:
		return "structure"
	case KindNoMatch:
		return "no_match"
	case KindColumn:
		return "column"
	case KindSuffix:
		return "suffix"
	case KindSchema:
		return "schema"
	case KindRemote:
		return "remote"
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, error, string (message).
// A wrapped *Error lends its Kind when none is given.
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	if e.Kind == KindUnknown && e.Err != nil {
		e.Kind = GetKind(e.Err)
	}
	return e
}

// Wrap wraps an error with an operation name for context.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Msg: msg, Err: err}
}

// IsKind checks if an error, or any error it wraps, is of the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetKind returns the kind of the outermost classified error, or KindUnknown.
func GetKind(err error) Kind {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return KindUnknown
		}
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}
