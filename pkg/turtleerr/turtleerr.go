// Package turtleerr is the error-context glue shared by every other package
// in this module: a small enum of failure kinds, a context-carrying Error
// type, and a replaceable process-wide handler mirroring the library's C
// ancestor, where every call site records kind, origin and message before
// handing the error up to a single global sink.
package turtleerr

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Kind identifies the category of a failure. Kinds are mutually exclusive
// per failure: exactly one best describes why an operation did not succeed.
type Kind int

const (
	// BadAddress marks a nil handle, a half-set lock/unlock pair, or a
	// client constructed against a lock-less stack.
	BadAddress Kind = iota
	// BadExtension marks an unrecognised file extension on load or dump.
	BadExtension
	// BadFormat marks a codec that rejected the file contents, or a
	// format with no write path.
	BadFormat
	// BadProjection marks a projection name that failed to parse.
	BadProjection
	// BadJson marks malformed PNG sidecar metadata.
	BadJson
	// DomainError marks an input outside its valid range: coordinates,
	// indices, fill values, or exhausting every stepper layer.
	DomainError
	// PathError marks a file that could not be found or opened.
	PathError
	// MemoryError marks an allocation failure.
	MemoryError
	// LockError marks a user lock callback returning a nonzero status.
	LockError
	// UnlockError marks a user unlock callback returning a nonzero status.
	UnlockError
	// LibraryError marks an internal invariant violation, such as a
	// reference count going negative.
	LibraryError
)

func (k Kind) String() string {
	switch k {
	case BadAddress:
		return "BadAddress"
	case BadExtension:
		return "BadExtension"
	case BadFormat:
		return "BadFormat"
	case BadProjection:
		return "BadProjection"
	case BadJson:
		return "BadJson"
	case DomainError:
		return "DomainError"
	case PathError:
		return "PathError"
	case MemoryError:
		return "MemoryError"
	case LockError:
		return "LockError"
	case UnlockError:
		return "UnlockError"
	case LibraryError:
		return "LibraryError"
	default:
		return "UnknownError"
	}
}

// Error is the context every fallible operation in this module returns.
// It carries enough to reproduce turtle_error_format_'s stderr line:
// kind, the originating function, a source location, and a message.
type Error struct {
	Kind    Kind
	Func    string
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s (%s:%d)", e.Func, e.Kind, e.File, e.Line)
	}
	return fmt.Sprintf("%s: %s: %s (%s:%d)", e.Func, e.Kind, e.Message, e.File, e.Line)
}

// New builds an *Error attributed to fn, with the caller's file:line as
// recorded by runtime.Caller, mirroring turtle_error_format_'s capture of
// __FILE__/__LINE__ at the raise site.
func New(kind Kind, fn string, format string, args ...interface{}) *Error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	return &Error{
		Kind:    kind,
		Func:    fn,
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}

// As reports whether err is (or wraps) a *turtleerr.Error, returning it.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// HandlerFunc is the signature of the process-wide error sink. It receives
// the fully formed context; it does not return a value because, like the
// C library's turtle_handler_cb, the decision to continue or abort is the
// handler's alone.
type HandlerFunc func(e *Error)

// defaultHandler mirrors the C library's default: log the full context at
// error level and terminate the process. Unlike the raw fprintf+exit in
// error.c, logging goes through logrus so it composes with whatever output
// format the embedding program has configured.
func defaultHandler(e *Error) {
	log.WithFields(log.Fields{
		"kind": e.Kind.String(),
		"func": e.Func,
		"at":   fmt.Sprintf("%s:%d", e.File, e.Line),
	}).Error(e.Message)
	os.Exit(1)
}

// handler is a sync/atomic.Value holding the current HandlerFunc, so that
// Handler() may be called concurrently from any thread while the contract
// documents replacement (SetHandler) as only safe when no other goroutine
// is calling into the library -- exactly the C contract in error.c.
var handler atomic.Value

func init() {
	handler.Store(HandlerFunc(defaultHandler))
}

// SetHandler installs a new process-wide error handler, returning the
// previous one. Call only when no other goroutine is calling into this
// module; the stored value itself is safe to read concurrently.
func SetHandler(h HandlerFunc) HandlerFunc {
	prev := handler.Load().(HandlerFunc)
	if h == nil {
		h = defaultHandler
	}
	handler.Store(h)
	return prev
}

// Handler returns the currently installed handler.
func Handler() HandlerFunc {
	return handler.Load().(HandlerFunc)
}

// Raise hands e to the current global handler. Operations that want the
// library's classic "record and maybe terminate" behaviour call Raise in
// addition to returning e; operations that merely want to propagate the
// error to their caller return e without raising it. This module only
// raises on conditions the C original treated as always-fatal-unless-
// overridden (see stack.go, client.go call sites).
func Raise(e *Error) {
	Handler()(e)
}
