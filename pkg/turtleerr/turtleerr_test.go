package turtleerr

import (
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{BadAddress, "BadAddress"},
		{DomainError, "DomainError"},
		{LibraryError, "LibraryError"},
		{Kind(999), "UnknownError"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Fatalf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestNewCapturesMessage(t *testing.T) {
	e := New(DomainError, "grid.Elevation", "x=%v out of range", 4.5)
	if e.Kind != DomainError {
		t.Fatalf("Kind = %v, want DomainError", e.Kind)
	}
	if e.Message != "x=4.5 out of range" {
		t.Fatalf("Message = %q", e.Message)
	}
	if e.Func != "grid.Elevation" {
		t.Fatalf("Func = %q", e.Func)
	}
	if e.Line == 0 {
		t.Fatalf("Line not captured")
	}
}

func TestSetHandlerRoundTrips(t *testing.T) {
	var seen *Error
	prev := SetHandler(func(e *Error) { seen = e })
	defer SetHandler(prev)

	e := New(LibraryError, "stack.release", "refcount underflow")
	Raise(e)

	if seen != e {
		t.Fatalf("custom handler did not receive the raised error")
	}
}

func TestErrorStringIncludesKindAndFunc(t *testing.T) {
	e := New(PathError, "stack.Load", "no such file: %s", "ASTGTM2_N45W072_dem.tif")
	s := e.Error()
	if s == "" {
		t.Fatalf("empty error string")
	}
	if !strings.Contains(s, "PathError") {
		t.Fatalf("error string %q does not name the kind", s)
	}
	if !strings.Contains(s, "stack.Load") {
		t.Fatalf("error string %q does not name the function", s)
	}
}
