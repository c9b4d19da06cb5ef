// Package diagnostics implements the analyzer's output contract: a stream
// of diagnostics with a kind, a message, an optional source location, and
// optional sub-diagnostics. Reporting a diagnostic never aborts the pass
// that raised it.
package diagnostics

import (
	"fmt"
	"strings"

	"fu/internal/ast"

	"github.com/pkg/errors"
)

// Kind is the severity/category of a Diagnostic.
type Kind string

const (
	Info     Kind = "Info"
	Warning  Kind = "Warning"
	Error    Kind = "Error"
	Note     Kind = "Note"
	Debug    Kind = "Debug"
	Critical Kind = "Critical"
)

// Diagnostic is one reported finding. Critical indicates an internal
// invariant failure rather than a problem with the user's program.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location *ast.Location
	Sub      []*Diagnostic
	// Cause is set only for Critical diagnostics raised from an unexpected
	// internal error; it carries a pkg/errors stack trace.
	Cause error
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.Kind, d.Message)
	if d.Location != nil {
		fmt.Fprintf(&sb, " (at %s:%d:%d)", d.Location.File, d.Location.LineStart, d.Location.ColStart)
	}
	for _, s := range d.Sub {
		fmt.Fprintf(&sb, "\n  - %s", s.String())
	}
	return sb.String()
}

func New(kind Kind, message string, loc *ast.Location, sub ...*Diagnostic) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, Location: loc, Sub: sub}
}

func Errorf(loc *ast.Location, format string, args ...interface{}) *Diagnostic {
	return New(Error, fmt.Sprintf(format, args...), loc)
}

func Warningf(loc *ast.Location, format string, args ...interface{}) *Diagnostic {
	return New(Warning, fmt.Sprintf(format, args...), loc)
}

// CriticalFromError wraps an unexpected internal error (a broken invariant,
// not a user-program defect) as a Critical diagnostic with a captured stack
// trace.
func CriticalFromError(loc *ast.Location, err error, context string) *Diagnostic {
	wrapped := errors.Wrap(err, context)
	return &Diagnostic{Kind: Critical, Message: wrapped.Error(), Location: loc, Cause: wrapped}
}

// Sink collects diagnostics emitted during a compiler pass: the
// checker/emitter append to it as they walk, and the caller drains it once
// the pass completes.
type Sink struct {
	diags []*Diagnostic
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Report(d *Diagnostic) { s.diags = append(s.diags, d) }

func (s *Sink) Reportf(kind Kind, loc *ast.Location, format string, args ...interface{}) {
	s.Report(New(kind, fmt.Sprintf(format, args...), loc))
}

func (s *Sink) All() []*Diagnostic { return s.diags }

// HasErrors reports whether any Error or Critical diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Kind == Error || d.Kind == Critical {
			return true
		}
	}
	return false
}

func (s *Sink) CountKind(k Kind) int {
	n := 0
	for _, d := range s.diags {
		if d.Kind == k {
			n++
		}
	}
	return n
}
