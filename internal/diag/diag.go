package diag

import (
	"fmt"
	"sync"

	"github.com/hashicorp/hcl/v2"
)

// Severity orders diagnostics by importance.
type Severity int

const (
	Verbose Severity = iota
	Warning
	Error
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case Verbose:
		return "verbose"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is a single message reported during a bind.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	// Source is the location of the record the message refers to, if known.
	Source string
}

// Error renders the diagnostic in "source: severity CODE: message" form.
func (d Diagnostic) Error() string {
	if d.Source == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", d.Source, d.Severity, d.Code, d.Message)
}

// Diagnostics is an ordered list of diagnostics returned by a stage.
type Diagnostics []Diagnostic

// Errorf appends an error diagnostic.
func (ds *Diagnostics) Errorf(code Code, source, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: Error, Code: code, Source: source, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning diagnostic.
func (ds *Diagnostics) Warnf(code Code, source, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: Warning, Code: code, Source: source, Message: fmt.Sprintf(format, args...)})
}

// Verbosef appends a verbose diagnostic.
func (ds *Diagnostics) Verbosef(format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: Verbose, Code: CodeVerbose, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics with the given severity.
func (ds Diagnostics) Count(sev Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// FromHCL converts HCL parser diagnostics into binder diagnostics.
func FromHCL(hd hcl.Diagnostics) Diagnostics {
	out := make(Diagnostics, 0, len(hd))
	for _, d := range hd {
		sev := Warning
		if d.Severity == hcl.DiagError {
			sev = Error
		}
		src := ""
		if d.Subject != nil {
			src = d.Subject.String()
		}
		msg := d.Summary
		if d.Detail != "" {
			msg = msg + "; " + d.Detail
		}
		out = append(out, Diagnostic{Severity: sev, Code: CodeInvalidInput, Source: src, Message: msg})
	}
	return out
}

// Sink is the append-only diagnostics log shared by a whole bind. It is safe
// for concurrent use.
type Sink struct {
	mu        sync.Mutex
	items     Diagnostics
	hasErrors bool
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Append records diagnostics in order.
func (s *Sink) Append(ds ...Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ds {
		if d.Severity == Error {
			s.hasErrors = true
		}
		s.items = append(s.items, d)
	}
}

// HasErrors reports whether an error has ever been appended.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasErrors
}

// All returns a copy of every diagnostic recorded so far.
func (s *Sink) All() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(Diagnostics(nil), s.items...)
}
