package titocc

import "fmt"

// DiagnosticKind categorizes a CompileError per the error-kind table
// in the error handling design: lexer/parser errors abort the
// translation unit immediately; the rest are collected so more than
// one can be reported per run.
type DiagnosticKind int

const (
	LexError DiagnosticKind = iota
	ParseError
	RedeclarationConflict
	UndeclaredIdentifier
	TypeError
	LinkageConflict
	CodegenError
)

func (k DiagnosticKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case RedeclarationConflict:
		return "redeclaration conflict"
	case UndeclaredIdentifier:
		return "undeclared identifier"
	case TypeError:
		return "type error"
	case LinkageConflict:
		return "linkage conflict"
	case CodegenError:
		return "codegen error"
	default:
		return "error"
	}
}

// CompileError is a single, user-visible, line/column anchored
// diagnostic.
type CompileError struct {
	Kind    DiagnosticKind
	Message string
	Span    Span
}

func (e CompileError) Error() string {
	return fmt.Sprintf("%s: %s @ %s", e.Kind, e.Message, e.Span)
}

// parseAbort is the sentinel panic value the parser uses to unwind to
// the top of Parse() once the first syntax error has been recorded.
// Unlike the teacher's PEG backtracking (which recovers to retry an
// alternative), this grammar never backtracks across a real syntax
// error, so a single unwind-and-stop is the whole story.
type parseAbort struct{ err CompileError }

// diagnosticSink collects declaration and type errors (up to a
// configurable cap) so a single run can report more than one, per the
// error handling design's propagation policy. Lex and parse errors
// bypass accumulation: they go straight to Fatal.
type diagnosticSink struct {
	diags   []CompileError
	max     int
	dropped bool
	fatal   *CompileError
}

func newDiagnosticSink(max int) *diagnosticSink {
	if max <= 0 {
		max = 64
	}
	return &diagnosticSink{max: max}
}

// Report records a recoverable diagnostic (redeclaration, undeclared
// identifier, type error, linkage conflict). Once the cap is reached,
// further diagnostics are dropped and a single synthetic "too many
// errors" entry is appended instead of echoing the flood.
func (s *diagnosticSink) Report(kind DiagnosticKind, span Span, format string, args ...any) {
	if len(s.diags) >= s.max {
		if !s.dropped {
			s.dropped = true
			s.diags = append(s.diags, CompileError{
				Kind:    kind,
				Message: "too many errors, stopping",
				Span:    span,
			})
		}
		return
	}
	s.diags = append(s.diags, CompileError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// Fatal records a lexer or parser error. The caller is expected to
// stop processing the translation unit immediately afterward (the
// parser does so by panicking with parseAbort).
func (s *diagnosticSink) Fatal(kind DiagnosticKind, span Span, format string, args ...any) CompileError {
	e := CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
	s.fatal = &e
	s.diags = append(s.diags, e)
	return e
}

func (s *diagnosticSink) HasErrors() bool {
	return len(s.diags) > 0
}

func (s *diagnosticSink) Diagnostics() []CompileError {
	out := make([]CompileError, len(s.diags))
	copy(out, s.diags)
	return out
}
