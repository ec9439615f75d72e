package titocc

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Result is what one call to Compile produces: either a finished
// Program, or the diagnostics explaining why compilation stopped
// short of code generation (spec.md §7: no code is emitted if any
// error occurred).
type Result struct {
	Program     *Program
	Diagnostics []CompileError
}

func (r *Result) HasErrors() bool { return len(r.Diagnostics) > 0 }

// Compile runs the full pipeline - lex, parse, resolve declarations,
// type-check, generate - over in-memory source bytes. Grounded on the
// teacher's GrammarFromBytes (api.go): one small entry point per input
// shape (bytes, file, reader) that all funnel into one shared
// pipeline function.
func Compile(src []byte, cfg *Config) *Result {
	if cfg == nil {
		cfg = NewConfig()
	}
	configureLogging(cfg)

	sink := newDiagnosticSink(cfg.GetInt("errors.max"))
	Trace.Printf("[DEBUG] lexing %d bytes", len(src))

	result := &Result{}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(parseAbort); ok {
					return
				}
				panic(r)
			}
		}()

		lx := NewLexer(src, sink)
		toks := lx.Tokenize()
		if sink.HasErrors() {
			return
		}

		Trace.Printf("[DEBUG] parsing %d tokens", len(toks))
		p := NewParser(toks, sink)
		tu, err := p.Parse()
		if err != nil {
			return
		}

		Trace.Printf("[DEBUG] resolving declarations")
		s := newSema(sink)
		predeclareIntrinsics(s.global)
		typed := s.Run(tu)
		if sink.HasErrors() {
			return
		}

		Trace.Printf("[DEBUG] generating code for %d functions", len(typed.Funcs))
		result.Program = Generate(sink, cfg, typed)
	}()

	result.Diagnostics = sink.Diagnostics()
	if sink.HasErrors() {
		result.Program = nil
	}
	return result
}

// CompileFile reads path and compiles it.
func CompileFile(path string, cfg *Config) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("titocc: %w", err)
	}
	return Compile(src, cfg), nil
}

// CompileReader compiles everything r produces before EOF.
func CompileReader(r io.Reader, cfg *Config) (*Result, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("titocc: %w", err)
	}
	return Compile(buf.Bytes(), cfg), nil
}
