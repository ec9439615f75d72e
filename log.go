package titocc

import (
	"io"
	"log"
	"os"

	"github.com/hashicorp/logutils"
)

// Trace is the compiler's internal diagnostic logger: pass
// boundaries, symbol-merge decisions, register spills. It is separate
// from the user-facing diagnosticSink (errors.go) - this is for
// compiler developers, gated behind Config["log.level"] and silent
// (level ERROR) by default. Grounded on _examples/other_examples's
// qjcg-driving/main.go, the only pack repo that reaches for
// github.com/hashicorp/logutils for exactly this leveled-CLI-logger
// shape.
var Trace *log.Logger

func init() {
	Trace = newTraceLogger("ERROR", os.Stderr)
}

// newTraceLogger builds a *log.Logger filtered through logutils at
// the given minimum level. Valid levels, low to high verbosity:
// DEBUG, INFO, WARN, ERROR.
func newTraceLogger(level string, w io.Writer) *log.Logger {
	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(level),
		Writer:   w,
	}
	return log.New(filter, "titocc: ", log.LstdFlags)
}

// configureLogging re-initializes Trace from a Config's "log.level"
// setting, called once at the start of Compile so every pass emits
// through the same filtered logger for the duration of one
// compilation.
func configureLogging(cfg *Config) {
	level := "ERROR"
	if cfg != nil {
		func() {
			defer func() { recover() }()
			level = cfg.GetString("log.level")
		}()
	}
	Trace = newTraceLogger(level, os.Stderr)
}
