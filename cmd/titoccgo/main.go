package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	titocc "github.com/example/titocc"
)

// titoccgo is the compiler's command-line driver: read a source file,
// run it through titocc.Compile, and write out either assembly text
// or (with -emit-binary) the round-trippable binary dump. Shaped after
// the teacher's cmd/langlang/main.go flag-struct-plus-readArgs pattern,
// trimmed to the one pipeline this compiler actually has.
type args struct {
	inputPath  *string
	outputPath *string

	astOnly    *bool
	emitBinary *bool

	errorsMax *int
	logLevel  *string
}

func readArgs() *args {
	a := &args{
		inputPath:  flag.String("input", "", "Path to the C source file"),
		outputPath: flag.String("output", "/dev/stdout", "Path to the output file"),

		astOnly:    flag.Bool("ast-only", false, "Compile and report diagnostics, but write no output"),
		emitBinary: flag.Bool("emit-binary", false, "Emit the compact binary program dump instead of assembly text"),

		errorsMax: flag.Int("errors-max", 64, "Maximum number of diagnostics to collect before giving up"),
		logLevel:  flag.String("log-level", "ERROR", "Internal trace verbosity: DEBUG, INFO, WARN, ERROR"),
	}
	flag.Parse()
	return a
}

func main() {
	a := readArgs()
	if *a.inputPath == "" {
		log.Fatal("no input file given (-input)")
	}

	cfg := titocc.NewConfig()
	cfg.SetInt("errors.max", *a.errorsMax)
	cfg.SetString("log.level", *a.logLevel)
	cfg.SetBool("codegen.emit_binary", *a.emitBinary)

	result, err := titocc.CompileFile(*a.inputPath, cfg)
	if err != nil {
		log.Fatalf("can't read input: %s", err.Error())
	}

	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, d.Error())
	}
	if result.HasErrors() {
		os.Exit(1)
	}
	if *a.astOnly {
		return
	}

	var outputData []byte
	if *a.emitBinary {
		blob, err := result.Program.EncodeBinary()
		if err != nil {
			log.Fatalf("can't encode program: %s", err.Error())
		}
		outputData = blob
	} else {
		outputData = []byte(result.Program.WriteAssembly())
	}

	if err := os.WriteFile(*a.outputPath, outputData, 0644); err != nil {
		log.Fatalf("can't write output: %s", err.Error())
	}
}
