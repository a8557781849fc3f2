package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/rune-sub002/codegen"
	"github.com/google/rune-sub002/parser"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
)

var (
	outputFile = flag.String("o", "", "output executable (default build/<name>)")
	asmOnly    = flag.Bool("S", false, "stop after writing the .ll file")
	debugMode  = flag.Bool("g", false, "emit DWARF debug metadata")
	unsafeMode = flag.Bool("unsafe", false, "drop overflow, truncation, bounds and shift checks")
	windows    = flag.Bool("windows", false, "target x86_64 windows")
	runAfter   = flag.Bool("r", false, "run the executable after compiling")
	dump       = flag.Bool("dump", false, "dump the bound program before generating code")
	verbose    = flag.Bool("v", false, "log each build step")
	runtimeLib = flag.String("runtime", "", "runtime library to link against")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: rune [flags] <listing>\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	log.SetFlags(0)
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	inputFile := flag.Arg(0)
	if *outputFile == "" {
		base := filepath.Base(inputFile)
		*outputFile = filepath.Join("build", strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if err := build(inputFile, *outputFile); err != nil {
		log.Fatalln(aurora.Red(err.Error()))
	}
	if *runAfter && !*asmOnly {
		step("Running %s", *outputFile)
		cmd := exec.Command(absPath(*outputFile))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			log.Fatalln(aurora.Red(fmt.Sprintf("Error running executable: %v", err)))
		}
	}
}

func step(format string, args ...interface{}) {
	if *verbose {
		log.Println(aurora.Blue(fmt.Sprintf(format, args...)))
	}
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

func build(inputFile, outputFile string) error {
	step("Reading %s", inputFile)
	prog, err := parser.ReadFile(inputFile)
	if err != nil {
		return err
	}
	if *dump {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, MaxDepth: 4}
		cfg.Fdump(os.Stderr, prog)
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return errors.Wrap(err, "creating build directory")
	}
	llFile := outputFile + ".ll"
	step("Generating %s", llFile)
	var out bytes.Buffer
	cg := codegen.NewCodeGen(prog, codegen.Config{
		Unsafe:     *unsafeMode,
		Debug:      *debugMode,
		Windows:    *windows,
		ModuleName: inputFile,
	})
	if err := cg.Generate(&out); err != nil {
		return err
	}
	if err := os.WriteFile(llFile, out.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "writing IR file")
	}
	if *asmOnly {
		log.Println(aurora.Green(fmt.Sprintf("LLVM assembly written: %s", llFile)))
		return nil
	}
	sFile := outputFile + ".s"
	if err := runTool("llc", llFile, "-o", sFile); err != nil {
		return err
	}
	args := []string{sFile, "-o", outputFile}
	if *windows {
		args = append(args, "--target=x86_64-w64-windows-gnu")
	}
	if *debugMode {
		args = append(args, "-g")
	}
	if *runtimeLib != "" {
		args = append(args, *runtimeLib)
	}
	if err := runTool("clang", args...); err != nil {
		return err
	}
	os.Remove(llFile)
	os.Remove(sFile)
	log.Println(aurora.Green(fmt.Sprintf("Executable created: %s", outputFile)))
	return nil
}

// runTool runs an external build tool, returning its output on failure.
func runTool(name string, args ...string) error {
	step("%s %s", name, strings.Join(args, " "))
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running %s\nStdout: %s\nStderr: %s", name, stdout.String(), stderr.String())
	}
	return nil
}
