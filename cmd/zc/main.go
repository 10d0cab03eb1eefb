// zc - the Z compiler command line.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/z-lang/zc/build"
	"github.com/z-lang/zc/compiler"
	"github.com/z-lang/zc/manifest"
	"github.com/z-lang/zc/runtime"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: zc <command> [options] [file.z]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  compile   Build an executable from a .z file\n")
	fmt.Fprintf(os.Stderr, "  run       Build and run, passing the exit code through\n")
	fmt.Fprintf(os.Stderr, "  version   Print compiler and runtime versions\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  zc compile main.z           # writes ./main\n")
	fmt.Fprintf(os.Stderr, "  zc compile -o app main.z    # writes ./app\n")
	fmt.Fprintf(os.Stderr, "  zc compile -emit go main.z  # print generated source, build nothing\n")
	fmt.Fprintf(os.Stderr, "  zc run main.z               # build and execute\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "compile":
		os.Exit(cmdCompile(os.Args[2:]))
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "version":
		fmt.Printf("zc %s (runtime ABI %d)\n", runtime.Version, runtime.ABI)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "zc: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

// commonFlags holds the flags shared by compile and run.
type commonFlags struct {
	fs      *flag.FlagSet
	output  *string
	verbose *bool
	noCache *bool
	emit    *string
}

func newCommonFlags(name string) *commonFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &commonFlags{
		fs:      fs,
		output:  fs.String("o", "", "Output executable path"),
		verbose: fs.Bool("v", false, "Verbose build logging"),
		noCache: fs.Bool("no-cache", false, "Bypass the build cache"),
		emit:    fs.String("emit", "", "Emit an intermediate instead of building: ast, ir, go"),
	}
}

func (c *commonFlags) parse(args []string) (string, bool) {
	c.fs.Parse(args)
	if c.fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "zc: expected exactly one .z file\n")
		return "", false
	}
	verbosity := 0
	if *c.verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	return c.fs.Arg(0), true
}

// options merges manifest settings (when a z.toml is in scope) with flags.
// Flags win.
func (c *commonFlags) options(path string) build.Options {
	opts := build.Options{
		Output:  *c.output,
		NoCache: *c.noCache,
	}
	m, err := manifest.FindAndLoad(filepath.Dir(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "zc: warning: %v\n", err)
		return opts
	}
	if m == nil {
		return opts
	}
	if opts.Output == "" && m.Build.Output != "" {
		opts.Output = filepath.Join(m.Dir, m.Build.Output)
	}
	opts.Toolchain = m.Build.Toolchain
	opts.CachePath = m.CachePath()
	if m.Build.NoCache {
		opts.NoCache = true
	}
	opts.ComptimeDepth = m.Build.ComptimeDepth
	opts.Workers = m.Runtime.Workers
	return opts
}

func cmdCompile(args []string) int {
	flags := newCommonFlags("compile")
	path, ok := flags.parse(args)
	if !ok {
		return 2
	}

	if *flags.emit != "" {
		return emitIntermediate(path, *flags.emit)
	}

	_, diags, err := build.Compile(path, flags.options(path))
	return report(diags, err)
}

func cmdRun(args []string) int {
	flags := newCommonFlags("run")
	path, ok := flags.parse(args)
	if !ok {
		return 2
	}

	code, diags, err := build.Run(path, flags.options(path))
	if rc := report(diags, err); rc != 0 {
		return rc
	}
	return code
}

// emitIntermediate runs the front end only and prints one stage's output.
func emitIntermediate(path, stage string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zc: %v\n", err)
		return 1
	}
	name := filepath.Base(path)
	unit := compiler.CompileSource(name, string(source))
	if unit.Diags.HasErrors() {
		return report(unit.Diags, nil)
	}

	switch stage {
	case "ast":
		fmt.Print(compiler.Print(unit.File))
	case "ir":
		fmt.Print(compiler.Disassemble(unit.Program))
	case "go":
		fmt.Print(unit.GoSource)
	default:
		fmt.Fprintf(os.Stderr, "zc: unknown emit stage %q (want ast, ir, or go)\n", stage)
		return 2
	}
	return report(unit.Diags, nil)
}

// report prints diagnostics (warnings included) and maps them to an exit
// code: errors fail the build, warnings do not.
func report(diags *compiler.Diagnostics, err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "zc: %v\n", err)
		return 1
	}
	if diags != nil {
		for _, d := range diags.All() {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		if diags.HasErrors() {
			return 1
		}
	}
	return 0
}
