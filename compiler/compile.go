package compiler

// ---------------------------------------------------------------------------
// Pipeline: source -> tokens -> AST -> checked AST -> IR -> Go source
// ---------------------------------------------------------------------------

// Unit is the result of compiling one source file. Later stages are nil when
// an earlier stage reported errors.
type Unit struct {
	Name     string
	Source   string
	File     *File
	Checker  *Checker
	Program  *Program
	GoSource string
	Diags    *Diagnostics
}

// Config carries manifest-sourced knobs into the pipeline. The zero value
// keeps every built-in default.
type Config struct {
	// ComptimeDepth caps compile-time call depth when positive.
	ComptimeDepth int
	// Workers fixes the scheduler pool size of the compiled program when
	// positive; otherwise the runtime sizes the pool from the host.
	Workers int
}

// CompileSource runs the whole pipeline over one file with default limits.
func CompileSource(name, source string) *Unit {
	return CompileSourceWith(name, source, Config{})
}

// CompileSourceWith runs the whole pipeline over one file. Diagnostics are
// collected across stages; a stage with errors stops the stages after it but
// never panics.
func CompileSourceWith(name, source string, cfg Config) *Unit {
	u := &Unit{Name: name, Source: source, Diags: &Diagnostics{}}

	parser := NewParser(source, u.Diags)
	u.File = parser.ParseFile(name)
	if u.Diags.HasErrors() {
		return u
	}

	u.Checker = NewChecker(u.File, u.Diags)
	u.Checker.ComptimeDepth = cfg.ComptimeDepth
	u.Checker.Check()
	if u.Diags.HasErrors() {
		return u
	}

	u.Program = Lower(u.Checker, name, u.Diags)
	if u.Diags.HasErrors() {
		return u
	}
	u.Program.Workers = cfg.Workers

	src, err := EmitProgram(u.Program, "")
	if err != nil {
		u.Diags.Addf(CategoryCodegen, CodeUnsupportedConstruct, ZeroSpan(), "%v", err)
		return u
	}
	u.GoSource = src
	return u
}

// checkSource is shared by tests that stop after the checker.
func checkSource(name, source string) (*Checker, *Diagnostics) {
	diags := &Diagnostics{}
	parser := NewParser(source, diags)
	file := parser.ParseFile(name)
	c := NewChecker(file, diags)
	if !diags.HasErrors() {
		c.Check()
	}
	return c, diags
}
