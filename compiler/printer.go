package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Printer: canonical source rendering of the AST
// ---------------------------------------------------------------------------

// Print renders a file back to canonical Z source. Parsing the output again
// yields a structurally identical AST.
func Print(f *File) string {
	var pr printer
	pr.file(f)
	return pr.sb.String()
}

// PrintExpr renders a single expression to canonical source.
func PrintExpr(e Expr) string {
	var pr printer
	pr.expr(e)
	return pr.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (pr *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(&pr.sb, format, args...)
}

func (pr *printer) line() {
	pr.sb.WriteByte('\n')
	for i := 0; i < pr.indent; i++ {
		pr.sb.WriteString("    ")
	}
}

func (pr *printer) file(f *File) {
	for i, item := range f.Items {
		if i > 0 {
			pr.sb.WriteString("\n\n")
		}
		pr.item(item)
	}
	if len(f.Items) > 0 {
		pr.sb.WriteByte('\n')
	}
}

func (pr *printer) attrs(attrs []*Attr, sep string) {
	for _, a := range attrs {
		pr.attr(a)
		pr.sb.WriteString(sep)
	}
}

func (pr *printer) attr(a *Attr) {
	switch a.Name {
	case AttrExtern:
		pr.printf("@%s %s", a.Name, strconv.Quote(a.Args[0]))
	case AttrAlign:
		pr.printf("@%s(%s)", a.Name, a.Args[0])
	default:
		pr.printf("@%s", a.Name)
	}
}

func (pr *printer) item(item Item) {
	switch n := item.(type) {
	case *FuncDecl:
		pr.funcDecl(n)
	case *StructDecl:
		pr.attrs(n.Attrs, "\n")
		pr.printf("struct %s {", n.Name)
		pr.indent++
		for _, f := range n.Fields {
			pr.line()
			pr.printf("%s: ", f.Name)
			pr.typeExpr(f.Type)
			pr.sb.WriteByte(',')
		}
		pr.indent--
		pr.line()
		pr.sb.WriteByte('}')
	case *EnumDecl:
		pr.attrs(n.Attrs, "\n")
		pr.printf("enum %s", n.Name)
		pr.generics(n.Generics)
		pr.sb.WriteString(" {")
		pr.indent++
		for _, v := range n.Variants {
			pr.line()
			pr.sb.WriteString(v.Name)
			if len(v.Payload) > 0 {
				pr.sb.WriteByte('(')
				for i, t := range v.Payload {
					if i > 0 {
						pr.sb.WriteString(", ")
					}
					pr.typeExpr(t)
				}
				pr.sb.WriteByte(')')
			}
			pr.sb.WriteByte(',')
		}
		pr.indent--
		pr.line()
		pr.sb.WriteByte('}')
	case *ImplBlock:
		pr.printf("impl %s {", n.Target)
		pr.indent++
		for _, m := range n.Methods {
			pr.line()
			pr.funcDecl(m)
		}
		pr.indent--
		pr.line()
		pr.sb.WriteByte('}')
	case *ImportDecl:
		pr.printf("import %s", strconv.Quote(n.Path))
		if n.Alias != "" {
			pr.printf(" as %s", n.Alias)
		}
		pr.sb.WriteByte(';')
	case *ConstDecl:
		pr.printf("const %s", n.Name)
		if n.Type != nil {
			pr.sb.WriteString(": ")
			pr.typeExpr(n.Type)
		}
		pr.sb.WriteString(" = ")
		pr.expr(n.Value)
		pr.sb.WriteByte(';')
	}
}

func (pr *printer) funcDecl(n *FuncDecl) {
	// @export printed via the export keyword form.
	exported := false
	for _, a := range n.Attrs {
		if a.Name == AttrExport {
			exported = true
			continue
		}
		pr.attr(a)
		pr.line()
	}
	if exported {
		pr.sb.WriteString("export ")
	}
	pr.printf("fn %s", n.Name)
	pr.generics(n.Generics)
	pr.sb.WriteByte('(')
	for i, param := range n.Params {
		if i > 0 {
			pr.sb.WriteString(", ")
		}
		pr.printf("%s: ", param.Name)
		pr.typeExpr(param.Type)
	}
	pr.sb.WriteByte(')')
	if n.Ret != nil {
		pr.sb.WriteString(" -> ")
		pr.typeExpr(n.Ret)
	}
	if n.Body == nil {
		pr.sb.WriteByte(';')
		return
	}
	pr.sb.WriteByte(' ')
	pr.block(n.Body)
}

func (pr *printer) generics(names []string) {
	if len(names) == 0 {
		return
	}
	pr.sb.WriteByte('<')
	pr.sb.WriteString(strings.Join(names, ", "))
	pr.sb.WriteByte('>')
}

func (pr *printer) typeExpr(t *TypeExpr) {
	if t == nil {
		pr.sb.WriteString("<nil>")
		return
	}
	switch {
	case t.IsArray:
		pr.sb.WriteByte('[')
		pr.typeExpr(t.Elem)
		pr.sb.WriteByte(']')
	case t.IsTuple:
		pr.sb.WriteByte('(')
		for i, e := range t.Elems {
			if i > 0 {
				pr.sb.WriteString(", ")
			}
			pr.typeExpr(e)
		}
		pr.sb.WriteByte(')')
	case t.IsFunc:
		pr.sb.WriteString("fn(")
		for i, e := range t.Params {
			if i > 0 {
				pr.sb.WriteString(", ")
			}
			pr.typeExpr(e)
		}
		pr.sb.WriteByte(')')
		if t.Ret != nil {
			pr.sb.WriteString(" -> ")
			pr.typeExpr(t.Ret)
		}
	default:
		pr.sb.WriteString(t.Name)
		if len(t.Params) > 0 {
			pr.sb.WriteByte('<')
			for i, e := range t.Params {
				if i > 0 {
					pr.sb.WriteString(", ")
				}
				pr.typeExpr(e)
			}
			pr.sb.WriteByte('>')
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (pr *printer) block(b *BlockExpr) {
	pr.sb.WriteByte('{')
	pr.indent++
	for _, s := range b.Stmts {
		pr.line()
		pr.stmt(s)
	}
	if b.Tail != nil {
		pr.line()
		pr.expr(b.Tail)
	}
	pr.indent--
	pr.line()
	pr.sb.WriteByte('}')
}

func (pr *printer) stmt(s Stmt) {
	switch n := s.(type) {
	case *LetStmt:
		pr.sb.WriteString("let ")
		pr.printf("%s", n.Name)
		if n.Type != nil {
			pr.sb.WriteString(": ")
			pr.typeExpr(n.Type)
		}
		pr.sb.WriteString(" = ")
		pr.attrs(n.Attrs, " ")
		pr.expr(n.Value)
		pr.sb.WriteByte(';')
	case *AssignStmt:
		pr.expr(n.Target)
		pr.sb.WriteString(" = ")
		pr.expr(n.Value)
		pr.sb.WriteByte(';')
	case *ExprStmt:
		pr.expr(n.Expr)
		switch n.Expr.(type) {
		case *If, *Match, *BlockExpr:
		default:
			pr.sb.WriteByte(';')
		}
	case *ForStmt:
		pr.attrs(n.Attrs, " ")
		pr.printf("for %s in ", n.Var)
		pr.expr(n.Iter)
		pr.sb.WriteByte(' ')
		pr.block(n.Body)
	case *WhileStmt:
		pr.sb.WriteString("while ")
		pr.expr(n.Cond)
		pr.sb.WriteByte(' ')
		pr.block(n.Body)
	case *LoopStmt:
		pr.sb.WriteString("loop ")
		pr.block(n.Body)
	case *ReturnStmt:
		pr.sb.WriteString("return")
		if n.Value != nil {
			pr.sb.WriteByte(' ')
			pr.expr(n.Value)
		}
		pr.sb.WriteByte(';')
	case *BreakStmt:
		pr.sb.WriteString("break;")
	case *ContinueStmt:
		pr.sb.WriteString("continue;")
	case *FreeStmt:
		pr.printf("@free %s;", n.Name)
	case *BadStmt:
		pr.sb.WriteString("/* error */;")
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (pr *printer) expr(e Expr) {
	switch n := e.(type) {
	case *IntLit:
		pr.printf("%d", n.Value)
	case *FloatLit:
		s := strconv.FormatFloat(n.Value, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		pr.sb.WriteString(s)
	case *BoolLit:
		pr.printf("%t", n.Value)
	case *StringLit:
		pr.stringLit(n)
	case *CharLit:
		pr.sb.WriteString(quoteChar(n.Value))
	case *NullLit:
		pr.sb.WriteString("null")
	case *ArrayLit:
		pr.sb.WriteByte('[')
		for i, el := range n.Elements {
			if i > 0 {
				pr.sb.WriteString(", ")
			}
			pr.expr(el)
		}
		pr.sb.WriteByte(']')
	case *Ident:
		pr.sb.WriteString(n.Name)
	case *Unary:
		pr.sb.WriteString(tokenNames[n.Op])
		pr.exprParen(n.Operand, precUnary)
	case *Binary:
		prec := precedences[n.Op]
		pr.exprParen(n.Left, prec-1)
		pr.printf(" %s ", tokenNames[n.Op])
		pr.exprParen(n.Right, prec)
	case *Call:
		if n.Comptime {
			pr.sb.WriteString("@comptime ")
		}
		pr.exprParen(n.Callee, precUnary)
		pr.sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				pr.sb.WriteString(", ")
			}
			pr.expr(a)
		}
		pr.sb.WriteByte(')')
	case *Index:
		pr.exprParen(n.Target, precUnary)
		pr.sb.WriteByte('[')
		pr.expr(n.Idx)
		pr.sb.WriteByte(']')
	case *Field:
		pr.exprParen(n.Target, precUnary)
		pr.printf(".%s", n.Name)
	case *StructLit:
		pr.printf("%s { ", n.Name)
		for i, f := range n.Fields {
			if i > 0 {
				pr.sb.WriteString(", ")
			}
			pr.printf("%s: ", f.Name)
			pr.expr(f.Value)
		}
		pr.sb.WriteString(" }")
	case *Closure:
		if len(n.Params) == 0 {
			pr.sb.WriteString("||")
		} else {
			pr.sb.WriteByte('|')
			for i, param := range n.Params {
				if i > 0 {
					pr.sb.WriteString(", ")
				}
				pr.sb.WriteString(param.Name)
				if param.Type != nil {
					pr.sb.WriteString(": ")
					pr.typeExpr(param.Type)
				}
			}
			pr.sb.WriteByte('|')
		}
		pr.sb.WriteByte(' ')
		if b, ok := n.Body.(*BlockExpr); ok {
			pr.block(b)
		} else {
			pr.expr(n.Body)
		}
	case *If:
		pr.sb.WriteString("if ")
		pr.expr(n.Cond)
		pr.sb.WriteByte(' ')
		pr.block(n.Then)
		if n.Else != nil {
			pr.sb.WriteString(" else ")
			if b, ok := n.Else.(*BlockExpr); ok {
				pr.block(b)
			} else {
				pr.expr(n.Else)
			}
		}
	case *Match:
		pr.sb.WriteString("match ")
		pr.expr(n.Subject)
		pr.sb.WriteString(" {")
		pr.indent++
		for _, arm := range n.Arms {
			pr.line()
			pr.pattern(&arm.Pattern)
			pr.sb.WriteString(" => ")
			pr.expr(arm.Body)
			pr.sb.WriteByte(',')
		}
		pr.indent--
		pr.line()
		pr.sb.WriteByte('}')
	case *BlockExpr:
		pr.block(n)
	case *BadExpr:
		pr.sb.WriteString("/* error */")
	}
}

// exprParen parenthesizes sub-expressions whose precedence is at or below
// the surrounding context.
func (pr *printer) exprParen(e Expr, minPrec int) {
	need := false
	switch n := e.(type) {
	case *Binary:
		need = precedences[n.Op] <= minPrec
	case *Unary:
		need = precUnary <= minPrec
	case *Closure, *If, *Match:
		need = minPrec >= precUnary
	}
	if need {
		pr.sb.WriteByte('(')
		pr.expr(e)
		pr.sb.WriteByte(')')
	} else {
		pr.expr(e)
	}
}

func (pr *printer) pattern(pat *Pattern) {
	switch {
	case pat.Wildcard:
		pr.sb.WriteByte('_')
	case pat.Lit != nil:
		pr.expr(pat.Lit)
	case pat.Variant && len(pat.Binds) > 0:
		pr.printf("%s(%s)", pat.Name, strings.Join(pat.Binds, ", "))
	default:
		pr.sb.WriteString(pat.Name)
	}
}

func (pr *printer) stringLit(n *StringLit) {
	pr.sb.WriteByte('"')
	if n.Parts == nil {
		pr.sb.WriteString(escapeStringBody(n.Value))
	} else {
		for _, part := range n.Parts {
			if part.Expr != nil {
				pr.sb.WriteByte('{')
				pr.expr(part.Expr)
				pr.sb.WriteByte('}')
			} else {
				pr.sb.WriteString(escapeStringBody(part.Text))
			}
		}
	}
	pr.sb.WriteByte('"')
}

// escapeStringBody escapes the interior of a string literal, including the
// interpolation braces.
func escapeStringBody(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '{':
			sb.WriteString(`\{`)
		case '}':
			sb.WriteString(`\}`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func quoteChar(r rune) string {
	switch r {
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\r':
		return `'\r'`
	case '\\':
		return `'\\'`
	case '\'':
		return `'\''`
	case 0:
		return `'\0'`
	}
	return "'" + string(r) + "'"
}
