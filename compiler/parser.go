package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for Z with Pratt expression parsing
// ---------------------------------------------------------------------------

// Operator precedence, lowest to highest. Assignment is handled at the
// statement level; everything below follows the expression ladder.
const (
	precLowest = iota
	precOr     // ||
	precAnd    // &&
	precEq     // == !=
	precCmp    // < <= > >=
	precAdd    // + -
	precMul    // * / %
	precUnary  // ! -
	precCall   // () [] .
)

var precedences = map[TokenType]int{
	TokenOrOr:      precOr,
	TokenAndAnd:    precAnd,
	TokenEq:        precEq,
	TokenNotEq:     precEq,
	TokenLess:      precCmp,
	TokenLessEq:    precCmp,
	TokenGreater:   precCmp,
	TokenGreaterEq: precCmp,
	TokenPlus:      precAdd,
	TokenMinus:     precAdd,
	TokenStar:      precMul,
	TokenSlash:     precMul,
	TokenPercent:   precMul,
}

// Parser parses Z source code into an AST. On a malformed construct it
// records a diagnostic, inserts a placeholder node, and resumes at the next
// statement boundary so one pass reports multiple independent errors.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	diags     *Diagnostics

	// subTokens backs parsing over a pre-lexed token sequence, used for
	// string interpolation holes.
	subTokens []Token

	// noStructLit suppresses struct-literal parsing in condition position
	// so `if x { }` is unambiguous.
	noStructLit bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string, diags *Diagnostics) *Parser {
	p := &Parser{
		lexer: NewLexer(input, diags),
		diags: diags,
	}
	// Fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// newSubParser creates a parser over an already-lexed token sequence, used
// for string interpolation holes.
func newSubParser(tokens []Token, diags *Diagnostics) *Parser {
	p := &Parser{diags: diags, subTokens: tokens}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.lexer != nil {
		p.peekToken = p.lexer.NextToken()
		return
	}
	if len(p.subTokens) > 0 {
		p.peekToken = p.subTokens[0]
		p.subTokens = p.subTokens[1:]
	} else {
		p.peekToken = Token{Type: TokenEOF, Pos: p.curToken.End, End: p.curToken.End}
	}
}

func (p *Parser) curTokenIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t TokenType) bool { return p.peekToken.Type == t }

// expect consumes the current token if it matches, otherwise records an
// Expected diagnostic.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorExpected(t)
	return false
}

func (p *Parser) errorExpected(t TokenType) {
	if p.curTokenIs(TokenEOF) {
		p.diags.Addf(CategoryParse, CodeUnexpectedEOF, p.curToken.Span(),
			"unexpected end of input, expected %s", t)
		return
	}
	p.diags.Addf(CategoryParse, CodeExpected, p.curToken.Span(),
		"expected %s, got %s", t, p.curToken.Type)
}

func (p *Parser) errorf(span Span, format string, args ...interface{}) {
	code := CodeExpected
	if span.Start.Offset >= span.End.Offset && p.curTokenIs(TokenEOF) {
		code = CodeUnexpectedEOF
	}
	p.diags.Addf(CategoryParse, code, span, format, args...)
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

// syncStatement skips tokens until a statement boundary: just past the next
// semicolon, or before a token that can begin a statement or close a block.
func (p *Parser) syncStatement() {
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemi) {
			p.nextToken()
			return
		}
		switch p.curToken.Type {
		case TokenRBrace, TokenLet, TokenConst, TokenFn, TokenReturn, TokenIf,
			TokenWhile, TokenFor, TokenLoop, TokenStruct, TokenEnum, TokenImpl,
			TokenImport, TokenBreak, TokenContinue, TokenMatch:
			return
		}
		p.nextToken()
	}
}

// syncItem skips tokens until a token that can begin a top-level item.
func (p *Parser) syncItem() {
	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenFn, TokenStruct, TokenEnum, TokenImpl, TokenImport, TokenConst, TokenAt, TokenExport:
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// File and item parsing
// ---------------------------------------------------------------------------

// ParseFile parses a complete compilation unit.
func (p *Parser) ParseFile(name string) *File {
	start := p.curToken.Pos
	f := &File{Name: name}
	for !p.curTokenIs(TokenEOF) {
		item := p.parseItem()
		if item != nil {
			f.Items = append(f.Items, item)
		} else {
			p.syncItem()
		}
	}
	f.SpanVal = MakeSpan(start, p.curToken.End)
	return f
}

// parseItem parses a top-level item, with optional attribute prefixes.
func (p *Parser) parseItem() Item {
	attrs := p.parseAttrs()

	exported := false
	if p.curTokenIs(TokenExport) {
		exported = true
		p.nextToken()
	}

	switch p.curToken.Type {
	case TokenFn:
		fn := p.parseFuncDecl(attrs)
		if fn != nil && exported {
			fn.Attrs = append(fn.Attrs, &Attr{SpanVal: fn.SpanVal, Name: AttrExport})
		}
		return itemOrNil(fn)
	case TokenStruct:
		return itemOrNil(p.parseStructDecl(attrs))
	case TokenEnum:
		return itemOrNil(p.parseEnumDecl(attrs))
	case TokenImpl:
		return itemOrNil(p.parseImplBlock())
	case TokenImport:
		return itemOrNil(p.parseImportDecl())
	case TokenConst:
		return itemOrNil(p.parseConstDecl(attrs))
	default:
		p.errorf(p.curToken.Span(), "expected item, got %s", p.curToken.Type)
		return nil
	}
}

// itemOrNil avoids returning a non-nil interface holding a nil pointer.
func itemOrNil[T Item](v T) Item {
	var zero T
	if any(v) == any(zero) {
		return nil
	}
	return v
}

// parseAttrs parses zero or more @attribute prefixes. One token of lookahead
// beyond the marker decides the form: @name, @name(args), or @name "str".
func (p *Parser) parseAttrs() []*Attr {
	var attrs []*Attr
	for p.curTokenIs(TokenAt) {
		a := p.parseAttr()
		if a == nil {
			break
		}
		if validateAttr(a, p.diags) {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// parseAttr parses a single @attribute.
func (p *Parser) parseAttr() *Attr {
	start := p.curToken.Pos
	p.nextToken() // consume @
	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	a := &Attr{Name: p.curToken.Literal}
	p.nextToken()

	switch {
	case p.curTokenIs(TokenLParen):
		p.nextToken()
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			a.Args = append(a.Args, p.curToken.Literal)
			p.nextToken()
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.expect(TokenRParen)
	case p.curTokenIs(TokenString):
		a.Args = append(a.Args, p.curToken.Literal)
		p.nextToken()
	}
	a.SpanVal = MakeSpan(start, p.curToken.Pos)
	return a
}

// parseFuncDecl parses fn name<T, U>(params) -> ret { body } or an
// extern declaration terminated by a semicolon.
func (p *Parser) parseFuncDecl(attrs []*Attr) *FuncDecl {
	start := p.curToken.Pos
	p.nextToken() // consume fn

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	fn := &FuncDecl{Name: p.curToken.Literal, Attrs: attrs}
	p.nextToken()

	// Generic parameter list
	if p.curTokenIs(TokenLess) {
		p.nextToken()
		for !p.curTokenIs(TokenGreater) && !p.curTokenIs(TokenEOF) {
			if !p.curTokenIs(TokenIdent) {
				p.errorExpected(TokenIdent)
				break
			}
			fn.Generics = append(fn.Generics, p.curToken.Literal)
			p.nextToken()
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.expect(TokenGreater)
	}

	if !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		param := p.parseParam(true)
		if param == nil {
			p.syncStatement()
			break
		}
		fn.Params = append(fn.Params, *param)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRParen)

	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		fn.Ret = p.parseTypeExpr()
	}

	// Extern declarations have no body.
	if p.curTokenIs(TokenSemi) {
		p.nextToken()
		fn.SpanVal = MakeSpan(start, p.curToken.Pos)
		return fn
	}

	fn.Body = p.parseBlock()
	fn.SpanVal = MakeSpan(start, p.curToken.Pos)
	return fn
}

// parseParam parses name: type. The type is required when typed is true.
func (p *Parser) parseParam(typed bool) *Param {
	start := p.curToken.Pos
	name := ""
	switch p.curToken.Type {
	case TokenIdent:
		name = p.curToken.Literal
	case TokenUnder:
		name = "_"
	default:
		p.errorExpected(TokenIdent)
		return nil
	}
	p.nextToken()

	param := &Param{Name: name}
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		param.Type = p.parseTypeExpr()
	} else if typed {
		p.errorExpected(TokenColon)
		return nil
	}
	param.SpanVal = MakeSpan(start, p.curToken.Pos)
	return param
}

// parseStructDecl parses struct Name { field: type, ... }.
func (p *Parser) parseStructDecl(attrs []*Attr) *StructDecl {
	start := p.curToken.Pos
	p.nextToken() // consume struct

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	s := &StructDecl{Name: p.curToken.Literal, Attrs: attrs}
	p.nextToken()

	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		fieldStart := p.curToken.Pos
		if !p.curTokenIs(TokenIdent) {
			p.errorExpected(TokenIdent)
			p.syncStatement()
			break
		}
		name := p.curToken.Literal
		p.nextToken()
		if !p.expect(TokenColon) {
			break
		}
		typ := p.parseTypeExpr()
		s.Fields = append(s.Fields, StructField{
			SpanVal: MakeSpan(fieldStart, p.curToken.Pos),
			Name:    name,
			Type:    typ,
		})
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRBrace)
	s.SpanVal = MakeSpan(start, p.curToken.Pos)
	return s
}

// parseEnumDecl parses enum Name<T> { Variant, Variant(T, int), ... }.
func (p *Parser) parseEnumDecl(attrs []*Attr) *EnumDecl {
	start := p.curToken.Pos
	p.nextToken() // consume enum

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	e := &EnumDecl{Name: p.curToken.Literal, Attrs: attrs}
	p.nextToken()

	if p.curTokenIs(TokenLess) {
		p.nextToken()
		for !p.curTokenIs(TokenGreater) && !p.curTokenIs(TokenEOF) {
			if !p.curTokenIs(TokenIdent) {
				p.errorExpected(TokenIdent)
				break
			}
			e.Generics = append(e.Generics, p.curToken.Literal)
			p.nextToken()
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.expect(TokenGreater)
	}

	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		vStart := p.curToken.Pos
		if !p.curTokenIs(TokenIdent) {
			p.errorExpected(TokenIdent)
			break
		}
		v := EnumVariant{Name: p.curToken.Literal}
		p.nextToken()
		if p.curTokenIs(TokenLParen) {
			p.nextToken()
			for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
				v.Payload = append(v.Payload, p.parseTypeExpr())
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				} else {
					break
				}
			}
			p.expect(TokenRParen)
		}
		v.SpanVal = MakeSpan(vStart, p.curToken.Pos)
		e.Variants = append(e.Variants, v)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRBrace)
	e.SpanVal = MakeSpan(start, p.curToken.Pos)
	return e
}

// parseImplBlock parses impl Name { fn ... }.
func (p *Parser) parseImplBlock() *ImplBlock {
	start := p.curToken.Pos
	p.nextToken() // consume impl

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	ib := &ImplBlock{Target: p.curToken.Literal}
	p.nextToken()

	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		attrs := p.parseAttrs()
		if !p.curTokenIs(TokenFn) {
			p.errorExpected(TokenFn)
			p.syncStatement()
			continue
		}
		fn := p.parseFuncDecl(attrs)
		if fn != nil {
			ib.Methods = append(ib.Methods, fn)
		}
	}
	p.expect(TokenRBrace)
	ib.SpanVal = MakeSpan(start, p.curToken.Pos)
	return ib
}

// parseImportDecl parses import "path" [as name];
func (p *Parser) parseImportDecl() *ImportDecl {
	start := p.curToken.Pos
	p.nextToken() // consume import

	if !p.curTokenIs(TokenString) {
		p.errorExpected(TokenString)
		return nil
	}
	imp := &ImportDecl{Path: p.curToken.Literal}
	p.nextToken()

	if p.curTokenIs(TokenAs) {
		p.nextToken()
		if !p.curTokenIs(TokenIdent) {
			p.errorExpected(TokenIdent)
			return nil
		}
		imp.Alias = p.curToken.Literal
		p.nextToken()
	}
	p.expect(TokenSemi)
	imp.SpanVal = MakeSpan(start, p.curToken.Pos)
	return imp
}

// parseConstDecl parses const NAME [: type] = expr;
func (p *Parser) parseConstDecl(attrs []*Attr) *ConstDecl {
	start := p.curToken.Pos
	p.nextToken() // consume const

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return nil
	}
	c := &ConstDecl{Name: p.curToken.Literal, Attrs: attrs}
	p.nextToken()

	if p.curTokenIs(TokenColon) {
		p.nextToken()
		c.Type = p.parseTypeExpr()
	}
	if !p.expect(TokenAssign) {
		return nil
	}
	c.Value = p.parseExpression(precLowest)
	p.expect(TokenSemi)
	c.SpanVal = MakeSpan(start, p.curToken.Pos)
	return c
}

// ---------------------------------------------------------------------------
// Type expression parsing
// ---------------------------------------------------------------------------

// parseTypeExpr parses a type annotation.
func (p *Parser) parseTypeExpr() *TypeExpr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenLBracket:
		// Array: [T]
		p.nextToken()
		elem := p.parseTypeExpr()
		p.expect(TokenRBracket)
		return &TypeExpr{SpanVal: MakeSpan(start, p.curToken.Pos), Elem: elem, IsArray: true}

	case TokenLParen:
		// Tuple: (A, B)
		p.nextToken()
		t := &TypeExpr{IsTuple: true}
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			t.Elems = append(t.Elems, p.parseTypeExpr())
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			} else {
				break
			}
		}
		p.expect(TokenRParen)
		t.SpanVal = MakeSpan(start, p.curToken.Pos)
		return t

	case TokenFn:
		// Function: fn(A, B) -> R
		p.nextToken()
		t := &TypeExpr{IsFunc: true}
		p.expect(TokenLParen)
		for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
			t.Params = append(t.Params, p.parseTypeExpr())
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			} else {
				break
			}
		}
		p.expect(TokenRParen)
		if p.curTokenIs(TokenArrow) {
			p.nextToken()
			t.Ret = p.parseTypeExpr()
		}
		t.SpanVal = MakeSpan(start, p.curToken.Pos)
		return t

	case TokenIdent:
		t := &TypeExpr{Name: p.curToken.Literal}
		p.nextToken()
		// Generic arguments: Name<A, B>
		if p.curTokenIs(TokenLess) {
			p.nextToken()
			for !p.curTokenIs(TokenGreater) && !p.curTokenIs(TokenEOF) {
				t.Params = append(t.Params, p.parseTypeExpr())
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				} else {
					break
				}
			}
			p.expect(TokenGreater)
		}
		t.SpanVal = MakeSpan(start, p.curToken.Pos)
		return t

	default:
		p.errorf(p.curToken.Span(), "expected type, got %s", p.curToken.Type)
		p.nextToken()
		return &TypeExpr{SpanVal: MakeSpan(start, p.curToken.Pos), Name: "<error>"}
	}
}

// ---------------------------------------------------------------------------
// Statement parsing
// ---------------------------------------------------------------------------

// parseBlock parses { stmts } with a possible trailing value expression.
func (p *Parser) parseBlock() *BlockExpr {
	start := p.curToken.Pos
	b := &BlockExpr{}
	if !p.expect(TokenLBrace) {
		b.SpanVal = MakeSpan(start, p.curToken.Pos)
		return b
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		stmt, tail := p.parseStatement()
		if tail != nil {
			b.Tail = tail
			break
		}
		if stmt != nil {
			b.Stmts = append(b.Stmts, stmt)
		} else {
			p.syncStatement()
		}
	}
	p.expect(TokenRBrace)
	b.SpanVal = MakeSpan(start, p.curToken.Pos)
	return b
}

// parseStatement parses one statement. When the block ends with an
// expression not followed by a semicolon, it is returned as the block's
// tail value instead.
func (p *Parser) parseStatement() (Stmt, Expr) {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLetStmt(nil), nil

	case TokenReturn:
		start := p.curToken.Pos
		p.nextToken()
		var val Expr
		if !p.curTokenIs(TokenSemi) && !p.curTokenIs(TokenRBrace) {
			val = p.parseExpression(precLowest)
		}
		p.expect(TokenSemi)
		return &ReturnStmt{SpanVal: MakeSpan(start, p.curToken.Pos), Value: val}, nil

	case TokenBreak:
		start := p.curToken.Pos
		p.nextToken()
		p.expect(TokenSemi)
		return &BreakStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}, nil

	case TokenContinue:
		start := p.curToken.Pos
		p.nextToken()
		p.expect(TokenSemi)
		return &ContinueStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}, nil

	case TokenWhile:
		return p.parseWhileStmt(), nil

	case TokenFor:
		return p.parseForStmt(nil), nil

	case TokenLoop:
		start := p.curToken.Pos
		p.nextToken()
		body := p.parseBlock()
		return &LoopStmt{SpanVal: MakeSpan(start, p.curToken.Pos), Body: body}, nil

	case TokenAt:
		return p.parseAttrStmt()

	default:
		return p.parseSimpleStmt()
	}
}

// parseAttrStmt handles statements introduced by an attribute marker:
// @free x; @simd for ...; @parallel for ...; and attribute-prefixed lets.
func (p *Parser) parseAttrStmt() (Stmt, Expr) {
	start := p.curToken.Pos

	// @free is a statement form, not a regular attribute.
	if p.peekTokenIs(TokenIdent) && p.peekToken.Literal == AttrFree {
		p.nextToken() // consume @
		p.nextToken() // consume free
		if !p.curTokenIs(TokenIdent) {
			p.errorExpected(TokenIdent)
			return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}, nil
		}
		name := p.curToken.Literal
		p.nextToken()
		p.expect(TokenSemi)
		return &FreeStmt{SpanVal: MakeSpan(start, p.curToken.Pos), Name: name}, nil
	}

	attrs := p.parseAttrs()
	switch p.curToken.Type {
	case TokenFor:
		return p.parseForStmt(attrs), nil
	case TokenLet:
		return p.parseLetStmt(attrs), nil
	default:
		// Attribute on an expression: @comptime handled inside the
		// expression grammar; anything else here is misplaced.
		for _, a := range attrs {
			if a.Name != AttrComptime {
				p.errorf(a.SpanVal, "attribute @%s is not valid in statement position", a.Name)
			}
		}
		return p.parseSimpleStmt()
	}
}

// parseLetStmt parses let [attrs] name [: type] = [attrs] expr;
func (p *Parser) parseLetStmt(attrs []*Attr) Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume let

	attrs = append(attrs, p.parseAttrs()...)

	if !p.curTokenIs(TokenIdent) {
		p.errorExpected(TokenIdent)
		return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
	let := &LetStmt{Name: p.curToken.Literal, Attrs: attrs}
	p.nextToken()

	if p.curTokenIs(TokenColon) {
		p.nextToken()
		let.Type = p.parseTypeExpr()
	}

	if !p.expect(TokenAssign) {
		return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}

	// Value-prefix attributes: let counter = @atomic 0;
	let.Attrs = append(let.Attrs, p.parseValueAttrs()...)

	let.Value = p.parseExpression(precLowest)
	p.expect(TokenSemi)
	let.SpanVal = MakeSpan(start, p.curToken.Pos)
	return let
}

// parseValueAttrs parses @atomic / @pinned prefixes before an initializer.
func (p *Parser) parseValueAttrs() []*Attr {
	var attrs []*Attr
	for p.curTokenIs(TokenAt) && p.peekTokenIs(TokenIdent) &&
		(p.peekToken.Literal == AttrAtomic || p.peekToken.Literal == AttrPinned) {
		a := p.parseAttr()
		if a != nil && validateAttr(a, p.diags) {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// parseWhileStmt parses while cond { body }.
func (p *Parser) parseWhileStmt() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume while
	cond := p.parseCondition()
	body := p.parseBlock()
	return &WhileStmt{SpanVal: MakeSpan(start, p.curToken.Pos), Cond: cond, Body: body}
}

// parseForStmt parses for x in iter { body }.
func (p *Parser) parseForStmt(attrs []*Attr) Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume for

	name := ""
	switch p.curToken.Type {
	case TokenIdent:
		name = p.curToken.Literal
	case TokenUnder:
		name = "_"
	default:
		p.errorExpected(TokenIdent)
		return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
	p.nextToken()

	if !p.expect(TokenIn) {
		return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
	iter := p.parseCondition()
	body := p.parseBlock()
	return &ForStmt{
		SpanVal: MakeSpan(start, p.curToken.Pos),
		Var:     name,
		Iter:    iter,
		Body:    body,
		Attrs:   attrs,
	}
}

// parseCondition parses an expression with struct literals suppressed.
func (p *Parser) parseCondition() Expr {
	old := p.noStructLit
	p.noStructLit = true
	e := p.parseExpression(precLowest)
	p.noStructLit = old
	return e
}

// parseSimpleStmt parses an expression statement or assignment. An
// expression followed directly by } becomes the enclosing block's tail.
func (p *Parser) parseSimpleStmt() (Stmt, Expr) {
	start := p.curToken.Pos
	expr := p.parseExpression(precLowest)
	if expr == nil {
		return &BadStmt{SpanVal: MakeSpan(start, p.curToken.Pos)}, nil
	}

	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		val := p.parseExpression(precLowest)
		p.expect(TokenSemi)
		return &AssignStmt{
			SpanVal: MakeSpan(start, p.curToken.Pos),
			Target:  expr,
			Value:   val,
		}, nil
	}

	if p.curTokenIs(TokenRBrace) {
		return nil, expr // block tail value
	}

	// Block-shaped expressions used as statements need no semicolon.
	switch expr.(type) {
	case *If, *Match, *BlockExpr:
		if !p.curTokenIs(TokenSemi) {
			return &ExprStmt{SpanVal: expr.Span(), Expr: expr}, nil
		}
	}

	p.expect(TokenSemi)
	return &ExprStmt{SpanVal: MakeSpan(start, p.curToken.Pos), Expr: expr}, nil
}

// ---------------------------------------------------------------------------
// Expression parsing (Pratt)
// ---------------------------------------------------------------------------

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// parseExpression parses an expression with the given minimum precedence.
func (p *Parser) parseExpression(minPrec int) Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		prec := p.curPrecedence()
		if prec <= minPrec {
			return left
		}
		op := p.curToken.Type
		p.nextToken()
		right := p.parseExpression(prec)
		if right == nil {
			right = &BadExpr{SpanVal: p.curToken.Span()}
		}
		left = &Binary{
			SpanVal: MakeSpan(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
}

// parseUnary parses prefix operators and postfix chains.
func (p *Parser) parseUnary() Expr {
	switch p.curToken.Type {
	case TokenMinus, TokenBang:
		start := p.curToken.Pos
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			operand = &BadExpr{SpanVal: p.curToken.Span()}
		}
		return &Unary{
			SpanVal: MakeSpan(start, operand.Span().End),
			Op:      op,
			Operand: operand,
		}
	case TokenAt:
		return p.parseComptimeExpr()
	}
	return p.parsePostfix(p.parsePrimary())
}

// parseComptimeExpr parses @comptime expr in expression position.
func (p *Parser) parseComptimeExpr() Expr {
	start := p.curToken.Pos
	a := p.parseAttr()
	if a == nil || !validateAttr(a, p.diags) {
		return &BadExpr{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
	if a.Name != AttrComptime {
		p.errorf(a.SpanVal, "attribute @%s is not valid in expression position", a.Name)
		return &BadExpr{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
	expr := p.parseUnary()
	if expr == nil {
		expr = &BadExpr{SpanVal: p.curToken.Span()}
	}
	if call, ok := expr.(*Call); ok {
		call.Comptime = true
		return call
	}
	p.errorf(expr.Span(), "@comptime requires a call expression")
	return expr
}

// parsePostfix parses call, index, and field-access chains.
func (p *Parser) parsePostfix(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	for {
		switch p.curToken.Type {
		case TokenLParen:
			p.nextToken()
			call := &Call{Callee: expr}
			for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
				arg := p.parseExpression(precLowest)
				if arg == nil {
					break
				}
				call.Args = append(call.Args, arg)
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				} else {
					break
				}
			}
			p.expect(TokenRParen)
			call.SpanVal = MakeSpan(expr.Span().Start, p.curToken.Pos)
			expr = call

		case TokenLBracket:
			p.nextToken()
			idx := p.parseExpression(precLowest)
			p.expect(TokenRBracket)
			expr = &Index{
				SpanVal: MakeSpan(expr.Span().Start, p.curToken.Pos),
				Target:  expr,
				Idx:     idx,
			}

		case TokenDot:
			p.nextToken()
			if !p.curTokenIs(TokenIdent) && !p.curTokenIs(TokenFor) {
				p.errorExpected(TokenIdent)
				return expr
			}
			// parallel.for uses the keyword as a member name.
			name := p.curToken.Literal
			p.nextToken()
			expr = &Field{
				SpanVal: MakeSpan(expr.Span().Start, p.curToken.Pos),
				Target:  expr,
				Name:    name,
			}

		default:
			return expr
		}
	}
}

// parsePrimary parses atoms.
func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInt:
		v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf(p.curToken.Span(), "invalid integer literal %q", p.curToken.Literal)
		}
		e := &IntLit{SpanVal: p.curToken.Span(), Value: v}
		p.nextToken()
		return e

	case TokenFloat:
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf(p.curToken.Span(), "invalid float literal %q", p.curToken.Literal)
		}
		e := &FloatLit{SpanVal: p.curToken.Span(), Value: v}
		p.nextToken()
		return e

	case TokenString:
		return p.parseStringLit()

	case TokenChar:
		r := rune(0)
		for _, c := range p.curToken.Literal {
			r = c
			break
		}
		e := &CharLit{SpanVal: p.curToken.Span(), Value: r}
		p.nextToken()
		return e

	case TokenTrue, TokenFalse:
		e := &BoolLit{SpanVal: p.curToken.Span(), Value: p.curTokenIs(TokenTrue)}
		p.nextToken()
		return e

	case TokenNull:
		e := &NullLit{SpanVal: p.curToken.Span()}
		p.nextToken()
		return e

	case TokenIdent:
		name := p.curToken.Literal
		span := p.curToken.Span()
		p.nextToken()
		// Struct literal: Name { field: expr, ... }
		if p.curTokenIs(TokenLBrace) && !p.noStructLit && isTypeName(name) {
			return p.parseStructLit(name, span.Start)
		}
		return &Ident{SpanVal: span, Name: name}

	case TokenUnder:
		e := &Ident{SpanVal: p.curToken.Span(), Name: "_"}
		p.nextToken()
		return e

	case TokenLParen:
		p.nextToken()
		e := p.parseExpression(precLowest)
		p.expect(TokenRParen)
		return e

	case TokenLBracket:
		p.nextToken()
		arr := &ArrayLit{}
		for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
			el := p.parseExpression(precLowest)
			if el == nil {
				break
			}
			arr.Elements = append(arr.Elements, el)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			} else {
				break
			}
		}
		p.expect(TokenRBracket)
		arr.SpanVal = MakeSpan(start, p.curToken.Pos)
		return arr

	case TokenBar, TokenOrOr:
		return p.parseClosure()

	case TokenIf:
		return p.parseIf()

	case TokenMatch:
		return p.parseMatch()

	case TokenLBrace:
		return p.parseBlock()

	default:
		if p.curTokenIs(TokenEOF) {
			p.diags.Addf(CategoryParse, CodeUnexpectedEOF, p.curToken.Span(),
				"unexpected end of input in expression")
		} else {
			p.errorf(p.curToken.Span(), "unexpected %s in expression", p.curToken.Type)
			p.nextToken()
		}
		return &BadExpr{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}
}

// parseStructLit parses the body of Name { field: expr, ... } after the
// name and before the opening brace.
func (p *Parser) parseStructLit(name string, start Position) Expr {
	p.nextToken() // consume {
	lit := &StructLit{Name: name}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if !p.curTokenIs(TokenIdent) {
			p.errorExpected(TokenIdent)
			break
		}
		fieldName := p.curToken.Literal
		p.nextToken()
		if !p.expect(TokenColon) {
			break
		}
		val := p.parseExpression(precLowest)
		if val == nil {
			break
		}
		lit.Fields = append(lit.Fields, StructLitField{Name: fieldName, Value: val})
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRBrace)
	lit.SpanVal = MakeSpan(start, p.curToken.Pos)
	return lit
}

// isTypeName reports whether an identifier is a plausible struct-literal
// head. Type names are capitalized by convention; this keeps `x { }` from
// swallowing blocks.
func isTypeName(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// parseStringLit builds a StringLit, parsing interpolation holes into
// expressions via sub-parsers over the re-lexed token sequences.
func (p *Parser) parseStringLit() Expr {
	tok := p.curToken
	p.nextToken()
	lit := &StringLit{SpanVal: tok.Span()}
	if tok.Interp == nil {
		lit.Value = tok.Literal
		return lit
	}
	for _, part := range tok.Interp {
		if !part.Expr {
			lit.Parts = append(lit.Parts, StringPart{Text: part.Text})
			continue
		}
		sub := newSubParser(part.Tokens, p.diags)
		expr := sub.parseExpression(precLowest)
		if expr == nil {
			expr = &BadExpr{SpanVal: MakeSpan(part.Pos, part.Pos)}
		}
		lit.Parts = append(lit.Parts, StringPart{Expr: expr})
	}
	return lit
}

// parseClosure parses |a, b| expr-or-block. In prefix position || is an
// empty parameter list.
func (p *Parser) parseClosure() Expr {
	start := p.curToken.Pos
	c := &Closure{}

	if p.curTokenIs(TokenOrOr) {
		p.nextToken()
	} else {
		p.nextToken() // consume |
		for !p.curTokenIs(TokenBar) && !p.curTokenIs(TokenEOF) {
			param := p.parseParam(false)
			if param == nil {
				break
			}
			c.Params = append(c.Params, *param)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			} else {
				break
			}
		}
		p.expect(TokenBar)
	}

	if p.curTokenIs(TokenLBrace) {
		c.Body = p.parseBlock()
	} else {
		c.Body = p.parseExpression(precLowest)
	}
	if c.Body == nil {
		c.Body = &BadExpr{SpanVal: p.curToken.Span()}
	}
	c.SpanVal = MakeSpan(start, p.curToken.Pos)
	return c
}

// parseIf parses if cond { } [else if ... | else { }].
func (p *Parser) parseIf() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume if

	cond := p.parseCondition()
	then := p.parseBlock()

	e := &If{Cond: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			e.Else = p.parseIf()
		} else {
			e.Else = p.parseBlock()
		}
	}
	e.SpanVal = MakeSpan(start, p.curToken.Pos)
	return e
}

// parseMatch parses match subject { pattern => expr, ... }.
func (p *Parser) parseMatch() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume match

	subject := p.parseCondition()
	m := &Match{Subject: subject}

	if !p.expect(TokenLBrace) {
		m.SpanVal = MakeSpan(start, p.curToken.Pos)
		return m
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		armStart := p.curToken.Pos
		pat := p.parsePattern()
		if !p.expect(TokenFatArrow) {
			p.syncStatement()
			continue
		}
		body := p.parseExpression(precLowest)
		if body == nil {
			body = &BadExpr{SpanVal: p.curToken.Span()}
		}
		m.Arms = append(m.Arms, MatchArm{
			SpanVal: MakeSpan(armStart, p.curToken.Pos),
			Pattern: pat,
			Body:    body,
		})
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRBrace)
	m.SpanVal = MakeSpan(start, p.curToken.Pos)
	return m
}

// parsePattern parses a match pattern.
func (p *Parser) parsePattern() Pattern {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenUnder:
		p.nextToken()
		return Pattern{SpanVal: MakeSpan(start, p.curToken.Pos), Wildcard: true}

	case TokenInt, TokenFloat, TokenString, TokenChar, TokenTrue, TokenFalse, TokenMinus:
		lit := p.parseUnary()
		return Pattern{SpanVal: MakeSpan(start, p.curToken.Pos), Lit: lit}

	case TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		pat := Pattern{Name: name}
		if p.curTokenIs(TokenLParen) {
			pat.Variant = true
			p.nextToken()
			for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
				switch p.curToken.Type {
				case TokenIdent:
					pat.Binds = append(pat.Binds, p.curToken.Literal)
				case TokenUnder:
					pat.Binds = append(pat.Binds, "_")
				default:
					p.errorExpected(TokenIdent)
				}
				p.nextToken()
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				} else {
					break
				}
			}
			p.expect(TokenRParen)
		} else if isTypeName(name) {
			pat.Variant = true
		}
		pat.SpanVal = MakeSpan(start, p.curToken.Pos)
		return pat

	default:
		p.errorf(p.curToken.Span(), "expected pattern, got %s", p.curToken.Type)
		p.nextToken()
		return Pattern{SpanVal: MakeSpan(start, p.curToken.Pos), Wildcard: true}
	}
}
