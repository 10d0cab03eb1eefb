package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } ; , . : -> => | @ + - * / % = == != < <= > >= && || !`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenSemi, ";"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenColon, ":"},
		{TokenArrow, "->"},
		{TokenFatArrow, "=>"},
		{TokenBar, "|"},
		{TokenAt, "@"},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenAssign, "="},
		{TokenEq, "=="},
		{TokenNotEq, "!="},
		{TokenLess, "<"},
		{TokenLessEq, "<="},
		{TokenGreater, ">"},
		{TokenGreaterEq, ">="},
		{TokenAndAnd, "&&"},
		{TokenOrOr, "||"},
		{TokenBang, "!"},
		{TokenEOF, ""},
	}

	var diags Diagnostics
	l := NewLexer(input, &diags)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
	if diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", diags.String())
	}
}

func TestLexerKeywords(t *testing.T) {
	input := "fn let const if else while for loop return break continue struct enum impl import export match true false null in as"
	expected := []TokenType{
		TokenFn, TokenLet, TokenConst, TokenIf, TokenElse, TokenWhile,
		TokenFor, TokenLoop, TokenReturn, TokenBreak, TokenContinue,
		TokenStruct, TokenEnum, TokenImpl, TokenImport, TokenExport,
		TokenMatch, TokenTrue, TokenFalse, TokenNull, TokenIn, TokenAs,
	}

	var diags Diagnostics
	l := NewLexer(input, &diags)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, want)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInt, "42"},
		{"0", TokenInt, "0"},
		{"1_000_000", TokenInt, "1000000"},
		{"3.14", TokenFloat, "3.14"},
		{"1.5e10", TokenFloat, "1.5e10"},
		{"2e-3", TokenFloat, "2e-3"},
		{"1_0.5", TokenFloat, "10.5"},
	}

	for _, tc := range tests {
		var diags Diagnostics
		l := NewLexer(tc.input, &diags)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerMethodCallOnInt(t *testing.T) {
	// 1.abs() must lex as INT DOT IDENT, not a float.
	var diags Diagnostics
	toks := Tokenize("1.abs()", &diags)
	want := []TokenType{TokenInt, TokenDot, TokenIdent, TokenLParen, TokenRParen, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token[%d] = %v, want %v", i, toks[i].Type, w)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote \" end"`, `quote " end`},
		{`"brace \{ not a hole \}"`, "brace { not a hole }"},
	}

	for _, tc := range tests {
		var diags Diagnostics
		l := NewLexer(tc.input, &diags)
		tok := l.NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
		if diags.HasErrors() {
			t.Errorf("Lexer(%s): unexpected diagnostics: %v", tc.input, diags.String())
		}
	}
}

func TestLexerInterpolation(t *testing.T) {
	var diags Diagnostics
	l := NewLexer(`"x = {a + 1}!"`, &diags)
	tok := l.NextToken()
	if tok.Type != TokenString {
		t.Fatalf("type = %v, want STRING", tok.Type)
	}
	if len(tok.Interp) != 3 {
		t.Fatalf("got %d parts, want 3", len(tok.Interp))
	}
	if tok.Interp[0].Expr || tok.Interp[0].Text != "x = " {
		t.Errorf("part[0] = %+v, want text 'x = '", tok.Interp[0])
	}
	if !tok.Interp[1].Expr {
		t.Fatalf("part[1] is not an expression hole")
	}
	holeTypes := []TokenType{}
	for _, ht := range tok.Interp[1].Tokens {
		holeTypes = append(holeTypes, ht.Type)
	}
	want := []TokenType{TokenIdent, TokenPlus, TokenInt, TokenEOF}
	if len(holeTypes) != len(want) {
		t.Fatalf("hole tokens = %v, want %v", holeTypes, want)
	}
	for i := range want {
		if holeTypes[i] != want[i] {
			t.Errorf("hole token[%d] = %v, want %v", i, holeTypes[i], want[i])
		}
	}
	if tok.Interp[2].Expr || tok.Interp[2].Text != "!" {
		t.Errorf("part[2] = %+v, want text '!'", tok.Interp[2])
	}
}

func TestLexerCharLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'a'`, "a"},
		{`'\n'`, "\n"},
		{`'\''`, "'"},
		{`'\\'`, `\`},
	}
	for _, tc := range tests {
		var diags Diagnostics
		l := NewLexer(tc.input, &diags)
		tok := l.NextToken()
		if tok.Type != TokenChar {
			t.Errorf("Lexer(%s): type = %v, want CHAR", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `
// line comment
let /* block */ x = 1; /* nested /* inner */ still comment */
`
	var diags Diagnostics
	toks := Tokenize(input, &diags)
	want := []TokenType{TokenLet, TokenIdent, TokenAssign, TokenInt, TokenSemi, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(toks), toks, len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token[%d] = %v, want %v", i, toks[i].Type, w)
		}
	}
	if diags.HasErrors() {
		t.Errorf("unexpected diagnostics: %v", diags.String())
	}
}

func TestLexerPositions(t *testing.T) {
	input := "let x = 1;\nlet y = 2;"
	var diags Diagnostics
	toks := Tokenize(input, &diags)

	// Second "let" starts line 2, column 1, offset 11.
	second := toks[5]
	if second.Type != TokenLet {
		t.Fatalf("token[5] = %v, want let", second.Type)
	}
	if second.Pos.Line != 2 || second.Pos.Column != 1 || second.Pos.Offset != 11 {
		t.Errorf("pos = %+v, want line 2 col 1 offset 11", second.Pos)
	}

	// Spans must reproduce source text byte-for-byte.
	for _, tok := range toks {
		if tok.Type == TokenEOF {
			continue
		}
		got := input[tok.Pos.Offset:tok.End.Offset]
		if tok.Type == TokenInt || tok.Type == TokenIdent || tok.Type == TokenLet {
			if got != tok.Literal {
				t.Errorf("span slice = %q, literal = %q", got, tok.Literal)
			}
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	var diags Diagnostics
	Tokenize(`let s = "never ends`, &diags)
	if !diags.HasErrors() {
		t.Fatal("expected a diagnostic for unterminated string")
	}
	d := diags.Errors()[0]
	if d.Category != CategoryLex {
		t.Errorf("category = %v, want LexError", d.Category)
	}
	if d.Code != CodeUnterminatedString {
		t.Errorf("code = %v, want UnterminatedString", d.Code)
	}
}

func TestLexerUnterminatedComment(t *testing.T) {
	var diags Diagnostics
	Tokenize("/* no end", &diags)
	if !diags.HasErrors() {
		t.Fatal("expected a diagnostic for unterminated comment")
	}
	if diags.Errors()[0].Code != CodeUnterminatedComment {
		t.Errorf("code = %v, want UnterminatedComment", diags.Errors()[0].Code)
	}
}

func TestLexerInvalidCharacterRecovery(t *testing.T) {
	// Lexing continues after an invalid character; both diagnostics and the
	// surrounding tokens survive.
	var diags Diagnostics
	toks := Tokenize("let x = 1 # let y = 2;", &diags)
	if !diags.HasErrors() {
		t.Fatal("expected a diagnostic for invalid character")
	}
	if diags.Errors()[0].Code != CodeInvalidCharacter {
		t.Errorf("code = %v, want InvalidCharacter", diags.Errors()[0].Code)
	}
	sawSecondLet := false
	for _, tok := range toks {
		if tok.Type == TokenLet && tok.Pos.Offset > 0 {
			sawSecondLet = true
		}
	}
	if !sawSecondLet {
		t.Error("lexer did not resume after the invalid character")
	}
}

func TestLexerUnderscore(t *testing.T) {
	var diags Diagnostics
	toks := Tokenize("_ _x", &diags)
	if toks[0].Type != TokenUnder {
		t.Errorf("token[0] = %v, want _", toks[0].Type)
	}
	if toks[1].Type != TokenIdent || toks[1].Literal != "_x" {
		t.Errorf("token[1] = %v %q, want IDENT _x", toks[1].Type, toks[1].Literal)
	}
}
