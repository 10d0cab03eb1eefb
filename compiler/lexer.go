package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Z syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Z source code. It is a restartable lazy sequence: each
// NextToken call produces one token, terminated by a TokenEOF marker. Lexing
// does not stop at the first error; bad input is reported to the diagnostic
// bag and the lexer resynchronizes at the next whitespace.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
	diags   *Diagnostics
}

// NewLexer creates a new lexer for the given input. Diagnostics are
// accumulated into diags; pass nil to drop them.
func NewLexer(input string, diags *Diagnostics) *Lexer {
	return NewLexerAt(input, Position{Line: 1, Column: 1}, diags)
}

// NewLexerAt creates a lexer starting at an arbitrary source position. Used
// to re-lex string interpolation holes with correct spans.
func NewLexerAt(input string, at Position, diags *Diagnostics) *Lexer {
	if diags == nil {
		diags = &Diagnostics{}
	}
	l := &Lexer{
		input:   input,
		readPos: at.Offset,
		line:    at.Line,
		col:     at.Column,
		diags:   diags,
	}
	l.readChar()
	// readChar advanced the column past the first rune
	l.col = at.Column
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// errorAt reports a lex error and resynchronizes at the next whitespace.
func (l *Lexer) errorAt(code string, start Position, format string, args ...interface{}) {
	l.diags.Addf(CategoryLex, code, MakeSpan(start, l.position()), format, args...)
	for l.ch != 0 && !unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespaceAndComments()

		pos := l.position()

		switch {
		case l.ch == 0:
			return Token{Type: TokenEOF, Pos: pos, End: pos}

		case l.ch == '(':
			return l.single(TokenLParen, pos)
		case l.ch == ')':
			return l.single(TokenRParen, pos)
		case l.ch == '{':
			return l.single(TokenLBrace, pos)
		case l.ch == '}':
			return l.single(TokenRBrace, pos)
		case l.ch == '[':
			return l.single(TokenLBracket, pos)
		case l.ch == ']':
			return l.single(TokenRBracket, pos)
		case l.ch == ';':
			return l.single(TokenSemi, pos)
		case l.ch == ',':
			return l.single(TokenComma, pos)
		case l.ch == '@':
			return l.single(TokenAt, pos)
		case l.ch == ':':
			return l.single(TokenColon, pos)

		case l.ch == '.':
			return l.single(TokenDot, pos)

		case l.ch == '+':
			return l.single(TokenPlus, pos)

		case l.ch == '-':
			if l.peekChar() == '>' {
				return l.double(TokenArrow, "->", pos)
			}
			return l.single(TokenMinus, pos)

		case l.ch == '*':
			return l.single(TokenStar, pos)

		case l.ch == '/':
			return l.single(TokenSlash, pos)

		case l.ch == '%':
			return l.single(TokenPercent, pos)

		case l.ch == '=':
			if l.peekChar() == '=' {
				return l.double(TokenEq, "==", pos)
			}
			if l.peekChar() == '>' {
				return l.double(TokenFatArrow, "=>", pos)
			}
			return l.single(TokenAssign, pos)

		case l.ch == '!':
			if l.peekChar() == '=' {
				return l.double(TokenNotEq, "!=", pos)
			}
			return l.single(TokenBang, pos)

		case l.ch == '<':
			if l.peekChar() == '=' {
				return l.double(TokenLessEq, "<=", pos)
			}
			return l.single(TokenLess, pos)

		case l.ch == '>':
			if l.peekChar() == '=' {
				return l.double(TokenGreaterEq, ">=", pos)
			}
			return l.single(TokenGreater, pos)

		case l.ch == '&':
			if l.peekChar() == '&' {
				return l.double(TokenAndAnd, "&&", pos)
			}
			l.readChar()
			l.errorAt(CodeInvalidCharacter, pos, "unexpected character: &")
			continue

		case l.ch == '|':
			if l.peekChar() == '|' {
				return l.double(TokenOrOr, "||", pos)
			}
			return l.single(TokenBar, pos)

		case l.ch == '"':
			tok, ok := l.readString(pos)
			if !ok {
				continue
			}
			return tok

		case l.ch == '\'':
			tok, ok := l.readCharLit(pos)
			if !ok {
				continue
			}
			return tok

		case isDigit(l.ch):
			return l.readNumber(pos)

		case isLetter(l.ch) || l.ch == '_':
			return l.readIdentifier(pos)

		default:
			ch := l.ch
			l.readChar()
			l.errorAt(CodeInvalidCharacter, pos, "unexpected character: %q", ch)
			continue
		}
	}
}

// single consumes one character and returns a token of the given type.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.position()}
}

// double consumes two characters and returns a token of the given type.
func (l *Lexer) double(t TokenType, lit string, pos Position) Token {
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.position()}
}

// skipWhitespaceAndComments skips whitespace, // line comments, and
// /* block comments */, which nest.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.position()
			l.readChar() // /
			l.readChar() // *
			depth := 1
			for depth > 0 {
				if l.ch == 0 {
					l.diags.Addf(CategoryLex, CodeUnterminatedComment,
						MakeSpan(start, l.position()), "unterminated block comment")
					return
				}
				if l.ch == '/' && l.peekChar() == '*' {
					depth++
					l.readChar()
					l.readChar()
					continue
				}
				if l.ch == '*' && l.peekChar() == '/' {
					depth--
					l.readChar()
					l.readChar()
					continue
				}
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a string literal with optional {expr} interpolation.
// Interpolation holes are re-lexed as nested token sequences with spans
// relative to the original source.
func (l *Lexer) readString(pos Position) (Token, bool) {
	l.readChar() // consume opening "

	var sb strings.Builder
	var parts []InterpPart
	textStart := l.position()

	flushText := func() {
		if sb.Len() > 0 {
			parts = append(parts, InterpPart{Text: sb.String(), Pos: textStart})
			sb.Reset()
		}
	}

	for {
		switch {
		case l.ch == 0 || l.ch == '\n':
			l.errorAt(CodeUnterminatedString, pos, "unterminated string literal")
			return Token{}, false

		case l.ch == '"':
			l.readChar() // consume closing "
			flushText()
			tok := Token{Type: TokenString, Pos: pos, End: l.position(), Interp: parts}
			// Plain strings keep the cooked text in Literal.
			if len(parts) == 1 && !parts[0].Expr {
				tok.Literal = parts[0].Text
				tok.Interp = nil
			} else if len(parts) == 0 {
				tok.Literal = ""
				tok.Interp = nil
			}
			return tok, true

		case l.ch == '\\':
			l.readChar()
			r, ok := unescape(l.ch)
			if !ok {
				l.errorAt(CodeInvalidCharacter, pos, "invalid escape sequence: \\%c", l.ch)
				return Token{}, false
			}
			sb.WriteRune(r)
			l.readChar()

		case l.ch == '{':
			flushText()
			part, ok := l.readInterpHole()
			if !ok {
				return Token{}, false
			}
			parts = append(parts, part)
			textStart = l.position()

		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readInterpHole consumes {expr} inside a string and re-lexes the contents
// as a nested token sequence.
func (l *Lexer) readInterpHole() (InterpPart, bool) {
	open := l.position()
	l.readChar() // consume {
	exprStart := l.position()

	depth := 1
	for depth > 0 {
		switch l.ch {
		case 0, '\n':
			l.errorAt(CodeUnterminatedString, open, "unterminated interpolation in string literal")
			return InterpPart{}, false
		case '{':
			depth++
			l.readChar()
		case '}':
			depth--
			if depth > 0 {
				l.readChar()
			}
		default:
			l.readChar()
		}
	}
	exprEnd := l.pos
	l.readChar() // consume }

	sub := NewLexerAt(l.input[:exprEnd], exprStart, l.diags)
	var toks []Token
	for {
		t := sub.NextToken()
		toks = append(toks, t)
		if t.Type == TokenEOF {
			break
		}
	}
	return InterpPart{Expr: true, Tokens: toks, Pos: exprStart}, true
}

// readCharLit reads a character literal 'a'.
func (l *Lexer) readCharLit(pos Position) (Token, bool) {
	l.readChar() // consume opening '

	if l.ch == 0 || l.ch == '\n' {
		l.errorAt(CodeUnterminatedString, pos, "unterminated character literal")
		return Token{}, false
	}

	var r rune
	if l.ch == '\\' {
		l.readChar()
		var ok bool
		r, ok = unescape(l.ch)
		if !ok {
			l.errorAt(CodeInvalidCharacter, pos, "invalid escape sequence: \\%c", l.ch)
			return Token{}, false
		}
		l.readChar()
	} else {
		r = l.ch
		l.readChar()
	}

	if l.ch != '\'' {
		l.errorAt(CodeUnterminatedString, pos, "unterminated character literal")
		return Token{}, false
	}
	l.readChar() // consume closing '

	return Token{Type: TokenChar, Literal: string(r), Pos: pos, End: l.position()}, true
}

// readNumber reads an integer or float literal. Underscores are permitted
// between digits and stripped from the literal.
func (l *Lexer) readNumber(pos Position) Token {
	var sb strings.Builder
	isFloat := false

	readDigits := func() {
		for isDigit(l.ch) || l.ch == '_' {
			if l.ch != '_' {
				sb.WriteRune(l.ch)
			}
			l.readChar()
		}
	}

	readDigits()

	// Fractional part; a lone '.' is a field access, not a float.
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		sb.WriteRune('.')
		l.readChar()
		readDigits()
	}

	// Exponent
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		sb.WriteRune(l.ch)
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			sb.WriteRune(l.ch)
			l.readChar()
		}
		readDigits()
	}

	typ := TokenInt
	if isFloat {
		typ = TokenFloat
	}
	return Token{Type: typ, Literal: sb.String(), Pos: pos, End: l.position()}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]

	if literal == "_" {
		return Token{Type: TokenUnder, Literal: literal, Pos: pos, End: l.position()}
	}
	if typ, ok := keywords[literal]; ok {
		return Token{Type: typ, Literal: literal, Pos: pos, End: l.position()}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: pos, End: l.position()}
}

// unescape maps an escape character to its rune value.
func unescape(c rune) (rune, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case '\'':
		return '\'', true
	case '{':
		return '{', true
	case '}':
		return '}', true
	}
	return 0, false
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input, including the EOF marker.
func Tokenize(input string, diags *Diagnostics) []Token {
	l := NewLexer(input, diags)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
