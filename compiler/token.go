package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Z lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt    // 42, 1_000
	TokenFloat  // 3.14, 1.5e10
	TokenString // "hello {name}"
	TokenChar   // 'a', '\n'
	TokenIdent  // foo, Bar

	// Keywords
	TokenFn
	TokenLet
	TokenConst
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenLoop
	TokenReturn
	TokenBreak
	TokenContinue
	TokenStruct
	TokenEnum
	TokenImpl
	TokenImport
	TokenExport
	TokenMatch
	TokenTrue
	TokenFalse
	TokenNull
	TokenIn
	TokenAs

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAssign    // =
	TokenEq        // ==
	TokenNotEq     // !=
	TokenLess      // <
	TokenLessEq    // <=
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenAndAnd    // &&
	TokenOrOr      // ||
	TokenBang      // !

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenSemi     // ;
	TokenComma    // ,
	TokenDot      // .
	TokenColon    // :
	TokenArrow    // ->
	TokenFatArrow // =>
	TokenBar      // |
	TokenAt       // @
	TokenUnder    // _
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenChar:      "CHAR",
	TokenIdent:     "IDENT",
	TokenFn:        "fn",
	TokenLet:       "let",
	TokenConst:     "const",
	TokenIf:        "if",
	TokenElse:      "else",
	TokenWhile:     "while",
	TokenFor:       "for",
	TokenLoop:      "loop",
	TokenReturn:    "return",
	TokenBreak:     "break",
	TokenContinue:  "continue",
	TokenStruct:    "struct",
	TokenEnum:      "enum",
	TokenImpl:      "impl",
	TokenImport:    "import",
	TokenExport:    "export",
	TokenMatch:     "match",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenNull:      "null",
	TokenIn:        "in",
	TokenAs:        "as",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenAssign:    "=",
	TokenEq:        "==",
	TokenNotEq:     "!=",
	TokenLess:      "<",
	TokenLessEq:    "<=",
	TokenGreater:   ">",
	TokenGreaterEq: ">=",
	TokenAndAnd:    "&&",
	TokenOrOr:      "||",
	TokenBang:      "!",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenSemi:      ";",
	TokenComma:     ",",
	TokenDot:       ".",
	TokenColon:     ":",
	TokenArrow:     "->",
	TokenFatArrow:  "=>",
	TokenBar:       "|",
	TokenAt:        "@",
	TokenUnder:     "_",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Reserved words mapped to their token types.
var keywords = map[string]TokenType{
	"fn":       TokenFn,
	"let":      TokenLet,
	"const":    TokenConst,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"loop":     TokenLoop,
	"return":   TokenReturn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"struct":   TokenStruct,
	"enum":     TokenEnum,
	"impl":     TokenImpl,
	"import":   TokenImport,
	"export":   TokenExport,
	"match":    TokenMatch,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"null":     TokenNull,
	"in":       TokenIn,
	"as":       TokenAs,
}

// InterpPart is one segment of an interpolated string literal. Exactly one
// of Text or Tokens is meaningful: literal text, or the re-lexed token
// sequence of a {expr} hole.
type InterpPart struct {
	Text   string
	Expr   bool
	Tokens []Token // nested token sequence for an expression hole
	Pos    Position
}

// Token represents a lexical token. Tokens are immutable once produced.
type Token struct {
	Type    TokenType
	Literal string   // the cooked text (escapes resolved for strings/chars)
	Pos     Position // start position
	End     Position // position one past the last byte of the token
	Interp  []InterpPart
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Span returns the source span covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}
