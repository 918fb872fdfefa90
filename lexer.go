// lexer.go — indentation-aware scanner for Pine scripts.
//
// The lexer turns source text into a flat token stream that the parser walks
// with a cursor. Three things make it more than a plain scanner:
//
//   - Statement boundaries are explicit. A NEWLINE token is emitted at the end
//     of every non-blank logical line. Blank lines and comment-only lines do not
//     produce NEWLINEs, and runs of newlines collapse into one.
//   - Blocks are delimited by indentation. The first token of every logical line
//     carries Indent, the width of its leading whitespace (tab = 4 columns).
//     Every other token carries NoIndent.
//   - Inside an open '(' or '[' run the line is continued: newlines are skipped
//     and no indentation is recorded.
//
// Scanning never stops on bad input. An unscannable character becomes an
// ILLEGAL token plus a *LexError and the scan continues with the next byte.
//
// Comments ("// ...") are not tokens; they are collected on the side so the
// formatter can put them back. A "//@version=N" comment sets the detected
// language version.
package pine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE

	// Punctuation
	LROUND   // "("
	RROUND   // ")"
	LSQUARE  // "["
	RSQUARE  // "]"
	COMMA    // ","
	PERIOD   // "."
	QUESTION // "?"
	COLON    // ":"

	// Operators
	PLUS
	MINUS
	MULT
	DIV
	MOD
	ASSIGN       // "="
	DEFINE       // ":="
	PLUS_ASSIGN  // "+="
	MINUS_ASSIGN // "-="
	MULT_ASSIGN  // "*="
	DIV_ASSIGN   // "/="
	MOD_ASSIGN   // "%="
	EQ           // "=="
	NEQ          // "!="
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ
	ARROW // "=>"

	// Literals & identifiers
	ID
	INTEGER
	NUMBER
	STRING
	COLOR
	BOOLEAN
	NA

	// Keywords
	AND
	OR
	NOT
	VAR
	VARIP
	CONST
	IF
	ELSE
	FOR
	TO
	BY
	IN
	WHILE
	SWITCH
	RETURN
	BREAK
	CONTINUE
	IMPORT
	EXPORT
	METHOD
	TYPECONS // "type" declaration keyword
	ENUM

	// TYPE is a primitive or collection type keyword: int, float, array, series...
	TYPE
)

var tokenNames = map[TokenType]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", NEWLINE: "NEWLINE",
	LROUND: "(", RROUND: ")", LSQUARE: "[", RSQUARE: "]", COMMA: ",", PERIOD: ".",
	QUESTION: "?", COLON: ":",
	PLUS: "+", MINUS: "-", MULT: "*", DIV: "/", MOD: "%",
	ASSIGN: "=", DEFINE: ":=", PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", MULT_ASSIGN: "*=",
	DIV_ASSIGN: "/=", MOD_ASSIGN: "%=",
	EQ: "==", NEQ: "!=", LESS: "<", LESS_EQ: "<=", GREATER: ">", GREATER_EQ: ">=", ARROW: "=>",
	ID: "identifier", INTEGER: "integer", NUMBER: "number", STRING: "string", COLOR: "color",
	BOOLEAN: "bool", NA: "na",
	AND: "and", OR: "or", NOT: "not", VAR: "var", VARIP: "varip", CONST: "const",
	IF: "if", ELSE: "else", FOR: "for", TO: "to", BY: "by", IN: "in", WHILE: "while",
	SWITCH: "switch", RETURN: "return", BREAK: "break", CONTINUE: "continue",
	IMPORT: "import", EXPORT: "export", METHOD: "method", TYPECONS: "type", ENUM: "enum",
	TYPE: "type keyword",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// NoIndent marks a token that does not start a logical line.
const NoIndent = -1

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string      // raw text slice
	Literal interface{} // parsed value for literals
	Line    int         // 1-based
	Col     int         // 1-based
	Indent  int         // leading whitespace width, or NoIndent
}

// LineStart reports whether the token is the first one on its logical line.
func (t Token) LineStart() bool { return t.Indent != NoIndent }

// Comment is a "//" comment collected during the scan.
type Comment struct {
	Line int
	Col  int
	Text string // without the leading "//"
}

var keywords = map[string]TokenType{
	"na":       NA,
	"true":     BOOLEAN,
	"false":    BOOLEAN,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"var":      VAR,
	"varip":    VARIP,
	"const":    CONST,
	"if":       IF,
	"else":     ELSE,
	"for":      FOR,
	"to":       TO,
	"by":       BY,
	"in":       IN,
	"while":    WHILE,
	"switch":   SWITCH,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"import":   IMPORT,
	"export":   EXPORT,
	"method":   METHOD,
	"type":     TYPECONS,
	"enum":     ENUM,
	"int":      TYPE,
	"float":    TYPE,
	"bool":     TYPE,
	"string":   TYPE,
	"color":    TYPE,
	"line":     TYPE,
	"label":    TYPE,
	"box":      TYPE,
	"table":    TYPE,
	"linefill": TYPE,
	"array":    TYPE,
	"matrix":   TYPE,
	"map":      TYPE,
	"series":   TYPE,
	"simple":   TYPE,
}

// IsKeyword reports whether word is reserved by the lexer.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}

// LexError is a malformed-token report. Scanning continues after it.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Tokenize scans src and returns the tokens (NEWLINE-terminated, EOF last),
// the lexical errors, and the //@version marker (0 when absent).
func Tokenize(src string) ([]Token, []*LexError, int) {
	l := NewLexer(src)
	toks := l.Scan()
	return toks, l.Errors(), l.Version()
}

// Lexer scans a Pine source string into tokens.
type Lexer struct {
	src   string
	start int // start index of current token
	cur   int // current index
	line  int // 1-based
	col   int // 1-based column of cur

	tokStartLine int
	tokStartCol  int

	tokens   []Token
	errors   []*LexError
	comments []Comment
	version  int

	depth         int // open '(' and '[' count
	atLineStart   bool
	pendingIndent int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{
		src:           src,
		line:          1,
		col:           1,
		atLineStart:   true,
		pendingIndent: NoIndent,
	}
}

// Errors returns the lexical errors found by Scan.
func (l *Lexer) Errors() []*LexError { return l.errors }

// Comments returns the comments found by Scan, in source order.
func (l *Lexer) Comments() []Comment { return l.comments }

// Version returns the //@version marker, or 0.
func (l *Lexer) Version() int { return l.version }

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) match(b byte) bool {
	if c, ok := l.peek(); ok && c == b {
		l.advance()
		return true
	}
	return false
}

func (l *Lexer) markStart() {
	l.start = l.cur
	l.tokStartLine = l.line
	l.tokStartCol = l.col
}

func (l *Lexer) addToken(tt TokenType, lit interface{}) Token {
	tok := Token{
		Type:    tt,
		Lexeme:  l.src[l.start:l.cur],
		Literal: lit,
		Line:    l.tokStartLine,
		Col:     l.tokStartCol,
		Indent:  l.pendingIndent,
	}
	l.pendingIndent = NoIndent
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) addNewline() {
	if len(l.tokens) == 0 || l.tokens[len(l.tokens)-1].Type == NEWLINE {
		return
	}
	l.tokens = append(l.tokens, Token{
		Type:   NEWLINE,
		Lexeme: "\n",
		Line:   l.line,
		Col:    l.col,
		Indent: NoIndent,
	})
}

func (l *Lexer) errAt(line, col int, msg string) {
	l.errors = append(l.errors, &LexError{Line: line, Col: col, Msg: msg})
}

func (l *Lexer) previousToken() *Token {
	if len(l.tokens) == 0 {
		return nil
	}
	return &l.tokens[len(l.tokens)-1]
}

func canBeLeftOperand(t TokenType) bool {
	switch t {
	case ID, INTEGER, NUMBER, STRING, COLOR, BOOLEAN, NA, TYPE, RROUND, RSQUARE:
		return true
	default:
		return false
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

// ----- scanners -----

// measureIndent consumes the leading whitespace of a line and returns its width.
func (l *Lexer) measureIndent() int {
	width := 0
	for {
		b, ok := l.peek()
		if !ok {
			return width
		}
		switch b {
		case ' ':
			width++
		case '\t':
			width += 4
		case '\r':
		default:
			return width
		}
		l.advance()
	}
}

func (l *Lexer) scanComment() {
	// "//" already at cur
	line, col := l.line, l.col
	l.advance()
	l.advance()
	begin := l.cur
	for {
		b, ok := l.peek()
		if !ok || b == '\n' {
			break
		}
		l.advance()
	}
	text := strings.TrimRight(l.src[begin:l.cur], "\r")
	l.comments = append(l.comments, Comment{Line: line, Col: col, Text: text})

	if rest, ok := strings.CutPrefix(strings.TrimSpace(text), "@version="); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			l.version = v
		}
	}
}

func (l *Lexer) scanString(del byte) (string, bool) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		ch, ok := l.peek()
		if !ok || ch == '\n' {
			return b.String(), false
		}
		l.advance()
		if ch == del {
			return b.String(), true
		}
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		esc, ok := l.peek()
		if !ok || esc == '\n' {
			return b.String(), false
		}
		l.advance()
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"', '\'':
			b.WriteByte(esc)
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
}

func (l *Lexer) scanNumber() (TokenType, interface{}) {
	sawDot, sawExp := false, false
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '.' {
		if b2, ok2 := l.peekN(1); !ok2 || !isAlpha(b2) {
			sawDot = true
			l.advance()
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
			}
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save, saveCol := l.cur, l.col
		l.advance()
		if b2, ok := l.peek(); ok && (b2 == '+' || b2 == '-') {
			l.advance()
		}
		if b3, ok := l.peek(); ok && isDigit(b3) {
			sawExp = true
			for {
				b4, ok := l.peek()
				if !ok || !isDigit(b4) {
					break
				}
				l.advance()
			}
		} else {
			l.cur, l.col = save, saveCol
		}
	}

	lex := l.src[l.start:l.cur]
	if !sawDot && !sawExp {
		if v, err := strconv.ParseInt(lex, 10, 64); err == nil {
			return INTEGER, v
		}
		l.errAt(l.tokStartLine, l.tokStartCol, "invalid integer literal")
		return ILLEGAL, nil
	}
	if v, err := strconv.ParseFloat(lex, 64); err == nil {
		return NUMBER, v
	}
	l.errAt(l.tokStartLine, l.tokStartCol, "invalid float literal")
	return ILLEGAL, nil
}

func (l *Lexer) scanColor() (TokenType, interface{}) {
	l.advance() // '#'
	n := 0
	for {
		b, ok := l.peek()
		if !ok || !isHex(b) {
			break
		}
		l.advance()
		n++
	}
	if n != 6 && n != 8 {
		l.errAt(l.tokStartLine, l.tokStartCol, "malformed color literal "+strconv.Quote(l.src[l.start:l.cur]))
		return ILLEGAL, nil
	}
	return COLOR, strings.ToLower(l.src[l.start:l.cur])
}

func (l *Lexer) dotStartsNumber() bool {
	b, ok := l.peekN(1)
	if !ok || !isDigit(b) {
		return false
	}
	prev := l.previousToken()
	return prev == nil || !canBeLeftOperand(prev.Type)
}

func (l *Lexer) scanOperator(ch byte) (TokenType, bool) {
	switch ch {
	case '(':
		l.depth++
		return LROUND, true
	case ')':
		if l.depth > 0 {
			l.depth--
		}
		return RROUND, true
	case '[':
		l.depth++
		return LSQUARE, true
	case ']':
		if l.depth > 0 {
			l.depth--
		}
		return RSQUARE, true
	case ',':
		return COMMA, true
	case '.':
		return PERIOD, true
	case '?':
		return QUESTION, true
	case ':':
		if l.match('=') {
			return DEFINE, true
		}
		return COLON, true
	case '+':
		if l.match('=') {
			return PLUS_ASSIGN, true
		}
		return PLUS, true
	case '-':
		if l.match('=') {
			return MINUS_ASSIGN, true
		}
		return MINUS, true
	case '*':
		if l.match('=') {
			return MULT_ASSIGN, true
		}
		return MULT, true
	case '/':
		if l.match('=') {
			return DIV_ASSIGN, true
		}
		return DIV, true
	case '%':
		if l.match('=') {
			return MOD_ASSIGN, true
		}
		return MOD, true
	case '=':
		if l.match('=') {
			return EQ, true
		}
		if l.match('>') {
			return ARROW, true
		}
		return ASSIGN, true
	case '!':
		if l.match('=') {
			return NEQ, true
		}
		return ILLEGAL, false
	case '<':
		if l.match('=') {
			return LESS_EQ, true
		}
		return LESS, true
	case '>':
		if l.match('=') {
			return GREATER_EQ, true
		}
		return GREATER, true
	}
	return ILLEGAL, false
}

// ----- main scanner -----

// Scan tokenizes the entire source. The result always ends with NEWLINE (when
// any token was produced) followed by EOF.
func (l *Lexer) Scan() []Token {
	for {
		if l.atLineStart {
			width := l.measureIndent()
			b, ok := l.peek()
			if !ok {
				break
			}
			if b == '\n' {
				l.advance()
				continue
			}
			if b == '/' {
				if b2, _ := l.peekN(1); b2 == '/' {
					l.scanComment()
					continue
				}
			}
			l.atLineStart = false
			if l.depth == 0 {
				l.pendingIndent = width
			}
		}

		ch, ok := l.peek()
		if !ok {
			break
		}

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.advance()
			continue
		case ch == '\n':
			if l.depth == 0 {
				l.addNewline()
			}
			l.advance()
			l.atLineStart = l.depth == 0
			continue
		case ch == '/' && l.src[l.cur:min(l.cur+2, len(l.src))] == "//":
			l.scanComment()
			continue
		}

		l.markStart()

		switch {
		case ch == '"' || ch == '\'':
			text, closed := l.scanString(ch)
			if !closed {
				l.errAt(l.tokStartLine, l.tokStartCol, "string was not terminated")
			}
			l.addToken(STRING, text)
		case isDigit(ch) || (ch == '.' && l.dotStartsNumber()):
			tt, lit := l.scanNumber()
			l.addToken(tt, lit)
		case ch == '#':
			tt, lit := l.scanColor()
			l.addToken(tt, lit)
		case isAlpha(ch):
			for {
				b, ok := l.peek()
				if !ok || !isAlphaNum(b) {
					break
				}
				l.advance()
			}
			word := l.src[l.start:l.cur]
			// after '.', every word is a property name
			if prev := l.previousToken(); prev != nil && prev.Type == PERIOD {
				l.addToken(ID, word)
				break
			}
			if tt, ok := keywords[word]; ok {
				switch tt {
				case BOOLEAN:
					l.addToken(BOOLEAN, word == "true")
				default:
					l.addToken(tt, word)
				}
				break
			}
			l.addToken(ID, word)
		default:
			l.advance()
			if tt, ok := l.scanOperator(ch); ok {
				l.addToken(tt, nil)
				break
			}
			if ch >= utf8.RuneSelf {
				l.cur--
				l.col--
				_, size := utf8.DecodeRuneInString(l.src[l.cur:])
				for i := 0; i < size; i++ {
					l.advance()
				}
			}
			l.errAt(l.tokStartLine, l.tokStartCol, fmt.Sprintf("unexpected character: %q", l.src[l.start:l.cur]))
			l.addToken(ILLEGAL, nil)
		}
	}

	l.addNewline()
	l.tokens = append(l.tokens, Token{Type: EOF, Line: l.line, Col: l.col, Indent: 0})
	return l.tokens
}
