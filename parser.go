// parser.go — indentation-sensitive recursive-descent parser.
//
// OVERVIEW
// --------
// The parser walks the token stream from lexer.go with a cursor and builds the
// typed AST from ast.go. There is no formal grammar; ambiguous statement forms
// are resolved by trying candidate productions in a fixed order:
//
//  1. keyword-led forms (import, export, method, if, for, while, return,
//     break, continue, type, enum)
//  2. qualified declarations:    var|varip|const [type] name [= expr]
//  3. typed declarations:        type name = expr [, [type] name = expr]...
//  4. function declarations:     name(params) => body
//  5. tuple destructuring:       [a, b] = expr
//  6. plain declarations:        name = expr [, name = expr]...
//  7. assignments:               target (:=|=|+=|-=|*=|/=|%=) expr
//  8. expression statements
//
// Speculative productions (3, 4, 5, generic call arguments, switch
// discriminants) are written as try* functions returning ok=false after
// restoring the cursor to the checkpoint they started from. Errors are plain
// *ParseError values; nothing panics.
//
// Blocks
// ------
// A block belongs to the line that introduced it (the "owner"). The first
// token of the block fixes its reference indent, which must be deeper than the
// owner's. Statements are consumed while each new line starts at or beyond the
// reference indent. A body written on the same line as "=>" is a one-line body;
// a bare expression there is wrapped in a synthetic ReturnStmt.
//
// Recovery
// --------
// When a statement fails, the error is recorded and the parser discards tokens
// up to the next NEWLINE (or a statement keyword starting a line) and resumes.
// Parse therefore always returns a best-effort Program plus every error.
package pine

import (
	"fmt"
	"strings"
)

// ParseError is a recoverable syntax error.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse builds a Program from tokens produced by Tokenize. It never fails:
// syntax errors are returned alongside the partial AST.
func Parse(tokens []Token) (*Program, []*ParseError) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		line := 1
		if len(tokens) > 0 {
			line = tokens[len(tokens)-1].Line
		}
		tokens = append(append([]Token(nil), tokens...), Token{Type: EOF, Line: line, Col: 1})
	}
	p := newParser(tokens)
	prog := p.program()
	return prog, p.errs
}

//// END_OF_PUBLIC

type parser struct {
	toks       []Token
	i          int
	lineIndent []int // indent of the logical line each token belongs to
	errs       []*ParseError
}

func newParser(toks []Token) *parser {
	p := &parser{toks: toks, lineIndent: make([]int, len(toks))}
	cur := 0
	for i, t := range toks {
		if t.LineStart() {
			cur = t.Indent
		}
		p.lineIndent[i] = cur
	}
	return p
}

// ─────────────────────────── token basics & helpers ─────────────────────────

func (p *parser) atEnd() bool { return p.peek().Type == EOF }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) advance() Token {
	t := p.peek()
	if !p.atEnd() {
		p.i++
	}
	return t
}

func (p *parser) check(tt ...TokenType) bool {
	cur := p.peek().Type
	for _, t := range tt {
		if cur == t {
			return true
		}
	}
	return false
}

func (p *parser) match(tt ...TokenType) bool {
	if p.check(tt...) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) need(t TokenType, msg string) (Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return Token{}, p.errAt(p.peek(), msg)
}

func (p *parser) errAt(t Token, msg string) *ParseError {
	return &ParseError{Line: t.Line, Col: t.Col, Msg: msg}
}

func (p *parser) unexpected(t Token) *ParseError {
	switch t.Type {
	case EOF:
		return p.errAt(t, "unexpected end of input")
	case NEWLINE:
		return p.errAt(t, "unexpected end of line")
	}
	return p.errAt(t, fmt.Sprintf("unexpected token %q", t.Lexeme))
}

func posOf(t Token) Pos { return Pos{Line: t.Line, Col: t.Col} }

func (p *parser) skipNewlines() {
	for p.check(NEWLINE) {
		p.i++
	}
}

// continueWith reports whether the expression may continue with one of tt,
// consuming NEWLINE tokens only when the token after them is one of tt.
func (p *parser) continueWith(tt ...TokenType) bool {
	if p.check(tt...) {
		return true
	}
	if !p.check(NEWLINE) {
		return false
	}
	j := p.i
	for j < len(p.toks) && p.toks[j].Type == NEWLINE {
		j++
	}
	if j >= len(p.toks) {
		return false
	}
	for _, t := range tt {
		if p.toks[j].Type == t {
			p.i = j
			return true
		}
	}
	return false
}

// isNameTok reports whether t may serve as a parameter or argument name.
// Type keywords are accepted: "color" and "series" are common parameter names.
func isNameTok(t Token) bool {
	return t.Type == ID || t.Type == TYPE
}

func isStatementKeyword(tt TokenType) bool {
	switch tt {
	case IF, FOR, WHILE, VAR, VARIP, CONST, IMPORT, EXPORT, METHOD, TYPECONS, ENUM, RETURN, BREAK, CONTINUE, SWITCH:
		return true
	}
	return false
}

// endOfStatement requires the statement to end here.
func (p *parser) endOfStatement() error {
	if p.match(NEWLINE) || p.atEnd() {
		return nil
	}
	// block-bearing expressions (switch) already consumed their trailing newline
	if p.i > 0 && p.toks[p.i-1].Type == NEWLINE {
		return nil
	}
	return p.unexpected(p.peek())
}

// synchronize discards tokens up to the next statement boundary.
func (p *parser) synchronize(start int) {
	for !p.atEnd() {
		t := p.peek()
		if t.Type == NEWLINE {
			p.i++
			return
		}
		if p.i > start && t.LineStart() && isStatementKeyword(t.Type) {
			return
		}
		p.i++
	}
}

// ───────────────────────── program / blocks ────────────────────────────

func (p *parser) program() *Program {
	prog := &Program{}
	for {
		p.skipNewlines()
		if p.atEnd() {
			return prog
		}
		if s := p.statementRecover(); s != nil {
			prog.Stmts = append(prog.Stmts, s)
		}
	}
}

func (p *parser) statementRecover() Stmt {
	start := p.i
	s, err := p.statement()
	if err != nil {
		p.errs = append(p.errs, err.(*ParseError))
		p.synchronize(start)
		if p.i == start && !p.atEnd() {
			p.i++
		}
		return nil
	}
	return s
}

// block parses an indented block owned by a line with indent owner. The
// cursor must be on the NEWLINE that ends the owner's header.
func (p *parser) block(owner int) ([]Stmt, error) {
	nl := p.i
	if !p.match(NEWLINE) {
		return nil, p.unexpected(p.peek())
	}
	p.skipNewlines()
	first := p.peek()
	if first.Type == EOF || !first.LineStart() || first.Indent <= owner {
		p.i = nl
		return nil, p.errAt(first, "expected an indented block")
	}
	ref := first.Indent
	var out []Stmt
	for {
		p.skipNewlines()
		t := p.peek()
		if t.Type == EOF || (t.LineStart() && t.Indent < ref) {
			return out, nil
		}
		if s := p.statementRecover(); s != nil {
			out = append(out, s)
		}
	}
}

// ───────────────────────────── statements ──────────────────────────────

func (p *parser) statement() (Stmt, error) {
	t := p.peek()
	switch t.Type {
	case IMPORT:
		return p.importStmt()
	case EXPORT:
		return p.exportStmt()
	case METHOD:
		return p.methodDecl(false)
	case IF:
		return p.ifStmt()
	case FOR:
		return p.forStmt()
	case WHILE:
		return p.whileStmt()
	case RETURN:
		p.advance()
		ret := &ReturnStmt{Pos: posOf(t)}
		if !p.check(NEWLINE, EOF) {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			ret.Value = v
		}
		return ret, p.endOfStatement()
	case BREAK:
		p.advance()
		return &BreakStmt{Pos: posOf(t)}, p.endOfStatement()
	case CONTINUE:
		p.advance()
		return &ContinueStmt{Pos: posOf(t)}, p.endOfStatement()
	case TYPECONS, ENUM:
		return p.typeDecl(false)
	case ELSE:
		return nil, p.errAt(t, "'else' without a matching 'if'")
	case ID:
		fn, ok, err := p.tryFuncDecl()
		if err != nil {
			return nil, err
		}
		if ok {
			return fn, nil
		}
	}
	return p.simpleChain()
}

// simpleChain parses one or more comma-joined simple statements and the end
// of the line. A single statement is returned as is.
func (p *parser) simpleChain() (Stmt, error) {
	first, err := p.simpleStatement(nil)
	if err != nil {
		return nil, err
	}
	stmts := []Stmt{first}
	prev := first
	for p.match(COMMA) {
		var inherit *TypeRef
		if d, ok := prev.(*VarDecl); ok {
			inherit = d.Type
		}
		s, err := p.simpleStatement(inherit)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		prev = s
	}
	if err := p.endOfStatement(); err != nil {
		return nil, err
	}
	if len(stmts) == 1 {
		return first, nil
	}
	return &SequenceStmt{Pos: first.Position(), Stmts: stmts}, nil
}

// simpleStatement parses a declaration, assignment or expression that fits
// on one logical line. inherit is the type of the previous entry of a comma
// chain, used by entries written without their own type.
func (p *parser) simpleStatement(inherit *TypeRef) (Stmt, error) {
	t := p.peek()
	switch t.Type {
	case VAR, VARIP, CONST:
		return p.qualifiedDecl()
	case TYPE:
		if d, ok := p.tryTypedDecl(); ok {
			return d, nil
		}
	case ID:
		next := p.peekAt(1)
		if next.Type == ID || next.Type == PERIOD || next.Type == LESS {
			if d, ok := p.tryTypedDecl(); ok {
				return d, nil
			}
		}
		if next.Type == ASSIGN {
			p.advance()
			p.advance()
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			d := &VarDecl{Pos: posOf(t), Name: t.Lexeme, NamePos: posOf(t), Value: v}
			if inherit != nil {
				d.Type = inherit
				d.Inherited = true
			}
			return d, nil
		}
	case LSQUARE:
		if d, ok := p.tryTupleDecl(); ok {
			return d, nil
		}
	}
	return p.assignOrExpr()
}

func assignOp(tt TokenType) (string, bool) {
	switch tt {
	case ASSIGN:
		return "=", true
	case DEFINE:
		return ":=", true
	case PLUS_ASSIGN:
		return "+=", true
	case MINUS_ASSIGN:
		return "-=", true
	case MULT_ASSIGN:
		return "*=", true
	case DIV_ASSIGN:
		return "/=", true
	case MOD_ASSIGN:
		return "%=", true
	}
	return "", false
}

func (p *parser) assignOrExpr() (Stmt, error) {
	start := p.peek()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOp(p.peek().Type); ok {
		p.advance()
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Pos: posOf(start), Target: e, Op: op, Value: v}, nil
	}
	return &ExprStmt{Pos: posOf(start), X: e}, nil
}

func (p *parser) qualifiedDecl() (Stmt, error) {
	q := p.advance()
	d := &VarDecl{Pos: posOf(q), Qualifier: q.Lexeme}

	if p.check(TYPE, ID) {
		mark := p.i
		tr, err := p.typeRef()
		if err == nil && p.check(ID) && p.peekAt(1).Type != PERIOD && p.peekAt(1).Type != LROUND {
			d.Type = tr
		} else {
			p.i = mark
		}
	}
	name, err := p.need(ID, fmt.Sprintf("expected variable name after '%s'", q.Lexeme))
	if err != nil {
		return nil, err
	}
	d.Name, d.NamePos = name.Lexeme, posOf(name)
	if p.match(ASSIGN) {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		d.Value = v
	}
	return d, nil
}

// tryTypedDecl parses "type name = value" or restores the cursor.
func (p *parser) tryTypedDecl() (*VarDecl, bool) {
	mark := p.i
	start := p.peek()
	tr, err := p.typeRef()
	if err != nil || !p.check(ID) || p.peekAt(1).Type != ASSIGN {
		p.i = mark
		return nil, false
	}
	name := p.advance()
	p.advance() // '='
	v, err := p.expression()
	if err != nil {
		p.i = mark
		return nil, false
	}
	return &VarDecl{Pos: posOf(start), Type: tr, Name: name.Lexeme, NamePos: posOf(name), Value: v}, true
}

// tryTupleDecl parses "[a, b] = value" or restores the cursor.
func (p *parser) tryTupleDecl() (*TupleDecl, bool) {
	mark := p.i
	open := p.advance()
	d := &TupleDecl{Pos: posOf(open)}
	for {
		if !p.check(ID) {
			p.i = mark
			return nil, false
		}
		n := p.advance()
		d.Names = append(d.Names, n.Lexeme)
		d.NamePoss = append(d.NamePoss, posOf(n))
		if p.match(COMMA) {
			continue
		}
		break
	}
	if !p.match(RSQUARE) || !p.match(ASSIGN) {
		p.i = mark
		return nil, false
	}
	v, err := p.expression()
	if err != nil {
		p.i = mark
		return nil, false
	}
	d.Value = v
	return d, true
}

// typeRef parses [series|simple|const] name[.name]*[<T, ...>][[]].
func (p *parser) typeRef() (*TypeRef, error) {
	t := p.peek()
	tr := &TypeRef{Pos: posOf(t)}
	if t.Type == CONST || (t.Type == TYPE && (t.Lexeme == "series" || t.Lexeme == "simple")) {
		tr.Qualifier = t.Lexeme
		p.advance()
	}
	base := p.peek()
	if base.Type != ID && base.Type != TYPE {
		return nil, p.errAt(base, "expected type name")
	}
	if base.Lexeme == "series" || base.Lexeme == "simple" {
		return nil, p.errAt(base, "duplicate type qualifier")
	}
	p.advance()
	name := base.Lexeme
	for p.check(PERIOD) && p.peekAt(1).Type == ID {
		p.advance()
		name += "." + p.advance().Lexeme
	}
	tr.Name = name
	if p.check(LESS) {
		p.advance()
		for {
			arg, err := p.typeRef()
			if err != nil {
				return nil, err
			}
			tr.Args = append(tr.Args, arg)
			if !p.match(COMMA) {
				break
			}
		}
		if _, err := p.need(GREATER, "expected '>' to close type arguments"); err != nil {
			return nil, err
		}
	}
	if p.check(LSQUARE) && p.peekAt(1).Type == RSQUARE {
		p.advance()
		p.advance()
		tr.ArraySfx = true
	}
	return tr, nil
}

// tryFuncDecl parses "name(params) => body". ok is false (cursor restored)
// when the tokens are not a function declaration; err is set only once the
// "=>" has been seen.
func (p *parser) tryFuncDecl() (*FuncDecl, bool, error) {
	mark := p.i
	name := p.peek()
	if name.Type != ID || p.peekAt(1).Type != LROUND {
		return nil, false, nil
	}
	p.advance()
	p.advance()
	params, err := p.params()
	if err != nil || !p.check(ARROW) {
		p.i = mark
		return nil, false, nil
	}
	fn := &FuncDecl{Pos: posOf(name), Name: name.Lexeme, NamePos: posOf(name), Params: params}
	if err := p.funcBody(fn, mark); err != nil {
		return nil, true, err
	}
	return fn, true, nil
}

// params parses a parameter list; the cursor is after '('.
func (p *parser) params() ([]*Param, error) {
	var out []*Param
	if p.match(RROUND) {
		return out, nil
	}
	for {
		prm, err := p.param()
		if err != nil {
			return nil, err
		}
		out = append(out, prm)
		if p.match(COMMA) {
			continue
		}
		if _, err := p.need(RROUND, "expected ',' or ')' in parameter list"); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (p *parser) param() (*Param, error) {
	start := p.peek()
	prm := &Param{Pos: posOf(start)}

	mark := p.i
	if tr, err := p.typeRef(); err == nil && isNameTok(p.peek()) {
		switch p.peekAt(1).Type {
		case COMMA, RROUND, ASSIGN:
			prm.Type = tr
		default:
			p.i = mark
		}
	} else {
		p.i = mark
	}

	name := p.peek()
	if !isNameTok(name) {
		return nil, p.errAt(name, "expected parameter name")
	}
	p.advance()
	prm.Name = name.Lexeme
	if prm.Type == nil {
		prm.Pos = posOf(name)
	}
	if p.match(ASSIGN) {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		prm.Default = v
	}
	return prm, nil
}

// funcBody parses "=> body". ownerTok is the index of the declaration's
// first token.
func (p *parser) funcBody(fn *FuncDecl, ownerTok int) error {
	if _, err := p.need(ARROW, "expected '=>'"); err != nil {
		return err
	}
	if p.check(NEWLINE) {
		body, err := p.block(p.lineIndent[ownerTok])
		if err != nil {
			return err
		}
		fn.Body = body
		return nil
	}
	s, err := p.simpleChain()
	if err != nil {
		return err
	}
	fn.OneLine = true
	if es, ok := s.(*ExprStmt); ok {
		s = &ReturnStmt{Pos: es.Pos, Value: es.X, Synthetic: true}
	}
	fn.Body = []Stmt{s}
	return nil
}

func (p *parser) methodDecl(export bool) (Stmt, error) {
	owner := p.i
	if export {
		owner--
	}
	m := p.advance()
	fn, ok, err := p.tryFuncDecl()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, p.errAt(p.peek(), "expected method declaration after 'method'")
	}
	fn.Pos = posOf(m)
	if export {
		fn.Pos = posOf(p.toks[owner])
	}
	fn.Method = true
	fn.Export = export
	return fn, nil
}

func (p *parser) exportStmt() (Stmt, error) {
	ex := p.advance()
	switch p.peek().Type {
	case TYPECONS, ENUM:
		d, err := p.typeDecl(true)
		if err != nil {
			return nil, err
		}
		d.(*TypeDecl).Pos = posOf(ex)
		return d, nil
	case METHOD:
		return p.methodDecl(true)
	case ID:
		fn, ok, err := p.tryFuncDecl()
		if err != nil {
			return nil, err
		}
		if ok {
			fn.Pos = posOf(ex)
			fn.Export = true
			return fn, nil
		}
	}
	return nil, p.errAt(p.peek(), "expected function, method, type or enum declaration after 'export'")
}

func (p *parser) importStmt() (Stmt, error) {
	imp := p.advance()
	st := &ImportStmt{Pos: posOf(imp)}
	var path strings.Builder
	for !p.check(NEWLINE, EOF) {
		t := p.advance()
		if t.Type == ID && t.Lexeme == "as" {
			alias, err := p.need(ID, "expected alias after 'as'")
			if err != nil {
				return nil, err
			}
			st.Alias = alias.Lexeme
			break
		}
		path.WriteString(t.Lexeme)
	}
	st.Path = path.String()
	if st.Path == "" {
		return nil, p.errAt(imp, "expected library path after 'import'")
	}
	if st.Alias == "" {
		parts := strings.Split(st.Path, "/")
		if len(parts) >= 2 {
			st.Alias = parts[1]
		}
	}
	return st, p.endOfStatement()
}

// typeDecl parses "type Name" / "enum Name" and its indented field lines.
func (p *parser) typeDecl(export bool) (Stmt, error) {
	kwIdx := p.i
	kw := p.advance()
	name, err := p.need(ID, fmt.Sprintf("expected name after '%s'", kw.Lexeme))
	if err != nil {
		return nil, err
	}
	d := &TypeDecl{Pos: posOf(kw), Name: name.Lexeme, NamePos: posOf(name), Enum: kw.Type == ENUM, Export: export}
	if !p.check(NEWLINE, EOF) {
		return nil, p.unexpected(p.peek())
	}

	owner := p.lineIndent[kwIdx]
	mark := p.i
	p.skipNewlines()
	first := p.peek()
	if first.Type == EOF || !first.LineStart() || first.Indent <= owner {
		p.i = mark
		return d, p.endOfStatement()
	}
	ref := first.Indent
	for {
		p.skipNewlines()
		t := p.peek()
		if t.Type == EOF || (t.LineStart() && t.Indent < ref) {
			return d, nil
		}
		start := p.i
		f, err := p.field(d.Enum)
		if err != nil {
			p.errs = append(p.errs, err.(*ParseError))
			p.synchronize(start)
			continue
		}
		d.Fields = append(d.Fields, f)
	}
}

// field parses "[type] name [= default]"; enum fields carry no type.
func (p *parser) field(enum bool) (*Field, error) {
	f := &Field{Pos: posOf(p.peek())}
	if !enum {
		tr, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		f.Type = tr
	}
	name := p.peek()
	if !isNameTok(name) {
		return nil, p.errAt(name, "expected field name")
	}
	p.advance()
	f.Name = name.Lexeme
	if p.match(ASSIGN) {
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		f.Default = v
	}
	return f, p.endOfStatement()
}

func (p *parser) ifStmt() (Stmt, error) {
	ifIdx := p.i
	ifTok := p.advance()
	owner := p.lineIndent[ifIdx]
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.check(NEWLINE) {
		return nil, p.errAt(p.peek(), "expected end of line after 'if' condition")
	}
	then, err := p.block(owner)
	if err != nil {
		return nil, err
	}
	st := &IfStmt{Pos: posOf(ifTok), Cond: cond, Then: then}

	mark := p.i
	p.skipNewlines()
	if e := p.peek(); e.Type == ELSE && e.LineStart() && e.Indent == owner {
		p.advance()
		if p.check(IF) {
			nested, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			st.Else = []Stmt{nested}
			return st, nil
		}
		if !p.check(NEWLINE) {
			return nil, p.errAt(p.peek(), "expected end of line after 'else'")
		}
		els, err := p.block(owner)
		if err != nil {
			return nil, err
		}
		st.Else = els
		return st, nil
	}
	p.i = mark
	return st, nil
}

func (p *parser) forStmt() (Stmt, error) {
	forIdx := p.i
	forTok := p.advance()
	owner := p.lineIndent[forIdx]

	var body []Stmt
	parseBody := func() error {
		if !p.check(NEWLINE) {
			return p.errAt(p.peek(), "expected end of line after 'for' header")
		}
		b, err := p.block(owner)
		body = b
		return err
	}

	if p.check(LSQUARE) {
		st := &ForInStmt{Pos: posOf(forTok)}
		p.advance()
		for {
			n, err := p.need(ID, "expected loop variable")
			if err != nil {
				return nil, err
			}
			st.Vars = append(st.Vars, n.Lexeme)
			st.VarPoss = append(st.VarPoss, posOf(n))
			if !p.match(COMMA) {
				break
			}
		}
		if _, err := p.need(RSQUARE, "expected ']' after loop variables"); err != nil {
			return nil, err
		}
		if _, err := p.need(IN, "expected 'in'"); err != nil {
			return nil, err
		}
		it, err := p.expression()
		if err != nil {
			return nil, err
		}
		st.Iterable = it
		if err := parseBody(); err != nil {
			return nil, err
		}
		st.Body = body
		return st, nil
	}

	v, err := p.need(ID, "expected loop variable after 'for'")
	if err != nil {
		return nil, err
	}
	if p.match(IN) {
		it, err := p.expression()
		if err != nil {
			return nil, err
		}
		st := &ForInStmt{Pos: posOf(forTok), Vars: []string{v.Lexeme}, VarPoss: []Pos{posOf(v)}, Iterable: it}
		if err := parseBody(); err != nil {
			return nil, err
		}
		st.Body = body
		return st, nil
	}

	st := &ForStmt{Pos: posOf(forTok), Var: v.Lexeme, VarPos: posOf(v)}
	if _, err := p.need(ASSIGN, "expected '=' or 'in' after loop variable"); err != nil {
		return nil, err
	}
	if st.From, err = p.expression(); err != nil {
		return nil, err
	}
	if _, err := p.need(TO, "expected 'to' in for loop"); err != nil {
		return nil, err
	}
	if st.To, err = p.expression(); err != nil {
		return nil, err
	}
	if p.match(BY) {
		if st.Step, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := parseBody(); err != nil {
		return nil, err
	}
	st.Body = body
	return st, nil
}

func (p *parser) whileStmt() (Stmt, error) {
	wIdx := p.i
	w := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.check(NEWLINE) {
		return nil, p.errAt(p.peek(), "expected end of line after 'while' condition")
	}
	body, err := p.block(p.lineIndent[wIdx])
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Pos: posOf(w), Cond: cond, Body: body}, nil
}

// ───────────────────────────── expressions ─────────────────────────────

func (p *parser) expression() (Expr, error) { return p.ternary() }

func (p *parser) ternary() (Expr, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.continueWith(QUESTION) {
		return cond, nil
	}
	p.advance()
	p.skipNewlines()
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if !p.continueWith(COLON) {
		return nil, p.errAt(p.peek(), "expected ':' in ternary expression")
	}
	p.advance()
	p.skipNewlines()
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Pos: cond.Position(), Cond: cond, Then: then, Else: els}, nil
}

// binaryLevel parses left-associative operators of one precedence level.
func (p *parser) binaryLevel(next func() (Expr, error), ops ...TokenType) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.continueWith(ops...) {
		op := p.advance()
		p.skipNewlines()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: left.Position(), Op: op.Lexeme, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) or() (Expr, error) { return p.binaryLevel(p.and, OR) }

func (p *parser) and() (Expr, error) { return p.binaryLevel(p.comparison, AND) }

func (p *parser) comparison() (Expr, error) {
	return p.binaryLevel(p.additive, EQ, NEQ, LESS, LESS_EQ, GREATER, GREATER_EQ)
}

func (p *parser) additive() (Expr, error) { return p.binaryLevel(p.multiplicative, PLUS, MINUS) }

func (p *parser) multiplicative() (Expr, error) { return p.binaryLevel(p.unary, MULT, DIV, MOD) }

func (p *parser) unary() (Expr, error) {
	if p.check(MINUS, PLUS, NOT) {
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: posOf(op), Op: op.Lexeme, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(LROUND):
			call, err := p.callArgs(e, nil)
			if err != nil {
				return nil, err
			}
			e = call
		case p.continueWith(PERIOD):
			p.advance()
			prop := p.peek()
			if prop.Type != ID && prop.Type != TYPE {
				return nil, p.errAt(prop, "expected property name after '.'")
			}
			p.advance()
			e = &MemberExpr{Pos: e.Position(), Object: e, Property: prop.Lexeme, PropPos: posOf(prop)}
		case p.check(LSQUARE):
			p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RSQUARE, "expected ']' after index"); err != nil {
				return nil, err
			}
			e = &IndexExpr{Pos: e.Position(), Object: e, Index: idx}
		case p.check(LESS):
			args, ok := p.tryTypeArgs()
			if !ok {
				return e, nil
			}
			call, err := p.callArgs(e, args)
			if err != nil {
				return nil, err
			}
			e = call
		default:
			return e, nil
		}
	}
}

// tryTypeArgs parses "<T, ...>" immediately followed by "(" or restores.
func (p *parser) tryTypeArgs() ([]*TypeRef, bool) {
	mark := p.i
	p.advance() // '<'
	var args []*TypeRef
	for {
		tr, err := p.typeRef()
		if err != nil {
			p.i = mark
			return nil, false
		}
		args = append(args, tr)
		if !p.match(COMMA) {
			break
		}
	}
	if !p.match(GREATER) || !p.check(LROUND) {
		p.i = mark
		return nil, false
	}
	return args, true
}

func (p *parser) callArgs(callee Expr, typeArgs []*TypeRef) (Expr, error) {
	p.advance() // '('
	call := &CallExpr{Pos: callee.Position(), Callee: callee, TypeArgs: typeArgs}
	if p.match(RROUND) {
		return call, nil
	}
	for {
		arg := &Arg{}
		if t := p.peek(); isNameTok(t) && p.peekAt(1).Type == ASSIGN {
			arg.Name, arg.NamePos = t.Lexeme, posOf(t)
			p.advance()
			p.advance()
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		arg.Value = v
		call.Args = append(call.Args, arg)
		if p.match(COMMA) {
			continue
		}
		if _, err := p.need(RROUND, "expected ',' or ')' in argument list"); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func (p *parser) primary() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case INTEGER:
		p.advance()
		return &Literal{Pos: posOf(t), Kind: LitInt, Value: t.Literal, Raw: t.Lexeme}, nil
	case NUMBER:
		p.advance()
		return &Literal{Pos: posOf(t), Kind: LitFloat, Value: t.Literal, Raw: t.Lexeme}, nil
	case STRING:
		p.advance()
		return &Literal{Pos: posOf(t), Kind: LitString, Value: t.Literal, Raw: t.Lexeme}, nil
	case COLOR:
		p.advance()
		return &Literal{Pos: posOf(t), Kind: LitColor, Value: t.Literal, Raw: t.Lexeme}, nil
	case BOOLEAN:
		p.advance()
		return &Literal{Pos: posOf(t), Kind: LitBool, Value: t.Literal, Raw: t.Lexeme}, nil
	case NA:
		p.advance()
		if p.check(LROUND) {
			return &Ident{Pos: posOf(t), Name: "na"}, nil
		}
		return &Literal{Pos: posOf(t), Kind: LitNA, Raw: "na"}, nil
	case ID, TYPE:
		p.advance()
		return &Ident{Pos: posOf(t), Name: t.Lexeme}, nil
	case LROUND:
		p.advance()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RROUND, "expected ')'"); err != nil {
			return nil, err
		}
		return e, nil
	case LSQUARE:
		p.advance()
		arr := &ArrayLit{Pos: posOf(t)}
		if p.match(RSQUARE) {
			return arr, nil
		}
		for {
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, e)
			if p.match(COMMA) {
				continue
			}
			if _, err := p.need(RSQUARE, "expected ',' or ']' in array literal"); err != nil {
				return nil, err
			}
			return arr, nil
		}
	case SWITCH:
		return p.switchExpr()
	case IF:
		return nil, p.errAt(t, "'if' cannot be used as an expression here")
	}
	return nil, p.unexpected(t)
}

// switchExpr parses a switch and its indentation-delimited cases.
func (p *parser) switchExpr() (Expr, error) {
	swIdx := p.i
	sw := p.advance()
	owner := p.lineIndent[swIdx]
	st := &SwitchExpr{Pos: posOf(sw)}

	if !p.check(NEWLINE, EOF) {
		mark := p.i
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if p.prev().Line == sw.Line {
			st.Discriminant = e
		} else {
			// overran into the case lines
			p.i = mark
			for !p.check(NEWLINE, EOF) {
				p.advance()
			}
		}
	}
	if !p.check(NEWLINE) {
		return nil, p.errAt(p.peek(), "expected end of line after 'switch'")
	}
	nl := p.i
	p.skipNewlines()
	first := p.peek()
	if first.Type == EOF || !first.LineStart() || first.Indent <= owner {
		p.i = nl
		return nil, p.errAt(first, "expected indented switch cases")
	}
	ref := first.Indent
	for {
		p.skipNewlines()
		t := p.peek()
		if t.Type == EOF || (t.LineStart() && t.Indent < ref) {
			return st, nil
		}
		start := p.i
		c, err := p.switchCase(ref)
		if err != nil {
			p.errs = append(p.errs, err.(*ParseError))
			p.synchronize(start)
			continue
		}
		st.Cases = append(st.Cases, c)
	}
}

func (p *parser) switchCase(ref int) (*SwitchCase, error) {
	start := p.peek()
	c := &SwitchCase{Pos: posOf(start)}
	if !p.check(ARROW) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		c.Cond = cond
	}
	if _, err := p.need(ARROW, "expected '=>' in switch case"); err != nil {
		return nil, err
	}
	if p.check(NEWLINE) {
		body, err := p.block(ref)
		if err != nil {
			return nil, err
		}
		c.Body, c.Block = body, true
		c.Result = lastValue(body)
		return c, nil
	}
	s, err := p.simpleChain()
	if err != nil {
		return nil, err
	}
	c.Body = []Stmt{s}
	c.Result = lastValue(c.Body)
	return c, nil
}

// lastValue returns the value expression of the final statement of a body.
func lastValue(body []Stmt) Expr {
	if len(body) == 0 {
		return nil
	}
	switch s := body[len(body)-1].(type) {
	case *ExprStmt:
		return s.X
	case *ReturnStmt:
		return s.Value
	case *VarDecl:
		return s.Value
	case *AssignStmt:
		return s.Value
	case *TupleDecl:
		return s.Value
	case *SequenceStmt:
		return lastValue(s.Stmts)
	}
	return nil
}
