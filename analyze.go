// analyze.go — one-call front-end pipeline for tools.
//
// Analyze runs lex → parse → validate over a source string and keeps every
// intermediate product, so the CLI, the HTTP server, the REPL and the language
// server share one code path and never re-scan a document to answer a query.
//
// Validation runs even when the parse reported errors: the parser's partial
// AST is still worth checking, and editors want semantic diagnostics for the
// parts of a file that did parse.
package pine

import "sort"

// Analysis is the outcome of Analyze.
type Analysis struct {
	Source      string
	Tokens      []Token
	Comments    []Comment
	Program     *Program
	LexErrors   []*LexError
	ParseErrors []*ParseError
	// Diagnostics holds syntax errors (code "syntax") followed by the
	// validator's findings, ordered by position.
	Diagnostics []Diagnostic
	Types       map[Expr]Type
	Symbols     []*Symbol
	// Version is the //@version marker, or the configured version when the
	// source has none.
	Version int

	reg Builtins
}

// Analyze lexes, parses and validates src. opts.Version applies only when
// the source carries no version marker.
func Analyze(src string, opts Options) *Analysis {
	lx := NewLexer(src)
	toks := lx.Scan()
	prog, perrs := Parse(toks)

	a := &Analysis{
		Source:      src,
		Tokens:      toks,
		Comments:    lx.Comments(),
		Program:     prog,
		LexErrors:   lx.Errors(),
		ParseErrors: perrs,
		Version:     lx.Version(),
		reg:         opts.Builtins,
	}
	if a.reg == nil {
		a.reg = DefaultBuiltins()
	}
	if a.Version == 0 {
		a.Version = opts.Version
	}
	if a.Version == 0 {
		a.Version = DefaultLanguageVersion
	}

	for _, e := range a.LexErrors {
		a.Diagnostics = append(a.Diagnostics, syntaxDiagnostic(e.Line, e.Col, e.Msg))
	}
	for _, e := range a.ParseErrors {
		a.Diagnostics = append(a.Diagnostics, syntaxDiagnostic(e.Line, e.Col, e.Msg))
	}

	vopts := opts
	vopts.Version = a.Version
	vopts.Builtins = a.reg
	res := Validate(prog, vopts)
	a.Diagnostics = append(a.Diagnostics, res.Diagnostics...)
	a.Types = res.Types
	a.Symbols = res.Symbols

	sort.SliceStable(a.Diagnostics, func(i, j int) bool {
		x, y := a.Diagnostics[i], a.Diagnostics[j]
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		return x.Col < y.Col
	})
	return a
}

func syntaxDiagnostic(line, col int, msg string) Diagnostic {
	return Diagnostic{Line: line, Col: col, Length: 1, Message: msg, Severity: SeverityError, Code: CodeSyntax}
}

// HasErrors reports whether any diagnostic is an error.
func (a *Analysis) HasErrors() bool {
	for _, d := range a.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (a *Analysis) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range a.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// TokenAt returns the token covering the 1-based position.
func (a *Analysis) TokenAt(line, col int) (Token, bool) {
	for _, t := range a.Tokens {
		if t.Line > line {
			break
		}
		if t.Line == line && t.Type != NEWLINE && t.Type != EOF &&
			col >= t.Col && col < t.Col+len(t.Lexeme) {
			return t, true
		}
	}
	return Token{}, false
}

// HoverInfo describes the name under a source position.
type HoverInfo struct {
	Name   string
	Kind   string // variable, parameter, function, constant, namespace...
	Type   Type
	Detail string // builtin signature or constant type, when known
	Line   int
	Col    int
}

// HoverAt describes the identifier at the 1-based position.
func (a *Analysis) HoverAt(line, col int) (HoverInfo, bool) {
	tok, ok := a.TokenAt(line, col)
	if !ok || (tok.Type != ID && tok.Type != TYPE) {
		return HoverInfo{}, false
	}
	at := posOf(tok)

	for _, sym := range a.Symbols {
		if sym.Line == at.Line && sym.Col == at.Col && sym.Name == tok.Lexeme {
			return HoverInfo{Name: sym.Name, Kind: sym.Origin.String(), Type: sym.Type, Line: at.Line, Col: at.Col}, true
		}
	}
	if a.Program == nil {
		return HoverInfo{}, false
	}

	var (
		found bool
		info  HoverInfo
	)
	visit := func(n Node) bool {
		if found {
			return false
		}
		var name string
		var typed Expr
		switch x := n.(type) {
		case *CallExpr:
			if calleeAt(x.Callee, at) {
				name, typed = DottedName(x.Callee), x
			}
		case *MemberExpr:
			if x.PropPos == at {
				name, typed = DottedName(x), x
			}
		case *Ident:
			if x.Pos == at {
				name, typed = x.Name, x
			}
		}
		if name == "" && typed == nil {
			return true
		}
		found = true
		info = HoverInfo{Name: name, Line: at.Line, Col: at.Col, Type: TUnknown}
		if t, ok := a.Types[typed]; ok {
			info.Type = t
		}
		if name != "" {
			if kind, detail, ok := Describe(a.reg, name); ok {
				info.Kind, info.Detail = kind, detail
			}
		}
		if info.Kind == "" {
			info.Kind = "expression"
			for _, sym := range a.Symbols {
				if sym.Name == name && sym.Line <= at.Line {
					info.Kind = sym.Origin.String()
				}
			}
		}
		return false
	}
	for _, s := range a.Program.Stmts {
		Walk(s, visit)
		if found {
			return info, true
		}
	}
	return HoverInfo{}, false
}

func calleeAt(callee Expr, at Pos) bool {
	switch c := callee.(type) {
	case *Ident:
		return c.Pos == at
	case *MemberExpr:
		return c.PropPos == at
	}
	return false
}

// Format renders the analyzed program with its comments. It returns false
// when the source has syntax errors.
func (a *Analysis) Format(indent int) (string, bool) {
	if len(a.LexErrors) > 0 || len(a.ParseErrors) > 0 {
		return "", false
	}
	return formatProgram(a.Program, a.Comments, indent, a.Source), true
}
