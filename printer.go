// printer.go — canonical source formatter.
//
// Format re-prints a parsed Program in one layout: blocks indented by a fixed
// width, single spaces around binary operators, no spaces inside brackets,
// named arguments written name=value, at most one blank line between
// statements. Comments collected by the lexer are put back: a comment that
// shared a line with code stays at the end of that line, every other comment
// is printed on its own line before the statement that followed it.
//
// Expressions that spanned several lines inside parentheses are joined onto
// one line. Parentheses are emitted only where precedence needs them.
//
// Formatting its own output changes nothing.
package pine

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultIndent is the formatter's block indent width.
const DefaultIndent = 4

// FormatSource parses src and formats it. Sources with lexical or syntax
// errors are not formatted; the first error is returned with a snippet.
func FormatSource(src string, indent int) (string, error) {
	lx := NewLexer(src)
	toks := lx.Scan()
	if errs := lx.Errors(); len(errs) > 0 {
		return "", WrapErrorWithSource(errs[0], src)
	}
	prog, perrs := Parse(toks)
	if len(perrs) > 0 {
		return "", WrapErrorWithSource(perrs[0], src)
	}
	if prog == nil {
		return "", errors.New("format: nothing to format")
	}
	return formatProgram(prog, lx.Comments(), indent, src), nil
}

// Format prints prog with the given comments. indent < 1 selects
// DefaultIndent. Without the source text, blank lines are guessed from the
// gaps between statement positions.
func Format(prog *Program, comments []Comment, indent int) string {
	return formatProgram(prog, comments, indent, "")
}

func formatProgram(prog *Program, comments []Comment, indent int, src string) string {
	if indent < 1 {
		indent = DefaultIndent
	}
	var b strings.Builder
	p := &pp{out: out{b: &b, unit: strings.Repeat(" ", indent)}, comments: comments, blockStart: true}
	if src != "" {
		p.blank = blankLines(src)
	}
	if prog != nil {
		p.stmts(prog.Stmts)
	}
	p.flush(int(^uint(0) >> 1))

	lines := strings.Split(b.String(), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	res := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if res == "" {
		return ""
	}
	return res + "\n"
}

/* ---------- small writer with indentation ---------- */

type out struct {
	b     *strings.Builder
	unit  string
	depth int
}

func (o *out) write(s string) { o.b.WriteString(s) }
func (o *out) nl()            { o.b.WriteByte('\n') }
func (o *out) pad() {
	for i := 0; i < o.depth; i++ {
		o.b.WriteString(o.unit)
	}
}
func (o *out) line(s string)        { o.pad(); o.b.WriteString(s) }
func (o *out) withIndent(fn func()) { o.depth++; fn(); o.depth-- }

// endLine terminates the current line unless it already is.
func (o *out) endLine() {
	s := o.b.String()
	if len(s) > 0 && s[len(s)-1] != '\n' {
		o.nl()
	}
}

/* ---------- statements ---------- */

type pp struct {
	out        out
	comments   []Comment
	ci         int  // next unprinted comment
	last       int  // last source line accounted for
	blockStart bool // nothing printed yet in the current block
	blank      map[int]bool
}

// blankLines lists the 1-based lines of src holding only whitespace.
func blankLines(src string) map[int]bool {
	m := make(map[int]bool)
	for i, ln := range strings.Split(src, "\n") {
		if strings.TrimSpace(ln) == "" {
			m[i+1] = true
		}
	}
	return m
}

// gap inserts one blank line when the source had blank lines before line.
func (p *pp) gap(line int) {
	if p.last > 0 && line > p.last+1 && !p.blockStart && p.blankBetween(p.last, line) {
		p.out.nl()
	}
	p.blockStart = false
	if line > p.last {
		p.last = line
	}
}

func (p *pp) blankBetween(from, to int) bool {
	if p.blank == nil {
		return true
	}
	for l := from + 1; l < to; l++ {
		if p.blank[l] {
			return true
		}
	}
	return false
}

// flush prints, on their own lines, the comments that precede line.
func (p *pp) flush(line int) {
	for p.ci < len(p.comments) && p.comments[p.ci].Line < line {
		c := p.comments[p.ci]
		p.ci++
		p.gap(c.Line)
		p.out.line(commentText(c))
		p.out.nl()
	}
}

// trailing appends the comments found on lines from..to to the statement
// just printed: the first at the end of its line, any others below it.
func (p *pp) trailing(from, to int) {
	first := true
	for p.ci < len(p.comments) && p.comments[p.ci].Line <= to {
		c := p.comments[p.ci]
		if c.Line < from {
			break
		}
		p.ci++
		if first {
			p.out.write(" " + commentText(c))
			first = false
		} else {
			p.out.nl()
			p.out.line(commentText(c))
		}
		if c.Line > p.last {
			p.last = c.Line
		}
	}
}

func commentText(c Comment) string { return "//" + strings.TrimRight(c.Text, " \t") }

func (p *pp) stmts(list []Stmt) {
	for _, s := range list {
		p.stmt(s)
	}
}

func (p *pp) block(list []Stmt) {
	p.blockStart = true
	p.out.withIndent(func() { p.stmts(list) })
}

func (p *pp) stmt(s Stmt) {
	line := s.Position().Line
	p.flush(line)
	p.gap(line)
	p.out.pad()
	switch n := s.(type) {
	case *IfStmt:
		p.ifStmt(n)
	case *ForStmt:
		p.write("for " + n.Var + " = ")
		p.expr(n.From, precLowest)
		p.write(" to ")
		p.expr(n.To, precLowest)
		if n.Step != nil {
			p.write(" by ")
			p.expr(n.Step, precLowest)
		}
		p.header(n.Line)
		p.block(n.Body)
	case *ForInStmt:
		p.write("for ")
		if len(n.Vars) == 1 {
			p.write(n.Vars[0])
		} else {
			p.write("[" + strings.Join(n.Vars, ", ") + "]")
		}
		p.write(" in ")
		p.expr(n.Iterable, precLowest)
		p.header(n.Line)
		p.block(n.Body)
	case *WhileStmt:
		p.write("while ")
		p.expr(n.Cond, precLowest)
		p.header(n.Line)
		p.block(n.Body)
	case *FuncDecl:
		p.funcHeader(n)
		if n.OneLine {
			p.write(" ")
			p.simple(oneLineBody(n))
			p.finish(s)
			return
		}
		p.header(n.Line)
		p.block(n.Body)
	case *TypeDecl:
		p.typeDecl(n)
	default:
		p.simple(s)
		p.finish(s)
	}
}

// header ends a block-opening line.
func (p *pp) header(line int) {
	p.trailing(line, line)
	p.out.nl()
}

// finish ends a simple statement that may have spanned several lines.
func (p *pp) finish(s Stmt) {
	end := maxLine(s)
	if end > p.last {
		p.last = end
	}
	p.trailing(s.Position().Line, end)
	p.out.endLine()
}

func (p *pp) write(s string) { p.out.write(s) }

func (p *pp) ifStmt(n *IfStmt) {
	p.write("if ")
	p.expr(n.Cond, precLowest)
	p.header(n.Line)
	p.block(n.Then)
	if len(n.Else) == 0 {
		return
	}
	p.out.pad()
	if elif, ok := n.Else[0].(*IfStmt); ok && len(n.Else) == 1 {
		p.write("else ")
		p.ifStmt(elif)
		return
	}
	p.write("else")
	p.out.nl()
	p.block(n.Else)
}

func (p *pp) funcHeader(n *FuncDecl) {
	if n.Export {
		p.write("export ")
	}
	if n.Method {
		p.write("method ")
	}
	p.write(n.Name + "(")
	for i, prm := range n.Params {
		if i > 0 {
			p.write(", ")
		}
		if prm.Type != nil {
			p.write(prm.Type.String() + " ")
		}
		p.write(prm.Name)
		if prm.Default != nil {
			p.write(" = ")
			p.expr(prm.Default, precLowest)
		}
	}
	p.write(") =>")
}

func oneLineBody(n *FuncDecl) Stmt {
	if len(n.Body) == 0 {
		return &ExprStmt{X: &Literal{Kind: LitNA, Raw: "na"}}
	}
	if r, ok := n.Body[0].(*ReturnStmt); ok && r.Synthetic {
		return &ExprStmt{Pos: r.Pos, X: r.Value}
	}
	return n.Body[0]
}

func (p *pp) typeDecl(n *TypeDecl) {
	if n.Export {
		p.write("export ")
	}
	if n.Enum {
		p.write("enum ")
	} else {
		p.write("type ")
	}
	p.write(n.Name)
	p.header(n.Line)
	p.blockStart = true
	p.out.withIndent(func() {
		for _, f := range n.Fields {
			p.flush(f.Line)
			p.gap(f.Line)
			p.out.pad()
			if f.Type != nil {
				p.write(f.Type.String() + " ")
			}
			p.write(f.Name)
			end := f.Line
			if f.Default != nil {
				p.write(" = ")
				p.expr(f.Default, precLowest)
				end = maxLine(f.Default)
			}
			if end > p.last {
				p.last = end
			}
			p.trailing(f.Line, end)
			p.out.endLine()
		}
	})
}

// simple prints a statement that fits on one logical line.
func (p *pp) simple(s Stmt) {
	switch n := s.(type) {
	case *VarDecl:
		if n.Qualifier != "" {
			p.write(n.Qualifier + " ")
		}
		if n.Type != nil && !n.Inherited {
			p.write(n.Type.String() + " ")
		}
		p.write(n.Name)
		if n.Value != nil {
			p.write(" = ")
			p.expr(n.Value, precLowest)
		}
	case *TupleDecl:
		p.write("[" + strings.Join(n.Names, ", ") + "] = ")
		p.expr(n.Value, precLowest)
	case *ExprStmt:
		p.expr(n.X, precLowest)
	case *ReturnStmt:
		p.write("return")
		if n.Value != nil {
			p.write(" ")
			p.expr(n.Value, precLowest)
		}
	case *BreakStmt:
		p.write("break")
	case *ContinueStmt:
		p.write("continue")
	case *AssignStmt:
		p.expr(n.Target, precPostfix)
		p.write(" " + n.Op + " ")
		p.expr(n.Value, precLowest)
	case *ImportStmt:
		p.write("import " + n.Path)
		if n.Alias != "" && n.Alias != defaultImportAlias(n.Path) {
			p.write(" as " + n.Alias)
		}
	case *SequenceStmt:
		for i, sub := range n.Stmts {
			if i > 0 {
				p.write(", ")
			}
			p.simple(sub)
		}
	}
}

func defaultImportAlias(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

/* ---------- expressions ---------- */

const (
	precLowest  = 0
	precTernary = 1
	precOr      = 2
	precAnd     = 3
	precCompare = 4
	precAdd     = 5
	precMul     = 6
	precUnary   = 7
	precPostfix = 8
)

func binopPrec(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "==", "!=", "<", "<=", ">", ">=":
		return precCompare
	case "+", "-":
		return precAdd
	case "*", "/", "%":
		return precMul
	}
	return precLowest
}

func prec(e Expr) int {
	switch n := e.(type) {
	case *TernaryExpr:
		return precTernary
	case *BinaryExpr:
		return binopPrec(n.Op)
	case *UnaryExpr:
		return precUnary
	case *SwitchExpr:
		return precLowest
	}
	return precPostfix
}

// expr prints e, parenthesized when its precedence is below min.
func (p *pp) expr(e Expr, min int) {
	if e == nil {
		p.write("na")
		return
	}
	if _, sw := e.(*SwitchExpr); !sw && prec(e) < min {
		p.write("(")
		p.expr(e, precLowest)
		p.write(")")
		return
	}
	switch n := e.(type) {
	case *Ident:
		p.write(n.Name)
	case *Literal:
		p.write(literalText(n))
	case *BinaryExpr:
		pr := binopPrec(n.Op)
		p.expr(n.Left, pr)
		p.write(" " + n.Op + " ")
		p.expr(n.Right, pr+1)
	case *UnaryExpr:
		if n.Op == "not" {
			p.write("not ")
			p.expr(n.Operand, precUnary)
			return
		}
		p.write(n.Op)
		if _, nested := n.Operand.(*UnaryExpr); nested {
			p.write("(")
			p.expr(n.Operand, precLowest)
			p.write(")")
			return
		}
		p.expr(n.Operand, precUnary)
	case *TernaryExpr:
		p.expr(n.Cond, precOr)
		p.write(" ? ")
		p.expr(n.Then, precTernary)
		p.write(" : ")
		p.expr(n.Else, precTernary)
	case *CallExpr:
		p.expr(n.Callee, precPostfix)
		if len(n.TypeArgs) > 0 {
			p.write("<")
			for i, ta := range n.TypeArgs {
				if i > 0 {
					p.write(", ")
				}
				p.write(ta.String())
			}
			p.write(">")
		}
		p.write("(")
		for i, a := range n.Args {
			if i > 0 {
				p.write(", ")
			}
			if a.Name != "" {
				p.write(a.Name + "=")
			}
			p.expr(a.Value, precLowest)
		}
		p.write(")")
	case *MemberExpr:
		p.expr(n.Object, precPostfix)
		p.write("." + n.Property)
	case *IndexExpr:
		p.expr(n.Object, precPostfix)
		p.write("[")
		p.expr(n.Index, precLowest)
		p.write("]")
	case *ArrayLit:
		p.write("[")
		for i, el := range n.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.expr(el, precLowest)
		}
		p.write("]")
	case *SwitchExpr:
		p.switchExpr(n)
	}
}

func (p *pp) switchExpr(n *SwitchExpr) {
	p.write("switch")
	if n.Discriminant != nil {
		p.write(" ")
		p.expr(n.Discriminant, precLowest)
	}
	p.trailing(n.Line, n.Line)
	p.out.nl()
	p.blockStart = true
	p.out.withIndent(func() {
		for _, c := range n.Cases {
			p.flush(c.Line)
			p.gap(c.Line)
			p.out.pad()
			if c.Cond != nil {
				p.expr(c.Cond, precLowest)
				p.write(" ")
			}
			p.write("=>")
			if c.Block {
				p.header(c.Line)
				p.block(c.Body)
				continue
			}
			p.write(" ")
			if len(c.Body) == 1 {
				p.simple(c.Body[0])
				p.finish(c.Body[0])
			} else {
				p.expr(c.Result, precLowest)
				p.out.endLine()
			}
		}
	})
}

func literalText(l *Literal) string {
	if l.Raw != "" {
		return l.Raw
	}
	switch v := l.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		if l.Kind == LitString {
			return strconv.Quote(v)
		}
		return v
	}
	return "na"
}

// maxLine is the last source line any node under n starts on.
func maxLine(n Node) int {
	m := 0
	Walk(n, func(x Node) bool {
		if l := x.Position().Line; l > m {
			m = l
		}
		return true
	})
	return m
}
