// ast.go — node types produced by the parser.
//
// The AST is a closed set of statement and expression structs. Every node
// records the 1-based line/column of the token that began it; that position is
// the only link diagnostics have back to the source text.
//
// Node identity is pointer identity: the validator's per-expression type map is
// keyed by the Expr value itself, so nodes must not be copied after parsing.
package pine

import "strings"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

func (p Pos) Position() Pos { return p }

// Program is the root of a parsed script.
type Program struct {
	Stmts []Stmt
}

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// TypeRef is a written type annotation such as "series float", "array<int>",
// "float[]" or a user-defined type name.
type TypeRef struct {
	Pos
	Qualifier string     // "", "series", "simple" or "const"
	Name      string     // int, float, array, MyType, lib.MyType ...
	Args      []*TypeRef // generic arguments: array<float> has one
	ArraySfx  bool       // written with a trailing "[]"
}

// String renders the annotation the way it was written (canonical spacing).
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	if t.Qualifier != "" {
		b.WriteString(t.Qualifier)
		b.WriteByte(' ')
	}
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.ArraySfx {
		b.WriteString("[]")
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// VarDecl declares a new binding: [var|varip|const] [type] name [= value].
type VarDecl struct {
	Pos
	Qualifier string   // "", "var", "varip", "const"
	Type      *TypeRef // explicit annotation, may be nil
	Inherited bool     // Type was inherited from the previous entry of a comma chain
	Name      string
	NamePos   Pos
	Value     Expr // may be nil
}

// TupleDecl destructures a tuple: [a, b, c] = value.
type TupleDecl struct {
	Pos
	Names    []string
	NamePoss []Pos
	Value    Expr
}

// Param is a function parameter.
type Param struct {
	Pos
	Name    string
	Type    *TypeRef // may be nil
	Default Expr     // may be nil
}

// FuncDecl is a function or method declaration: name(params) => body.
type FuncDecl struct {
	Pos
	Name       string
	NamePos    Pos
	Params     []*Param
	Body       []Stmt
	ReturnType *TypeRef // never written in source today; kept for library stubs
	Export     bool
	Method     bool
	OneLine    bool // body written on the same line as "=>"
}

// ExprStmt is an expression evaluated for its effect (usually a call).
type ExprStmt struct {
	Pos
	X Expr
}

// IfStmt is if/else; "else if" is an Else holding a single *IfStmt.
type IfStmt struct {
	Pos
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// ForStmt is the numeric loop: for i = from to to [by step].
type ForStmt struct {
	Pos
	Var    string
	VarPos Pos
	From   Expr
	To     Expr
	Step   Expr // may be nil
	Body   []Stmt
}

// ForInStmt iterates a collection: for x in xs / for [i, x] in xs.
type ForInStmt struct {
	Pos
	Vars     []string
	VarPoss  []Pos
	Iterable Expr
	Body     []Stmt
}

// WhileStmt is a while loop.
type WhileStmt struct {
	Pos
	Cond Expr
	Body []Stmt
}

// ReturnStmt returns from a function. One-line arrow bodies are wrapped in a
// synthetic return.
type ReturnStmt struct {
	Pos
	Value     Expr // may be nil
	Synthetic bool
}

// BreakStmt exits the innermost loop.
type BreakStmt struct{ Pos }

// ContinueStmt skips to the next loop iteration.
type ContinueStmt struct{ Pos }

// AssignStmt updates an existing binding: target := value, target += value...
// Op is one of "=", ":=", "+=", "-=", "*=", "/=", "%=".
type AssignStmt struct {
	Pos
	Target Expr
	Op     string
	Value  Expr
}

// ImportStmt is: import user/lib/1 [as alias].
type ImportStmt struct {
	Pos
	Path  string
	Alias string
}

// TypeDecl is a user-defined type or enum.
type TypeDecl struct {
	Pos
	Name    string
	NamePos Pos
	Enum    bool
	Export  bool
	Fields  []*Field
}

// Field is one line of a type or enum body. Enum fields have no Type.
type Field struct {
	Pos
	Type    *TypeRef
	Name    string
	Default Expr // may be nil
}

// Field returns the named field, or nil.
func (d *TypeDecl) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldNames lists the field names in declaration order.
func (d *TypeDecl) FieldNames() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Name
	}
	return out
}

// SequenceStmt holds comma-joined statements written on one logical line.
type SequenceStmt struct {
	Pos
	Stmts []Stmt
}

func (*VarDecl) stmtNode()      {}
func (*TupleDecl) stmtNode()    {}
func (*FuncDecl) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*ForInStmt) stmtNode()    {}
func (*WhileStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*AssignStmt) stmtNode()   {}
func (*ImportStmt) stmtNode()   {}
func (*TypeDecl) stmtNode()     {}
func (*SequenceStmt) stmtNode() {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident is a name reference.
type Ident struct {
	Pos
	Name string
}

// LitKind classifies literals.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitString
	LitBool
	LitColor
	LitNA
)

// Literal is a number, string, bool, color or na.
type Literal struct {
	Pos
	Kind  LitKind
	Value interface{} // int64, float64, string, bool, string (#rrggbb) or nil
	Raw   string
}

// Arg is one call argument; Name is empty for positional arguments.
type Arg struct {
	Name    string
	NamePos Pos
	Value   Expr
}

// CallExpr is callee<typeArgs>(args).
type CallExpr struct {
	Pos
	Callee   Expr
	TypeArgs []*TypeRef
	Args     []*Arg
}

// MemberExpr is object.property.
type MemberExpr struct {
	Pos
	Object   Expr
	Property string
	PropPos  Pos
}

// BinaryExpr is left op right. Op is the operator text ("+", "and", "<=", ...).
type BinaryExpr struct {
	Pos
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is "-x", "+x" or "not x".
type UnaryExpr struct {
	Pos
	Op      string
	Operand Expr
}

// TernaryExpr is cond ? then : else.
type TernaryExpr struct {
	Pos
	Cond Expr
	Then Expr
	Else Expr
}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	Pos
	Elems []Expr
}

// IndexExpr is object[index]; on series values this is the history operator.
type IndexExpr struct {
	Pos
	Object Expr
	Index  Expr
}

// SwitchCase is "cond => body"; the default case has a nil Cond. Result is
// the value of the body's final statement.
type SwitchCase struct {
	Pos
	Cond   Expr
	Body   []Stmt
	Block  bool // body written on the lines below "=>"
	Result Expr // may be nil
}

// SwitchExpr is a switch with an optional discriminant.
type SwitchExpr struct {
	Pos
	Discriminant Expr // may be nil
	Cases        []*SwitchCase
}

func (*Ident) exprNode()       {}
func (*Literal) exprNode()     {}
func (*CallExpr) exprNode()    {}
func (*MemberExpr) exprNode()  {}
func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*TernaryExpr) exprNode() {}
func (*ArrayLit) exprNode()    {}
func (*IndexExpr) exprNode()   {}
func (*SwitchExpr) exprNode()  {}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// DottedName flattens an identifier or a chain of member accesses on
// identifiers ("ta.sma", "strategy.direction.long"). It returns "" for any
// other shape.
func DottedName(e Expr) string {
	switch n := e.(type) {
	case *Ident:
		return n.Name
	case *MemberExpr:
		base := DottedName(n.Object)
		if base == "" {
			return ""
		}
		return base + "." + n.Property
	}
	return ""
}

// StmtKind names a statement's node kind, e.g. "VarDecl".
func StmtKind(s Stmt) string {
	switch s.(type) {
	case *VarDecl:
		return "VarDecl"
	case *TupleDecl:
		return "TupleDecl"
	case *FuncDecl:
		return "FuncDecl"
	case *ExprStmt:
		return "ExprStmt"
	case *IfStmt:
		return "IfStmt"
	case *ForStmt:
		return "ForStmt"
	case *ForInStmt:
		return "ForInStmt"
	case *WhileStmt:
		return "WhileStmt"
	case *ReturnStmt:
		return "ReturnStmt"
	case *BreakStmt:
		return "BreakStmt"
	case *ContinueStmt:
		return "ContinueStmt"
	case *AssignStmt:
		return "AssignStmt"
	case *ImportStmt:
		return "ImportStmt"
	case *TypeDecl:
		return "TypeDecl"
	case *SequenceStmt:
		return "SequenceStmt"
	}
	return "?"
}

// Walk calls fn for every node reachable from n in source order, parents
// before children. Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	walkStmts := func(list []Stmt) {
		for _, s := range list {
			Walk(s, fn)
		}
	}
	walkExpr := func(e Expr) {
		if e != nil {
			Walk(e, fn)
		}
	}
	switch x := n.(type) {
	case *VarDecl:
		walkExpr(x.Value)
	case *TupleDecl:
		walkExpr(x.Value)
	case *FuncDecl:
		for _, p := range x.Params {
			walkExpr(p.Default)
		}
		walkStmts(x.Body)
	case *ExprStmt:
		walkExpr(x.X)
	case *IfStmt:
		walkExpr(x.Cond)
		walkStmts(x.Then)
		walkStmts(x.Else)
	case *ForStmt:
		walkExpr(x.From)
		walkExpr(x.To)
		walkExpr(x.Step)
		walkStmts(x.Body)
	case *ForInStmt:
		walkExpr(x.Iterable)
		walkStmts(x.Body)
	case *WhileStmt:
		walkExpr(x.Cond)
		walkStmts(x.Body)
	case *ReturnStmt:
		walkExpr(x.Value)
	case *AssignStmt:
		walkExpr(x.Target)
		walkExpr(x.Value)
	case *SequenceStmt:
		walkStmts(x.Stmts)
	case *TypeDecl:
		for _, f := range x.Fields {
			walkExpr(f.Default)
		}
	case *CallExpr:
		walkExpr(x.Callee)
		for _, a := range x.Args {
			walkExpr(a.Value)
		}
	case *MemberExpr:
		walkExpr(x.Object)
	case *BinaryExpr:
		walkExpr(x.Left)
		walkExpr(x.Right)
	case *UnaryExpr:
		walkExpr(x.Operand)
	case *TernaryExpr:
		walkExpr(x.Cond)
		walkExpr(x.Then)
		walkExpr(x.Else)
	case *ArrayLit:
		for _, e := range x.Elems {
			walkExpr(e)
		}
	case *IndexExpr:
		walkExpr(x.Object)
		walkExpr(x.Index)
	case *SwitchExpr:
		walkExpr(x.Discriminant)
		for _, c := range x.Cases {
			walkExpr(c.Cond)
			if len(c.Body) > 0 {
				walkStmts(c.Body)
			} else {
				walkExpr(c.Result)
			}
		}
	}
}
