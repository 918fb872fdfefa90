// infer.go — expression type inference.
//
// infer computes the type of an expression, reporting any problem it finds
// along the way, and memoizes the result per node so every expression is
// examined (and reported) once. Scratch passes bypass the memo: their scope
// bindings are provisional.
//
// Nothing here fails: whatever cannot be resolved is typed unknown, which the
// coercion rules accept everywhere.
package pine

import (
	"fmt"
	"strings"
)

// deprecatedConstants maps retired constant names to their replacements.
var deprecatedConstants = map[string]string{
	"plot.style_dashed":  "plot.style_linebr",
	"plot.style_dotted":  "plot.style_circles",
	"plot.style_dashdot": "plot.style_linebr",
	"color.grey":         "color.gray",
}

func (v *Validator) infer(e Expr) Type {
	if e == nil {
		return TUnknown
	}
	if v.quiet == 0 {
		if t, ok := v.types[e]; ok {
			return t
		}
	}
	t := v.inferUncached(e)
	if v.quiet == 0 {
		v.types[e] = t
	}
	return t
}

func (v *Validator) inferUncached(e Expr) Type {
	switch n := e.(type) {
	case *Literal:
		return literalType(n)
	case *Ident:
		return v.ident(n)
	case *MemberExpr:
		return v.member(n)
	case *CallExpr:
		return v.call(n)
	case *BinaryExpr:
		return v.binary(n)
	case *UnaryExpr:
		return v.unary(n)
	case *TernaryExpr:
		return v.ternary(n)
	case *ArrayLit:
		elems := make([]Type, len(n.Elems))
		for i, el := range n.Elems {
			elems[i] = v.infer(el)
		}
		return TupleOf(elems)
	case *IndexExpr:
		return v.index(n)
	case *SwitchExpr:
		return v.switchExpr(n)
	}
	return TUnknown
}

func literalType(l *Literal) Type {
	switch l.Kind {
	case LitInt:
		return TInt
	case LitFloat:
		return TFloat
	case LitString:
		return TString
	case LitBool:
		return TBool
	case LitColor:
		return TColor
	}
	return TNA
}

func (v *Validator) ident(n *Ident) Type {
	sym := v.syms.Lookup(n.Name)
	if sym == nil {
		if _, ok := v.userTypes[n.Name]; ok {
			return Type(n.Name)
		}
		if v.reg.IsNamespace(n.Name) {
			return TUnknown
		}
		v.errorAt(n.Pos, len(n.Name), CodeUndefined,
			fmt.Sprintf("Undefined variable '%s'", n.Name)+didYouMean(closest(n.Name, v.syms.FindSimilar(n.Name, 2), 2)))
		return TUnknown
	}
	sym.Used = true
	if sym.Kind == SymFunction {
		return TUnknown
	}
	return sym.Type
}

// member resolves object.property. Dotted builtin names come from the
// registry; anything rooted in a user value is typed unknown.
func (v *Validator) member(n *MemberExpr) Type {
	name := DottedName(n)
	if name == "" {
		v.infer(n.Object)
		return TUnknown
	}
	root := name
	if i := strings.IndexByte(name, '.'); i > 0 {
		root = name[:i]
	}
	if sym := v.syms.Lookup(root); sym != nil && sym.Origin != OriginBuiltin {
		sym.Used = true
		if sym.Origin == OriginType {
			if td := v.userTypes[root]; td != nil && td.Enum {
				if id, ok := n.Object.(*Ident); ok && id.Name == root && td.Field(n.Property) == nil {
					v.errorAt(n.PropPos, len(n.Property), CodeUnknownMember,
						fmt.Sprintf("'%s' is not a member of the enum '%s'", n.Property, root)+
							didYouMean(closest(n.Property, td.FieldNames(), 3)))
				}
				return Type(root)
			}
		}
		return v.fieldType(v.infer(n.Object), n)
	}

	if repl, ok := deprecatedConstants[name]; ok {
		v.warnAt(n.Pos, len(name), CodeDeprecated,
			fmt.Sprintf("'%s' is deprecated; use '%s' instead", name, repl))
		return TString
	}
	if t, ok := v.reg.Constant(name); ok {
		return t
	}
	if t, ok := v.reg.Variable(name); ok {
		return t
	}
	if v.reg.IsNamespace(name) {
		return TUnknown
	}
	if _, ok := v.reg.Function(name); ok {
		return TUnknown
	}
	ns := name[:strings.LastIndexByte(name, '.')]
	if v.reg.IsNamespace(ns) {
		v.errorAt(n.Pos, len(name), CodeUnknownMember,
			fmt.Sprintf("'%s' is not a member of '%s'", n.Property, ns)+
				didYouMean(qualify(ns, closest(n.Property, v.reg.NamespaceMembers(ns), 3))))
		return TUnknown
	}
	if v.syms.Lookup(root) == nil && !v.reg.IsNamespace(root) {
		// undefined root: let the identifier report it
		v.infer(n.Object)
	}
	return TUnknown
}

// fieldType types obj.field for values of a user-defined type.
func (v *Validator) fieldType(obj Type, n *MemberExpr) Type {
	td := v.userTypes[string(Base(obj))]
	if td == nil || td.Enum {
		return TUnknown
	}
	f := td.Field(n.Property)
	if f == nil {
		v.errorAt(n.PropPos, len(n.Property), CodeUnknownMember,
			fmt.Sprintf("'%s' is not a field of '%s'", n.Property, td.Name)+
				didYouMean(closest(n.Property, td.FieldNames(), 3)))
		return TUnknown
	}
	return FromTypeRef(f.Type)
}

func qualify(ns, member string) string {
	if member == "" {
		return ""
	}
	return ns + "." + member
}

func (v *Validator) binary(n *BinaryExpr) Type {
	l := v.infer(n.Left)
	r := v.infer(n.Right)
	if !TypesCompatible(l, r, n.Op) {
		v.errorAt(n.Pos, len(n.Op), CodeOperator,
			fmt.Sprintf("Operator '%s' cannot be applied to '%s' and '%s'", n.Op, l, r))
		return TUnknown
	}
	return BinaryOpType(l, r, n.Op)
}

func (v *Validator) unary(n *UnaryExpr) Type {
	t := v.infer(n.Operand)
	if t == TUnknown || t == TNA {
		return UnaryOpType(t, n.Op)
	}
	switch n.Op {
	case "-", "+":
		if !IsNumeric(t) {
			v.errorAt(n.Pos, len(n.Op), CodeOperator,
				fmt.Sprintf("Operator '%s' cannot be applied to '%s'", n.Op, t))
			return TUnknown
		}
	case "not":
		if v.version >= 5 && !IsBool(t) {
			v.errorAt(n.Pos, len(n.Op), CodeOperator,
				fmt.Sprintf("Operator 'not' cannot be applied to '%s'", t))
			return TUnknown
		}
	}
	return UnaryOpType(t, n.Op)
}

func (v *Validator) ternary(n *TernaryExpr) Type {
	cond := v.infer(n.Cond)
	v.condDepth++
	a := v.infer(n.Then)
	b := v.infer(n.Else)
	v.condDepth--
	if !TernaryBranchesCompatible(a, b) {
		v.errorAt(n.Pos, 1, CodeTernary,
			fmt.Sprintf("Ternary branches have incompatible types '%s' and '%s'", a, b))
		return TUnknown
	}
	res := BranchResultType(a, b)
	if res == TUnknown || res == TNA || IsTuple(res) {
		return res
	}
	return Qualify(res, strongerQual(Qualifier(cond), Qualifier(res)))
}

func (v *Validator) index(n *IndexExpr) Type {
	obj := v.infer(n.Object)
	idx := v.infer(n.Index)
	if idx != TUnknown && idx != TNA && !IsNumeric(idx) {
		v.errorAt(n.Index.Position(), 1, CodeTypeMismatch,
			fmt.Sprintf("History reference offset must be an integer, got '%s'", idx))
	}
	switch {
	case obj == TUnknown || obj == TNA || IsTuple(obj):
		return obj
	case Container(obj) != "":
		return obj
	}
	switch Base(obj) {
	case TInt, TFloat, TBool, TString, TColor:
		return Series(obj)
	}
	return obj
}

func (v *Validator) switchExpr(n *SwitchExpr) Type {
	if n.Discriminant != nil {
		v.infer(n.Discriminant)
	}
	res := TUnknown
	first := true
	v.condDepth++
	for _, c := range n.Cases {
		if c.Cond != nil {
			v.infer(c.Cond)
		}
		var t Type
		switch {
		case c.Block:
			t = v.caseBody(c)
		case len(c.Body) == 1:
			// a one-line case body is still nested
			v.blockDepth++
			if _, expr := c.Body[0].(*ExprStmt); !expr {
				v.stmt(c.Body[0])
			}
			t = v.infer(c.Result)
			v.blockDepth--
		case c.Result != nil:
			v.blockDepth++
			t = v.infer(c.Result)
			v.blockDepth--
		}
		if c.Result == nil {
			continue
		}
		switch {
		case first:
			res, first = t, false
		case TernaryBranchesCompatible(res, t):
			res = BranchResultType(res, t)
		default:
			res = TUnknown
		}
	}
	v.condDepth--
	return res
}

// caseBody validates the statements of a block-bodied switch case in their
// own scope and types the case's result before the scope closes.
func (v *Validator) caseBody(c *SwitchCase) Type {
	v.blockDepth++
	v.syms.EnterScope(ScopeCase)
	v.collectDeclarations(c.Body)
	v.stmts(c.Body)
	t := v.infer(c.Result)
	v.syms.ExitScope()
	v.blockDepth--
	return t
}
