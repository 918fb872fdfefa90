// types.go
//
// Pine type vocabulary and coercion rules (static, validator-facing)
//
// Goals / design:
//  1. Types are plain strings in one canonical spelling so they can be compared
//     with ==, printed in diagnostics and used as map keys:
//     int float bool string color line label box table linefill void na unknown
//     series<T> simple<T> array<T> matrix<T> map<K,V>
//     [T1, T2, ...]        tuple (multi-value function results)
//     series int/float     union result of a polymorphic builtin
//     MyType               user-defined type or enum
//  2. unknown is "don't know, don't complain": assignable to and from anything,
//     never the cause of a diagnostic. It is tested before na.
//  3. na is assignable to anything; nothing but na is assignable to na.
//  4. Qualifiers rank none < simple < series. A value may flow to an equal or
//     stronger qualifier; simple also flows to an unqualified slot.
//  5. int and float convert both ways; string converts to color.
//
// Builtin signatures spell types loosely ("series float", "simple int",
// "float[]", "const string"); Normalize maps those to the canonical form.
package pine

import "strings"

// Type is a canonical type string.
type Type string

const (
	TInt      Type = "int"
	TFloat    Type = "float"
	TBool     Type = "bool"
	TString   Type = "string"
	TColor    Type = "color"
	TLine     Type = "line"
	TLabel    Type = "label"
	TBox      Type = "box"
	TTable    Type = "table"
	TLinefill Type = "linefill"
	TVoid     Type = "void"
	TNA       Type = "na"
	TUnknown  Type = "unknown"
)

const (
	qualNone   = ""
	qualSimple = "simple"
	qualSeries = "series"
)

func (t Type) String() string { return string(t) }

// -----------------------------
// Constructors
// -----------------------------

// Series wraps t in series<...>, replacing any existing qualifier.
func Series(t Type) Type { return Qualify(t, qualSeries) }

// Simple wraps t in simple<...>, replacing any existing qualifier.
func Simple(t Type) Type { return Qualify(t, qualSimple) }

// Qualify returns the base of t under qualifier q ("", "simple" or "series").
// unknown, na, void and tuples are returned unchanged.
func Qualify(t Type, q string) Type {
	if t == TUnknown || t == TNA || t == TVoid || IsTuple(t) {
		return t
	}
	_, base := Split(t)
	if q == qualNone {
		return base
	}
	if strings.Contains(string(base), "/") {
		return Type(q + " " + string(base))
	}
	return Type(q + "<" + string(base) + ">")
}

func ArrayOf(elem Type) Type  { return Type("array<" + string(elem) + ">") }
func MatrixOf(elem Type) Type { return Type("matrix<" + string(elem) + ">") }
func MapOf(k, v Type) Type    { return Type("map<" + string(k) + "," + string(v) + ">") }

// TupleOf builds a tuple type from its element types.
func TupleOf(elems []Type) Type {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = string(e)
	}
	return Type("[" + strings.Join(parts, ", ") + "]")
}

// -----------------------------
// Inspection
// -----------------------------

// Split separates the qualifier from the base type.
func Split(t Type) (qual string, base Type) {
	s := string(t)
	for _, q := range []string{qualSeries, qualSimple} {
		if strings.HasPrefix(s, q+"<") && strings.HasSuffix(s, ">") {
			return q, Type(s[len(q)+1 : len(s)-1])
		}
		if strings.HasPrefix(s, q+" ") {
			return q, Type(strings.TrimSpace(s[len(q)+1:]))
		}
	}
	return qualNone, t
}

// Base strips the qualifier.
func Base(t Type) Type {
	_, b := Split(t)
	return b
}

// Qualifier returns "", "simple" or "series".
func Qualifier(t Type) string {
	q, _ := Split(t)
	return q
}

func IsSeries(t Type) bool { return Qualifier(t) == qualSeries }

func qualRank(q string) int {
	switch q {
	case qualSeries:
		return 2
	case qualSimple:
		return 1
	}
	return 0
}

func strongerQual(a, b string) string {
	if qualRank(a) >= qualRank(b) {
		return a
	}
	return b
}

// IsNumeric reports int, float or an int/float union.
func IsNumeric(t Type) bool {
	b := Base(t)
	if b == TInt || b == TFloat {
		return true
	}
	if variants := unionVariants(b); variants != nil {
		for _, v := range variants {
			if v != TInt && v != TFloat {
				return false
			}
		}
		return true
	}
	return false
}

func IsBool(t Type) bool   { return Base(t) == TBool }
func IsString(t Type) bool { return Base(t) == TString }
func IsColor(t Type) bool  { return Base(t) == TColor }

// IsTuple reports a "[a, b]" tuple type.
func IsTuple(t Type) bool { return strings.HasPrefix(string(t), "[") }

// TupleElems returns the element types of a tuple, or nil.
func TupleElems(t Type) []Type {
	if !IsTuple(t) || !strings.HasSuffix(string(t), "]") {
		return nil
	}
	inner := string(t)[1 : len(t)-1]
	if strings.TrimSpace(inner) == "" {
		return []Type{}
	}
	parts := splitTopLevel(inner, ',')
	out := make([]Type, len(parts))
	for i, p := range parts {
		out[i] = Type(strings.TrimSpace(p))
	}
	return out
}

// ElemType returns T for array<T> and matrix<T> (qualifier ignored), or
// unknown.
func ElemType(t Type) Type {
	b := string(Base(t))
	for _, c := range []string{"array<", "matrix<"} {
		if strings.HasPrefix(b, c) && strings.HasSuffix(b, ">") {
			return Type(b[len(c) : len(b)-1])
		}
	}
	return TUnknown
}

// Container returns "array", "matrix", "map" or "" for the base of t.
func Container(t Type) string {
	b := string(Base(t))
	if i := strings.IndexByte(b, '<'); i > 0 && strings.HasSuffix(b, ">") {
		switch b[:i] {
		case "array", "matrix", "map":
			return b[:i]
		}
	}
	return ""
}

func containerArgs(t Type) []Type {
	b := string(Base(t))
	i := strings.IndexByte(b, '<')
	if i < 0 || !strings.HasSuffix(b, ">") {
		return nil
	}
	parts := splitTopLevel(b[i+1:len(b)-1], ',')
	out := make([]Type, len(parts))
	for j, p := range parts {
		out[j] = Type(strings.TrimSpace(p))
	}
	return out
}

func unionVariants(base Type) []Type {
	if !strings.Contains(string(base), "/") || strings.ContainsAny(string(base), "<[") {
		return nil
	}
	parts := strings.Split(string(base), "/")
	out := make([]Type, len(parts))
	for i, p := range parts {
		out[i] = Type(strings.TrimSpace(p))
	}
	return out
}

// splitTopLevel splits s on sep outside of <> and [] nesting.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[':
			depth++
		case '>', ']':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// -----------------------------
// Normalization
// -----------------------------

// Normalize converts a loosely written type ("series float", "simple int",
// "const string", "float[]", "input int", "array<float>") to canonical form.
// The empty string is unknown.
func Normalize(s string) Type {
	s = strings.TrimSpace(s)
	if s == "" {
		return TUnknown
	}
	if strings.HasPrefix(s, "[") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		parts := splitTopLevel(inner, ',')
		elems := make([]Type, len(parts))
		for i, p := range parts {
			elems[i] = Normalize(p)
		}
		return TupleOf(elems)
	}
	q := qualNone
	for _, pre := range []string{"series", "simple", "const", "input"} {
		if strings.HasPrefix(s, pre+" ") {
			rest := strings.TrimSpace(s[len(pre)+1:])
			switch pre {
			case "series":
				q = qualSeries
			case "simple", "input":
				q = qualSimple
			}
			s = rest
			break
		}
		if strings.HasPrefix(s, pre+"<") && strings.HasSuffix(s, ">") {
			if pre == "series" {
				q = qualSeries
			} else if pre == "simple" {
				q = qualSimple
			}
			s = s[len(pre)+1 : len(s)-1]
			break
		}
	}
	base := normalizeBase(s)
	if q == qualNone {
		return base
	}
	return Qualify(base, q)
}

func normalizeBase(s string) Type {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "[]") {
		return ArrayOf(normalizeBase(strings.TrimSuffix(s, "[]")))
	}
	if i := strings.IndexByte(s, '<'); i > 0 && strings.HasSuffix(s, ">") {
		args := splitTopLevel(s[i+1:len(s)-1], ',')
		norm := make([]string, len(args))
		for j, a := range args {
			norm[j] = string(Base(Normalize(a)))
		}
		return Type(s[:i] + "<" + strings.Join(norm, ",") + ">")
	}
	switch s {
	case "integer":
		return TInt
	case "number":
		return TFloat
	case "boolean":
		return TBool
	}
	return Type(s)
}

// FromTypeRef converts a written annotation to a Type.
func FromTypeRef(tr *TypeRef) Type {
	if tr == nil {
		return TUnknown
	}
	var base Type
	switch {
	case len(tr.Args) > 0:
		args := make([]string, len(tr.Args))
		for i, a := range tr.Args {
			args[i] = string(Base(FromTypeRef(a)))
		}
		base = Type(tr.Name + "<" + strings.Join(args, ",") + ">")
	case tr.Name == "array" || tr.Name == "matrix":
		base = Type(tr.Name + "<unknown>")
	default:
		base = normalizeBase(tr.Name)
	}
	if tr.ArraySfx {
		base = ArrayOf(base)
	}
	switch tr.Qualifier {
	case "series":
		return Series(base)
	case "simple":
		return Simple(base)
	}
	return base
}

// -----------------------------
// Coercion
// -----------------------------

// IsAssignable reports whether a value of type from may be stored where to
// is expected.
func IsAssignable(from, to Type) bool {
	if from == to {
		return true
	}
	if from == TUnknown || to == TUnknown {
		return true
	}
	if from == TNA {
		return true
	}
	if to == TNA {
		return false
	}
	if IsTuple(from) || IsTuple(to) {
		fe, te := TupleElems(from), TupleElems(to)
		if fe == nil || te == nil || len(fe) != len(te) {
			return false
		}
		for i := range fe {
			if !IsAssignable(fe[i], te[i]) {
				return false
			}
		}
		return true
	}

	tq, tb := Split(to)
	if variants := unionVariants(tb); variants != nil {
		for _, v := range variants {
			if IsAssignable(from, Qualify(v, tq)) {
				return true
			}
		}
		return false
	}
	fq, fb := Split(from)
	if variants := unionVariants(fb); variants != nil {
		for _, v := range variants {
			if IsAssignable(Qualify(v, fq), to) {
				return true
			}
		}
		return false
	}

	if !baseAssignable(fb, tb) {
		return false
	}
	return qualRank(fq) <= qualRank(tq) || (fq == qualSimple && tq == qualNone)
}

func baseAssignable(from, to Type) bool {
	if from == to || from == TUnknown || to == TUnknown || from == TNA {
		return true
	}
	if IsNumeric(from) && IsNumeric(to) {
		return true
	}
	if from == TString && to == TColor {
		return true
	}
	fc, tc := Container(from), Container(to)
	if fc != "" && fc == tc {
		fa, ta := containerArgs(from), containerArgs(to)
		if len(fa) != len(ta) {
			return false
		}
		for i := range fa {
			if !IsAssignable(fa[i], ta[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// CanPromote reports whether a binding declared as old may have its type
// replaced by next: next is a stronger-qualified version of a compatible
// base, or old carries no information.
func CanPromote(old, next Type) bool {
	if old == TNA || old == TUnknown {
		return next != TVoid
	}
	if IsTuple(old) || IsTuple(next) {
		return false
	}
	oq, ob := Split(old)
	nq, nb := Split(next)
	if qualRank(nq) <= qualRank(oq) {
		return false
	}
	return baseAssignable(nb, ob)
}

// -----------------------------
// Operators
// -----------------------------

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func isLogicalOp(op string) bool { return op == "and" || op == "or" }

func isArithmeticOp(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}

// BinaryOpType returns the result type of left op right.
func BinaryOpType(left, right Type, op string) Type {
	q := strongerQual(Qualifier(left), Qualifier(right))
	switch {
	case isComparisonOp(op), isLogicalOp(op):
		return Qualify(TBool, q)
	case op == "+" && (IsString(left) || IsString(right)):
		return Qualify(TString, q)
	case isArithmeticOp(op):
		if left == TUnknown || right == TUnknown {
			return TUnknown
		}
		if left == TNA && right == TNA {
			return TNA
		}
		if left == TNA {
			return right
		}
		if right == TNA {
			return left
		}
		if !IsNumeric(left) || !IsNumeric(right) {
			return TUnknown
		}
		base := TInt
		if Base(left) != TInt || Base(right) != TInt {
			base = TFloat
		}
		return Qualify(base, q)
	}
	return TUnknown
}

// UnaryOpType returns the result type of op operand.
func UnaryOpType(operand Type, op string) Type {
	if op == "not" {
		if operand == TUnknown {
			return TBool
		}
		return Qualify(TBool, Qualifier(operand))
	}
	return operand
}

// TypesCompatible reports whether op may be applied to left and right.
func TypesCompatible(left, right Type, op string) bool {
	if left == TUnknown || right == TUnknown || left == TNA || right == TNA {
		return true
	}
	switch {
	case op == "+" && (IsString(left) || IsString(right)):
		return IsString(left) && IsString(right)
	case isArithmeticOp(op), op == "<", op == "<=", op == ">", op == ">=":
		return IsNumeric(left) && IsNumeric(right)
	case op == "==" || op == "!=":
		lb, rb := Base(left), Base(right)
		if lb == rb || (IsNumeric(lb) && IsNumeric(rb)) {
			return true
		}
		return IsAssignable(left, right) || IsAssignable(right, left)
	case isLogicalOp(op):
		return IsBool(left) && IsBool(right)
	}
	return true
}

// TernaryBranchesCompatible is stricter than IsAssignable: the branches must
// share a base type after qualifiers are stripped, or both be numeric.
func TernaryBranchesCompatible(a, b Type) bool {
	if a == TUnknown || b == TUnknown || a == TNA || b == TNA {
		return true
	}
	ab, bb := Base(a), Base(b)
	switch {
	case ab == bb:
		return true
	case IsNumeric(ab) && IsNumeric(bb):
		return true
	case IsBool(ab) && IsBool(bb), IsString(ab) && IsString(bb), IsColor(ab) && IsColor(bb):
		return true
	}
	return false
}

// BranchResultType is the type of a ternary or switch producing a or b.
func BranchResultType(a, b Type) Type {
	switch {
	case a == TUnknown || a == TNA:
		return b
	case b == TUnknown || b == TNA:
		return a
	}
	q := strongerQual(Qualifier(a), Qualifier(b))
	if IsNumeric(a) && IsNumeric(b) && Base(a) != Base(b) {
		return Qualify(TFloat, q)
	}
	return Qualify(a, q)
}
