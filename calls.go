// calls.go — call resolution, argument checking and call result types.
//
// A call is resolved in this order:
//
//  1. callee<T>(...)       generic constructor: array.new<float>() → array<float>
//  2. user function        declared earlier in scope
//  3. Type.new / Type.copy user-defined type constructor
//  4. value.method(...)    user method, or builtin on the value's container
//     (arr.push(x) is array.push(arr, x))
//  5. builtin              registry signature: remote-data tuple calls,
//     polymorphic return, then the static return type
//
// Whatever is left is reported as undefined and typed unknown.
package pine

import (
	"fmt"
	"strings"
)

// argAliases maps argument names people reach for to the parameter the
// builtins actually declare.
var argAliases = map[string]string{
	"shape":        "style",
	"colour":       "color",
	"transparency": "transp",
	"width":        "linewidth",
	"linecolor":    "color",
	"defaultval":   "defval",
	"default":      "defval",
	"name":         "title",
	"label":        "title",
	"src":          "source",
	"len":          "length",
}

// primitiveParamTypes are the parameter bases argument types are checked
// against; richer parameter types (plot, hline, generics) are not checked.
var primitiveParamTypes = map[Type]bool{
	TInt: true, TFloat: true, TBool: true, TString: true, TColor: true, "int/float": true,
}

func (v *Validator) call(c *CallExpr) Type {
	argTypes := make([]Type, len(c.Args))
	for i, a := range c.Args {
		argTypes[i] = v.infer(a.Value)
	}
	name := DottedName(c.Callee)
	if name == "" {
		v.infer(c.Callee)
		return TUnknown
	}

	if len(c.TypeArgs) > 0 {
		if t, ok := v.genericCall(c, name, argTypes); ok {
			return t
		}
	}

	if sym := v.syms.Lookup(name); sym != nil && sym.Origin == OriginFunction && sym.Func != nil {
		sym.Used = true
		v.checkUserCall(sym.Func, c, argTypes, 0)
		return v.userReturn(sym.Func)
	}

	if i := strings.IndexByte(name, '.'); i > 0 {
		root := name[:i]
		if sym := v.syms.Lookup(root); sym != nil && sym.Origin != OriginBuiltin {
			sym.Used = true
			return v.valueCall(c, sym, argTypes)
		}
	}

	sig, ok := v.reg.Function(name)
	if !ok {
		v.unresolvedCall(c, name)
		return TUnknown
	}
	v.checkBuiltinCall(sig, c, argTypes, 0)
	return v.builtinReturn(sig, c, argTypes, 0)
}

// genericCall handles array.new<T>(), matrix.new<T>() and map.new<K, V>().
func (v *Validator) genericCall(c *CallExpr, name string, argTypes []Type) (Type, bool) {
	ns := strings.TrimSuffix(name, ".new")
	if ns == name {
		return TUnknown, false
	}
	args := make([]Type, len(c.TypeArgs))
	for i, ta := range c.TypeArgs {
		args[i] = Base(FromTypeRef(ta))
	}
	var t Type
	switch {
	case ns == "array" && len(args) == 1:
		t = ArrayOf(args[0])
	case ns == "matrix" && len(args) == 1:
		t = MatrixOf(args[0])
	case ns == "map" && len(args) == 2:
		t = MapOf(args[0], args[1])
	default:
		return TUnknown, false
	}
	if sig, ok := v.reg.Function(name); ok {
		v.checkBuiltinCall(sig, c, argTypes, 0)
	}
	return t, true
}

// valueCall handles calls whose callee is rooted in a user binding:
// Type.new(...), alias.func(...), value.method(...).
func (v *Validator) valueCall(c *CallExpr, root *Symbol, argTypes []Type) Type {
	m, _ := c.Callee.(*MemberExpr)
	switch root.Origin {
	case OriginType:
		if m == nil {
			return TUnknown
		}
		switch m.Property {
		case "new":
			if td := v.userTypes[root.Name]; td != nil && !td.Enum {
				v.checkConstructor(td, c, argTypes)
			}
			return Type(root.Name)
		case "copy":
			return Type(root.Name)
		}
		return TUnknown
	case OriginImport:
		return TUnknown
	}
	if m == nil {
		return TUnknown
	}
	objType := v.infer(m.Object)
	all := append([]Type{objType}, argTypes...)

	if fn, ok := v.methods[m.Property]; ok {
		v.checkUserCall(fn, c, all, 1)
		return v.userReturn(fn)
	}
	container := Container(objType)
	if container == "" {
		return TUnknown
	}
	sig, ok := v.reg.Function(container + "." + m.Property)
	if !ok {
		v.errorAt(m.PropPos, len(m.Property), CodeUnknownMember,
			fmt.Sprintf("Unknown method '%s' for a value of type '%s'", m.Property, objType)+
				didYouMean(closest(m.Property, v.reg.NamespaceMembers(container), 3)))
		return TUnknown
	}
	v.checkBuiltinCall(sig, c, all, 1)
	return v.builtinReturn(sig, c, all, 1)
}

func (v *Validator) unresolvedCall(c *CallExpr, name string) {
	pos := c.Callee.Position()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		ns := name[:i]
		if v.reg.IsNamespace(ns) {
			v.errorAt(pos, len(name), CodeUndefined,
				fmt.Sprintf("Unknown function '%s'", name)+
					didYouMean(qualify(ns, closest(name[i+1:], v.reg.NamespaceMembers(ns), 3))))
			return
		}
		v.errorAt(pos, len(name), CodeUndefined, fmt.Sprintf("Undefined function '%s'", name))
		return
	}
	if sym := v.syms.Lookup(name); sym != nil {
		sym.Used = true
		v.errorAt(pos, len(name), CodeNotCallable, fmt.Sprintf("'%s' is not a function", name))
		return
	}
	var fnNames []string
	for n := range v.funcs {
		fnNames = append(fnNames, n)
	}
	for _, n := range v.reg.Names() {
		if _, ok := v.reg.Function(n); ok && !strings.Contains(n, ".") {
			fnNames = append(fnNames, n)
		}
	}
	v.errorAt(pos, len(name), CodeUndefined,
		fmt.Sprintf("Undefined function '%s'", name)+didYouMean(closest(name, fnNames, 2)))
}

// ──────────────────────────── argument checks ───────────────────────────

// boundArg is one call argument matched to a parameter slot. implicit counts
// receiver arguments prepended for method calls; they have no Arg node.
type boundArg struct {
	arg   *Arg
	typ   Type
	param int
}

// bindArgs matches arguments to parameters, reporting unknown and duplicate
// names. It returns the bound arguments and which parameters were supplied.
func (v *Validator) bindArgs(fnName string, params []string, c *CallExpr, types []Type, implicit int) ([]boundArg, map[int]bool) {
	supplied := make(map[int]bool)
	var out []boundArg
	pos := 0
	for i := 0; i < implicit; i++ {
		supplied[pos] = true
		out = append(out, boundArg{typ: types[i], param: pos})
		pos++
	}
	for i, a := range c.Args {
		t := types[i+implicit]
		if a.Name == "" {
			supplied[pos] = true
			out = append(out, boundArg{arg: a, typ: t, param: pos})
			pos++
			continue
		}
		idx := indexOf(params, a.Name)
		if idx < 0 {
			hint := ""
			if alias, ok := argAliases[a.Name]; ok && indexOf(params, alias) >= 0 {
				hint = alias
			} else {
				hint = closest(a.Name, params, 3)
			}
			v.errorAt(a.NamePos, len(a.Name), CodeUnknownArg,
				fmt.Sprintf("Unknown argument '%s' for '%s'", a.Name, fnName)+didYouMean(hint))
			continue
		}
		if supplied[idx] {
			v.errorAt(a.NamePos, len(a.Name), CodeDuplicateArg,
				fmt.Sprintf("Argument '%s' of '%s' was already supplied", a.Name, fnName))
			continue
		}
		supplied[idx] = true
		out = append(out, boundArg{arg: a, typ: t, param: idx})
	}
	return out, supplied
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

func (v *Validator) checkBuiltinCall(sig *FunctionSig, c *CallExpr, types []Type, implicit int) {
	pos := c.Callee.Position()
	total := len(c.Args) + implicit
	if !sig.Variadic && total > len(sig.Params) {
		v.errorAt(pos, len(sig.Name), CodeTooManyArgs,
			fmt.Sprintf("Too many arguments for '%s': expected at most %d, got %d", sig.Name, len(sig.Params)-implicit, total-implicit))
		return
	}

	bound, supplied := v.bindArgs(sig.Name, sig.ParamNames(), c, types, implicit)
	for i, p := range sig.Params {
		if p.Required && !supplied[i] {
			v.errorAt(pos, len(sig.Name), CodeMissingArg,
				fmt.Sprintf("Missing required parameter '%s' for '%s'", p.Name, sig.Name))
		}
	}
	for _, b := range bound {
		if b.arg == nil || len(sig.Params) == 0 {
			continue
		}
		pi := b.param
		if pi >= len(sig.Params) {
			pi = len(sig.Params) - 1 // variadic tail
		}
		v.checkArgType(sig.Name, sig.Params[pi], b)
	}

	if sig.TopLevelOnly && v.blockDepth > 0 {
		v.errorAt(pos, len(sig.Name), CodeTopLevelOnly,
			fmt.Sprintf("Cannot call '%s' from a local scope; it may only be used at the top level of the script", sig.Name))
	}
	if sig.Namespace == "ta" && v.condDepth > 0 {
		v.warnAt(pos, len(sig.Name), CodeConditional,
			fmt.Sprintf("The function '%s' should be called on each calculation for consistency. It is recommended to extract the call from this scope", sig.Name))
	}
}

func (v *Validator) checkArgType(fnName string, p ParamSig, b boundArg) {
	want := Normalize(p.Type)
	if !primitiveParamTypes[Base(want)] || b.typ == TUnknown || b.typ == TNA {
		return
	}
	if IsTuple(b.typ) || b.typ == TVoid || !IsAssignable(Base(b.typ), Base(want)) {
		v.errorAt(b.arg.Value.Position(), 1, CodeArgType,
			fmt.Sprintf("Argument '%s' of '%s' expects '%s', got '%s'", p.Name, fnName, p.Type, b.typ))
	}
}

func (v *Validator) checkUserCall(fn *FuncDecl, c *CallExpr, types []Type, implicit int) {
	pos := c.Callee.Position()
	total := len(c.Args) + implicit
	if total > len(fn.Params) {
		v.errorAt(pos, len(fn.Name), CodeTooManyArgs,
			fmt.Sprintf("Too many arguments for '%s': expected at most %d, got %d", fn.Name, len(fn.Params)-implicit, total-implicit))
		return
	}
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	bound, supplied := v.bindArgs(fn.Name, names, c, types, implicit)
	for i, p := range fn.Params {
		if p.Default == nil && !supplied[i] {
			v.errorAt(pos, len(fn.Name), CodeMissingArg,
				fmt.Sprintf("Missing required parameter '%s' for '%s'", p.Name, fn.Name))
		}
	}
	for _, b := range bound {
		p := fn.Params[b.param]
		if b.arg == nil || p.Type == nil {
			continue
		}
		want := FromTypeRef(p.Type)
		if !IsAssignable(b.typ, want) && !CanPromote(want, b.typ) {
			v.errorAt(b.arg.Value.Position(), 1, CodeArgType,
				fmt.Sprintf("Argument '%s' of '%s' expects '%s', got '%s'", p.Name, fn.Name, want, b.typ))
		}
	}
}

// checkConstructor checks Type.new(...) arguments against the type's fields.
// Every field is optional.
func (v *Validator) checkConstructor(td *TypeDecl, c *CallExpr, types []Type) {
	name := td.Name + ".new"
	if len(c.Args) > len(td.Fields) {
		v.errorAt(c.Callee.Position(), len(name), CodeTooManyArgs,
			fmt.Sprintf("Too many arguments for '%s': expected at most %d, got %d", name, len(td.Fields), len(c.Args)))
		return
	}
	bound, _ := v.bindArgs(name, td.FieldNames(), c, types, 0)
	for _, b := range bound {
		f := td.Fields[b.param]
		if want := FromTypeRef(f.Type); !IsAssignable(b.typ, want) && !CanPromote(want, b.typ) {
			v.errorAt(b.arg.Value.Position(), 1, CodeArgType,
				fmt.Sprintf("Argument '%s' of '%s' expects '%s', got '%s'", f.Name, name, want, b.typ))
		}
	}
}

// ───────────────────────────── return types ─────────────────────────────

func (v *Validator) userReturn(fn *FuncDecl) Type {
	if t, ok := v.funcReturns[fn]; ok {
		return t
	}
	return TUnknown
}

func (v *Validator) builtinReturn(sig *FunctionSig, c *CallExpr, types []Type, implicit int) Type {
	if sig.RemoteData && len(types) >= 3 {
		return v.remoteDataType(sig, c, types, implicit)
	}
	if sig.Polymorphic {
		if t, ok := v.polyArg(sig, c, types, implicit); ok {
			return sig.ResolvePolyReturn(t)
		}
	}
	return sig.ReturnType()
}

// remoteDataType types request.security-style calls from their expression
// argument: an array literal yields a tuple of its element types.
func (v *Validator) remoteDataType(sig *FunctionSig, c *CallExpr, types []Type, implicit int) Type {
	var expr Expr
	var t Type = TUnknown
	for i, a := range c.Args {
		if a.Name == "expression" {
			expr, t = a.Value, types[i+implicit]
		}
	}
	if expr == nil {
		idx, _ := sig.Param("expression")
		pos := implicit
		for i, a := range c.Args {
			if a.Name != "" {
				continue
			}
			if pos == idx {
				expr, t = a.Value, types[i+implicit]
			}
			pos++
		}
	}
	if expr == nil && len(c.Args) > 0 {
		last := c.Args[len(c.Args)-1]
		expr, t = last.Value, types[len(types)-1]
	}
	if arr, ok := expr.(*ArrayLit); ok {
		elems := make([]Type, len(arr.Elems))
		for i, el := range arr.Elems {
			elems[i] = v.infer(el)
		}
		return TupleOf(elems)
	}
	return t
}

// polyArg finds the type of the argument deciding a polymorphic return: by
// parameter name, then by the parameter's position, then the first argument.
func (v *Validator) polyArg(sig *FunctionSig, c *CallExpr, types []Type, implicit int) (Type, bool) {
	if len(types) == 0 {
		return TUnknown, false
	}
	for i, a := range c.Args {
		if a.Name == sig.TypeParam {
			return types[i+implicit], true
		}
	}
	idx, _ := sig.Param(sig.TypeParam)
	if idx < implicit {
		return types[idx], true
	}
	pos := implicit
	for i, a := range c.Args {
		if a.Name != "" {
			continue
		}
		if pos == idx {
			return types[i+implicit], true
		}
		pos++
	}
	return types[0], true
}
