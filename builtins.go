// builtins.go — the builtin symbol registry.
//
// The registry is a static description of the language's standard library:
// function signatures, builtin variables and named constants. It is loaded
// once from the embedded builtins.json and shared read-only by every
// validation; nothing in this package mutates it after load.
//
// builtins.json layout:
//
//	{
//	  "functions": [
//	    {"name": "ta.sma", "params": ["source:series float", "length:series int"],
//	     "returns": "series float"},
//	    {"name": "nz", "params": ["source:series T", "replacement?:series T"],
//	     "returns": "series float", "poly": "source", "polyReturns": "T"}
//	  ],
//	  "variables": {"close": "series float"},
//	  "constants": {"color.red": "const color"}
//	}
//
// A parameter is "name:type"; a "?" after the name marks it optional.
// "poly" names the parameter whose argument type decides the return type and
// "polyReturns" is the template applied to it (see ResolvePolyReturn).
package pine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed builtins.json
var builtinsJSON []byte

// ParamSig is one declared parameter of a builtin function.
type ParamSig struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// FunctionSig describes a builtin function.
type FunctionSig struct {
	Name         string     `json:"name"`
	Namespace    string     `json:"namespace,omitempty"`
	Params       []ParamSig `json:"params"`
	Returns      string     `json:"returns"`
	Variadic     bool       `json:"variadic,omitempty"`
	Polymorphic  bool       `json:"polymorphic,omitempty"`
	TypeParam    string     `json:"typeParam,omitempty"`
	PolyReturns  string     `json:"polyReturns,omitempty"`
	TopLevelOnly bool       `json:"topLevelOnly,omitempty"`
	RemoteData   bool       `json:"remoteData,omitempty"`
	Doc          string     `json:"doc,omitempty"`
}

// ReturnType is the static (non-polymorphic) return type. An empty "returns"
// is void, except for functions whose result depends on their arguments.
func (f *FunctionSig) ReturnType() Type {
	if f.Returns == "" {
		if f.Polymorphic || f.RemoteData {
			return TUnknown
		}
		return TVoid
	}
	return Normalize(f.Returns)
}

// Param returns the index of the named parameter.
func (f *FunctionSig) Param(name string) (int, bool) {
	for i, p := range f.Params {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// RequiredCount is the number of leading required parameters.
func (f *FunctionSig) RequiredCount() int {
	n := 0
	for _, p := range f.Params {
		if p.Required {
			n++
		}
	}
	return n
}

// ParamNames lists the declared parameter names in order.
func (f *FunctionSig) ParamNames() []string {
	out := make([]string, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Name
	}
	return out
}

// Signature renders "name(a, b?) → T" for hover text and the HTTP API.
func (f *FunctionSig) Signature() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if !p.Required {
			b.WriteByte('?')
		}
		if p.Type != "" {
			b.WriteString(": ")
			b.WriteString(p.Type)
		}
	}
	if f.Variadic {
		b.WriteString(", ...")
	}
	b.WriteString(") → ")
	if f.Returns == "" {
		b.WriteString("void")
	} else {
		b.WriteString(f.Returns)
	}
	return b.String()
}

// ResolvePolyReturn applies the function's return template to the type of
// its determining argument:
//
//	T        the argument type
//	simple T simple<base>
//	series T series<base>
//	elem T   element type of an array/matrix argument
//	array<T> array of the argument's base type
func (f *FunctionSig) ResolvePolyReturn(arg Type) Type {
	if arg == TUnknown {
		return TUnknown
	}
	switch f.PolyReturns {
	case "", "T":
		return arg
	case "simple T":
		return Simple(Base(arg))
	case "series T":
		return Series(Base(arg))
	case "elem T":
		return ElemType(arg)
	case "array<T>":
		return ArrayOf(Base(arg))
	}
	return f.ReturnType()
}

// Builtins is the read-only lookup interface the validator consumes.
type Builtins interface {
	Function(name string) (*FunctionSig, bool)
	Variable(name string) (Type, bool)
	Constant(name string) (Type, bool)
	NamespaceMembers(ns string) []string
	IsNamespace(name string) bool
	DeterminesReturnType(fn string, index int) bool
	Names() []string
}

// Registry is the concrete Builtins implementation.
type Registry struct {
	functions  map[string]*FunctionSig
	variables  map[string]Type
	constants  map[string]Type
	namespaces map[string][]string
	names      []string
}

var _ Builtins = (*Registry)(nil)

type registryFile struct {
	Functions []struct {
		Name        string   `json:"name"`
		Params      []string `json:"params"`
		Returns     string   `json:"returns"`
		Variadic    bool     `json:"variadic"`
		Poly        string   `json:"poly"`
		PolyReturns string   `json:"polyReturns"`
		TopLevel    bool     `json:"topLevel"`
		Remote      bool     `json:"remote"`
		Doc         string   `json:"doc"`
	} `json:"functions"`
	Variables map[string]string `json:"variables"`
	Constants map[string]string `json:"constants"`
}

// LoadBuiltins reads a registry in the builtins.json layout.
func LoadBuiltins(r io.Reader) (*Registry, error) {
	var f registryFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("builtins: %w", err)
	}
	reg := &Registry{
		functions:  make(map[string]*FunctionSig, len(f.Functions)),
		variables:  make(map[string]Type, len(f.Variables)),
		constants:  make(map[string]Type, len(f.Constants)),
		namespaces: make(map[string][]string),
	}
	for _, fn := range f.Functions {
		if _, dup := reg.functions[fn.Name]; dup {
			return nil, fmt.Errorf("builtins: duplicate function %q", fn.Name)
		}
		sig := &FunctionSig{
			Name:         fn.Name,
			Returns:      fn.Returns,
			Variadic:     fn.Variadic,
			Polymorphic:  fn.Poly != "",
			TypeParam:    fn.Poly,
			PolyReturns:  fn.PolyReturns,
			TopLevelOnly: fn.TopLevel,
			RemoteData:   fn.Remote,
			Doc:          fn.Doc,
		}
		if i := strings.LastIndexByte(fn.Name, '.'); i > 0 {
			sig.Namespace = fn.Name[:i]
		}
		for _, p := range fn.Params {
			ps, err := parseParamSig(p)
			if err != nil {
				return nil, fmt.Errorf("builtins: %s: %w", fn.Name, err)
			}
			sig.Params = append(sig.Params, ps)
		}
		if sig.Polymorphic {
			if _, ok := sig.Param(sig.TypeParam); !ok {
				return nil, fmt.Errorf("builtins: %s: poly parameter %q not declared", fn.Name, sig.TypeParam)
			}
		}
		reg.functions[fn.Name] = sig
	}
	for name, t := range f.Variables {
		reg.variables[name] = Normalize(t)
	}
	for name, t := range f.Constants {
		reg.constants[name] = Normalize(t)
	}

	seen := map[string]bool{}
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		reg.names = append(reg.names, name)
		if i := strings.LastIndexByte(name, '.'); i > 0 {
			ns := name[:i]
			reg.namespaces[ns] = append(reg.namespaces[ns], name[i+1:])
			// parent namespaces of nested ones (strategy.direction) are namespaces too
			for j := strings.LastIndexByte(ns, '.'); j > 0; j = strings.LastIndexByte(ns, '.') {
				parent := ns[:j]
				if !containsString(reg.namespaces[parent], ns[j+1:]) {
					reg.namespaces[parent] = append(reg.namespaces[parent], ns[j+1:])
				}
				ns = parent
			}
		}
	}
	for name := range reg.functions {
		add(name)
	}
	for name := range reg.variables {
		add(name)
	}
	for name := range reg.constants {
		add(name)
	}
	sort.Strings(reg.names)
	for ns := range reg.namespaces {
		sort.Strings(reg.namespaces[ns])
	}
	return reg, nil
}

func parseParamSig(s string) (ParamSig, error) {
	name, typ, ok := strings.Cut(s, ":")
	if !ok {
		return ParamSig{}, fmt.Errorf("parameter %q: want name:type", s)
	}
	ps := ParamSig{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ), Required: true}
	if strings.HasSuffix(ps.Name, "?") {
		ps.Name = strings.TrimSuffix(ps.Name, "?")
		ps.Required = false
	}
	if ps.Name == "" {
		return ParamSig{}, fmt.Errorf("parameter %q: empty name", s)
	}
	return ps, nil
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// DefaultBuiltins returns the embedded registry. The embedded table is part of
// the binary, so a decoding failure is a build defect and panics.
func DefaultBuiltins() *Registry {
	defaultOnce.Do(func() {
		reg, err := LoadBuiltins(strings.NewReader(string(builtinsJSON)))
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

func (r *Registry) Function(name string) (*FunctionSig, bool) {
	f, ok := r.functions[name]
	return f, ok
}

func (r *Registry) Variable(name string) (Type, bool) {
	t, ok := r.variables[name]
	return t, ok
}

func (r *Registry) Constant(name string) (Type, bool) {
	t, ok := r.constants[name]
	return t, ok
}

// NamespaceMembers lists the direct members of ns ("ta" → "sma", "ema", ...).
func (r *Registry) NamespaceMembers(ns string) []string { return r.namespaces[ns] }

func (r *Registry) IsNamespace(name string) bool {
	_, ok := r.namespaces[name]
	return ok
}

// DeterminesReturnType reports whether the index-th positional argument of
// fn decides its return type.
func (r *Registry) DeterminesReturnType(fn string, index int) bool {
	f, ok := r.functions[fn]
	if !ok || !f.Polymorphic {
		return false
	}
	i, _ := f.Param(f.TypeParam)
	return i == index
}

// Names lists every registered name, sorted.
func (r *Registry) Names() []string { return r.names }

// Lookup describes any registered name for hover and the HTTP API.
func (r *Registry) Lookup(name string) (kind string, detail string, ok bool) {
	return Describe(r, name)
}

// Describe classifies name in reg as "function", "variable", "constant" or
// "namespace" and renders a one-line detail for it.
func Describe(reg Builtins, name string) (kind string, detail string, ok bool) {
	if f, ok := reg.Function(name); ok {
		return "function", f.Signature(), true
	}
	if t, ok := reg.Variable(name); ok {
		return "variable", string(t), true
	}
	if t, ok := reg.Constant(name); ok {
		return "constant", string(t), true
	}
	if reg.IsNamespace(name) {
		return "namespace", strings.Join(reg.NamespaceMembers(name), ", "), true
	}
	return "", "", false
}
