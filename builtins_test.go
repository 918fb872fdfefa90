// builtins_test.go
package pine

import (
	"strings"
	"testing"
)

func loadRegistry(t *testing.T, src string) *Registry {
	t.Helper()
	reg, err := LoadBuiltins(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadBuiltins: %v", err)
	}
	return reg
}

func Test_Builtins_Default_Registry(t *testing.T) {
	reg := DefaultBuiltins()
	if reg != DefaultBuiltins() {
		t.Fatalf("the embedded registry must be loaded once")
	}

	sma, ok := reg.Function("ta.sma")
	if !ok {
		t.Fatalf("ta.sma missing")
	}
	if sma.Namespace != "ta" || sma.RequiredCount() != 2 || sma.ReturnType() != "series<float>" {
		t.Fatalf("ta.sma: %+v", sma)
	}
	if i, ok := sma.Param("length"); !ok || i != 1 {
		t.Fatalf("ta.sma length param index: %d %v", i, ok)
	}
	if got := sma.Signature(); got != "ta.sma(source: series int/float, length: series int) → series float" {
		t.Fatalf("signature: %q", got)
	}

	ind, _ := reg.Function("indicator")
	if !ind.TopLevelOnly || ind.ReturnType() != TVoid {
		t.Fatalf("indicator must be top-level-only and void: %+v", ind)
	}

	if typ, ok := reg.Variable("close"); !ok || typ != "series<float>" {
		t.Fatalf("close: %q %v", typ, ok)
	}
	if typ, ok := reg.Constant("color.red"); !ok || typ != TColor {
		t.Fatalf("color.red: %q %v", typ, ok)
	}
	if !reg.IsNamespace("ta") || reg.IsNamespace("close") {
		t.Fatalf("namespaces")
	}
	if !containsString(reg.NamespaceMembers("ta"), "sma") {
		t.Fatalf("ta members must include sma")
	}
}

func Test_Builtins_Polymorphic_Return(t *testing.T) {
	reg := DefaultBuiltins()
	if !reg.DeterminesReturnType("nz", 0) || reg.DeterminesReturnType("nz", 1) || reg.DeterminesReturnType("ta.sma", 0) {
		t.Fatalf("DeterminesReturnType")
	}
	nz, _ := reg.Function("nz")
	if got := nz.ResolvePolyReturn("series<int>"); got != "series<int>" {
		t.Fatalf("nz(series int): %q", got)
	}
	if got := nz.ResolvePolyReturn(TUnknown); got != TUnknown {
		t.Fatalf("unknown argument: %q", got)
	}

	templates := map[string]Type{
		"simple T": "simple<int>",
		"series T": "series<int>",
		"elem T":   TUnknown,
		"array<T>": "array<int>",
	}
	for tmpl, want := range templates {
		f := &FunctionSig{PolyReturns: tmpl, Returns: "float"}
		if got := f.ResolvePolyReturn(TInt); got != want {
			t.Fatalf("template %q: want %q, got %q", tmpl, want, got)
		}
	}
	f := &FunctionSig{PolyReturns: "elem T"}
	if got := f.ResolvePolyReturn("array<color>"); got != TColor {
		t.Fatalf("elem T of array<color>: %q", got)
	}
}

func Test_Builtins_Load_Custom_Table(t *testing.T) {
	reg := loadRegistry(t, `{
  "functions": [
    {"name": "f", "params": ["a:int", "b?:float"], "returns": "int"},
    {"name": "k.g", "params": ["x:series T"], "returns": "", "poly": "x"}
  ],
  "variables": {"v": "series float"},
  "constants": {"k.x.y": "const int"}
}`)
	if got := reg.Names(); strings.Join(got, ",") != "f,k.g,k.x.y,v" {
		t.Fatalf("names must be sorted: %v", got)
	}
	f, _ := reg.Function("f")
	if f.RequiredCount() != 1 || f.Params[1].Required || f.Params[1].Type != "float" {
		t.Fatalf("optional parameter: %+v", f.Params)
	}
	if got := f.Signature(); got != "f(a: int, b?: float) → int" {
		t.Fatalf("signature: %q", got)
	}
	g, _ := reg.Function("k.g")
	if g.ReturnType() != TUnknown {
		t.Fatalf("a polymorphic function without a static return is unknown, got %q", g.ReturnType())
	}
	// nested namespaces register their parents
	if !reg.IsNamespace("k.x") || !reg.IsNamespace("k") {
		t.Fatalf("nested namespaces")
	}
	if got := strings.Join(reg.NamespaceMembers("k"), ","); got != "g,x" {
		t.Fatalf("members of k: %q", got)
	}
}

func Test_Builtins_Load_Errors(t *testing.T) {
	cases := map[string]string{
		`{"functionz": []}`: "unknown field",
		`{"functions": [{"name": "f", "params": []}, {"name": "f", "params": []}]}`: `duplicate function "f"`,
		`{"functions": [{"name": "f", "params": ["a"]}]}`:                           "want name:type",
		`{"functions": [{"name": "f", "params": ["?:int"]}]}`:                       "empty name",
		`{"functions": [{"name": "f", "params": ["a:int"], "poly": "b"}]}`:          `poly parameter "b" not declared`,
		`not json`: "builtins:",
	}
	for src, want := range cases {
		_, err := LoadBuiltins(strings.NewReader(src))
		if err == nil {
			t.Fatalf("want error for %s", src)
		}
		mustContain(t, err.Error(), want)
	}
}

func Test_Builtins_Describe(t *testing.T) {
	reg := DefaultBuiltins()
	type tc struct {
		name, kind, detail string
	}
	cases := []tc{
		{"close", "variable", "series<float>"},
		{"color.red", "constant", "color"},
		{"ta.sma", "function", "ta.sma(source: series int/float, length: series int) → series float"},
	}
	for _, c := range cases {
		kind, detail, ok := reg.Lookup(c.name)
		if !ok || kind != c.kind || detail != c.detail {
			t.Fatalf("Lookup(%q): %q %q %v", c.name, kind, detail, ok)
		}
	}
	kind, detail, ok := Describe(reg, "ta")
	if !ok || kind != "namespace" || !strings.Contains(detail, "sma") {
		t.Fatalf("namespace: %q %q %v", kind, detail, ok)
	}
	if _, _, ok := Describe(reg, "nope"); ok {
		t.Fatalf("unknown name must not be described")
	}
}
