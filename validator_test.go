// validator_test.go
package pine

import (
	"encoding/json"
	"strings"
	"testing"
)

// --- helpers ----------------------------------------------------------------

func validateSrc(t *testing.T, src string) *Result {
	t.Helper()
	ts, lerrs, version := Tokenize(src)
	if len(lerrs) > 0 {
		t.Fatalf("lex error: %v\nsource:\n%s", lerrs[0], src)
	}
	prog, perrs := Parse(ts)
	if len(perrs) > 0 {
		t.Fatalf("parse error: %v\nsource:\n%s", perrs[0], src)
	}
	return Validate(prog, Options{Version: version})
}

func withCode(diags []Diagnostic, code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func errorsIn(r *Result) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func dump(diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(FormatDiagnostic(d, "", ""))
	}
	return b.String()
}

func wantClean(t *testing.T, src string) *Result {
	t.Helper()
	r := validateSrc(t, src)
	if len(r.Diagnostics) > 0 {
		t.Fatalf("expected no diagnostics, got:\n%s\nsource:\n%s", dump(r.Diagnostics), src)
	}
	return r
}

func wantNoErrors(t *testing.T, src string) *Result {
	t.Helper()
	r := validateSrc(t, src)
	if errs := errorsIn(r); len(errs) > 0 {
		t.Fatalf("expected no errors, got:\n%s\nsource:\n%s", dump(errs), src)
	}
	return r
}

// wantOnly asserts exactly one diagnostic with code and severity and returns it.
func wantOnly(t *testing.T, r *Result, code string, sev Severity, sub string) Diagnostic {
	t.Helper()
	got := withCode(r.Diagnostics, code)
	if len(got) != 1 {
		t.Fatalf("want exactly one %q diagnostic, got %d:\n%s", code, len(got), dump(r.Diagnostics))
	}
	if got[0].Severity != sev {
		t.Fatalf("want severity %v for %q, got %v", sev, code, got[0].Severity)
	}
	if !strings.Contains(got[0].Message, sub) {
		t.Fatalf("want message containing %q, got %q", sub, got[0].Message)
	}
	return got[0]
}

func symbolType(t *testing.T, r *Result, name string) Type {
	t.Helper()
	var found *Symbol
	for _, s := range r.Symbols {
		if s.Name == name {
			found = s
		}
	}
	if found == nil {
		t.Fatalf("no symbol %q", name)
	}
	return found.Type
}

// --- scopes -----------------------------------------------------------------

func Test_Validator_If_Does_Not_Open_A_Scope(t *testing.T) {
	wantClean(t, `if true
    x = 1
else
    x = 2
plot(x)`)
}

func Test_Validator_Loop_Body_Is_A_Scope(t *testing.T) {
	r := validateSrc(t, `for i = 0 to 3
    inner = i * 2
    plot(inner)
plot(inner)`)
	wantOnly(t, r, CodeUndefined, SeverityError, "Undefined variable 'inner'")
}

func Test_Validator_Function_Body_Forward_Reference(t *testing.T) {
	wantClean(t, `f(a) =>
    b = c + a
    c = 2
    b
plot(f(1))`)
}

func Test_Validator_Function_Return_Type_Visible_To_Callers(t *testing.T) {
	r := wantNoErrors(t, `half(series float x) => x / 2.0
caption() =>
    s = "bar"
    s
h = half(close)
l = caption()
plot(h)
plot(close, title=l)`)
	if got := symbolType(t, r, "h"); got != "series<float>" {
		t.Fatalf("return type of half: want series<float>, got %q", got)
	}
	if got := symbolType(t, r, "l"); got != TString {
		t.Fatalf("implicit return of caption: want string, got %q", got)
	}
}

func Test_Validator_Switch_Case_Locals_Stay_In_Case(t *testing.T) {
	r := validateSrc(t, `x = switch
    close > open =>
        d = close - open
        d * 2
    => 0.0
plot(x)
plot(d)`)
	d := wantOnly(t, r, CodeUndefined, SeverityError, "Undefined variable 'd'")
	if d.Line != 7 {
		t.Fatalf("undefined 'd' reported on line %d, want 7", d.Line)
	}
	if got := symbolType(t, r, "x"); got != "series<float>" {
		t.Fatalf("switch result: want series<float>, got %q", got)
	}
}

// --- calls ------------------------------------------------------------------

func Test_Validator_Too_Many_Arguments_Reported_Once(t *testing.T) {
	r := validateSrc(t, `cond = close > open
alertcondition(cond, 1, 2, 3, 4)`)
	wantOnly(t, r, CodeTooManyArgs, SeverityError, "Too many arguments for 'alertcondition': expected at most 3, got 5")
	if n := len(errorsIn(r)); n != 1 {
		t.Fatalf("want exactly one error, got %d:\n%s", n, dump(r.Diagnostics))
	}
}

func Test_Validator_Missing_Required_Argument_Reported_Once(t *testing.T) {
	r := validateSrc(t, `input.string()`)
	wantOnly(t, r, CodeMissingArg, SeverityError, "Missing required parameter 'defval' for 'input.string'")
	if n := len(errorsIn(r)); n != 1 {
		t.Fatalf("want exactly one error, got %d:\n%s", n, dump(r.Diagnostics))
	}
}

func Test_Validator_Unknown_Argument_Suggests_Alias(t *testing.T) {
	r := validateSrc(t, `plotshape(true, shape=shape.circle)`)
	d := wantOnly(t, r, CodeUnknownArg, SeverityError, "Unknown argument 'shape' for 'plotshape'")
	mustContain(t, d.Message, "Did you mean 'style'?")
	if d.Line != 1 || d.Col != 17 || d.Length != 5 {
		t.Fatalf("position of unknown argument: %d:%d len %d", d.Line, d.Col, d.Length)
	}
}

func Test_Validator_Duplicate_Argument(t *testing.T) {
	r := validateSrc(t, `plot(close, title="a", title="b")`)
	wantOnly(t, r, CodeDuplicateArg, SeverityError, "Argument 'title' of 'plot' was already supplied")
}

func Test_Validator_Argument_Type(t *testing.T) {
	r := validateSrc(t, `plot("text")`)
	wantOnly(t, r, CodeArgType, SeverityError, "Argument 'series' of 'plot' expects 'series int/float', got 'string'")
}

func Test_Validator_User_Function_Arguments(t *testing.T) {
	r := validateSrc(t, `scale(float x, factor = 2) => x * factor
a = scale(1.0)
b = scale(1.0, 2, 3)
c = scale()
plot(a + b + c)`)
	wantOnly(t, r, CodeTooManyArgs, SeverityError, "Too many arguments for 'scale': expected at most 2, got 3")
	wantOnly(t, r, CodeMissingArg, SeverityError, "Missing required parameter 'x' for 'scale'")
}

func Test_Validator_Undefined_Function_And_Namespace_Member(t *testing.T) {
	r := validateSrc(t, `a = ta.smaa(close, 14)
b = plott(close)
plot(a + b)`)
	undef := withCode(r.Diagnostics, CodeUndefined)
	if len(undef) != 2 {
		t.Fatalf("want 2 undefined diagnostics, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, undef[0].Message, "Unknown function 'ta.smaa'. Did you mean 'ta.sma'?")
	mustContain(t, undef[1].Message, "Undefined function 'plott'. Did you mean 'plot'?")
}

func Test_Validator_Unknown_Namespace_Member(t *testing.T) {
	r := validateSrc(t, `c = color.redd
plot(close, color=c)`)
	d := wantOnly(t, r, CodeUnknownMember, SeverityError, "'redd' is not a member of 'color'")
	mustContain(t, d.Message, "Did you mean 'color.red'?")
}

func Test_Validator_Polymorphic_And_Generic_Returns(t *testing.T) {
	r := wantNoErrors(t, `x = math.abs(-5)
y = nz(close)
arr = array.new<float>()
arr.push(1.0)
plot(x + y)`)
	if got := symbolType(t, r, "x"); got != TInt {
		t.Fatalf("math.abs(int): want int, got %q", got)
	}
	if got := symbolType(t, r, "y"); got != "series<float>" {
		t.Fatalf("nz(series float): want series<float>, got %q", got)
	}
	if got := symbolType(t, r, "arr"); got != "array<float>" {
		t.Fatalf("array.new<float>: want array<float>, got %q", got)
	}

	// named argument first, then the determining parameter's position
	r = wantNoErrors(t, `a = nz(replacement = 0, source = close)
b = ta.valuewhen(close > open, bar_index, 0)
plot(a + b)`)
	if got := symbolType(t, r, "a"); got != "series<float>" {
		t.Fatalf("nz(source = close): want series<float>, got %q", got)
	}
	if got := symbolType(t, r, "b"); got != "series<int>" {
		t.Fatalf("ta.valuewhen(_, bar_index, _): want series<int>, got %q", got)
	}
}

func Test_Validator_Unknown_Method_On_Container(t *testing.T) {
	r := validateSrc(t, `arr = array.new<int>()
arr.pusj(1)`)
	d := wantOnly(t, r, CodeUnknownMember, SeverityError, "Unknown method 'pusj' for a value of type 'array<int>'")
	mustContain(t, d.Message, "Did you mean 'push'?")
}

func Test_Validator_Remote_Data_Tuple(t *testing.T) {
	r := wantNoErrors(t, `[o, c] = request.security(syminfo.tickerid, "D", [open, close])
plot(o + c)`)
	if got := symbolType(t, r, "o"); got != "series<float>" {
		t.Fatalf("tuple element from request.security: want series<float>, got %q", got)
	}

	r = wantNoErrors(t, `v = request.security(syminfo.tickerid, "D", close)
[h, l] = request.security(syminfo.tickerid, "W", expression = [high, low])
plot(v + h - l)`)
	if got := symbolType(t, r, "v"); got != "series<float>" {
		t.Fatalf("plain expression from request.security: want series<float>, got %q", got)
	}
	if got := symbolType(t, r, "l"); got != "series<float>" {
		t.Fatalf("named tuple expression: want series<float>, got %q", got)
	}
}

func Test_Validator_Top_Level_Only_Calls(t *testing.T) {
	r := validateSrc(t, `if close > open
    plot(close)
f() =>
    hline(50)
f()`)
	got := withCode(r.Diagnostics, CodeTopLevelOnly)
	if len(got) != 2 {
		t.Fatalf("want 2 top-level-only errors, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, got[0].Message, "Cannot call 'plot' from a local scope")
	mustContain(t, got[1].Message, "Cannot call 'hline' from a local scope")
}

func Test_Validator_Top_Level_Only_In_Switch_Cases(t *testing.T) {
	for _, src := range []string{
		"x = switch\n    close > open => plot(close)\n    => na\n",
		"x = switch\n    close > open =>\n        plot(close)\n    => na\n",
	} {
		r := validateSrc(t, src)
		got := withCode(r.Diagnostics, CodeTopLevelOnly)
		if len(got) != 1 {
			t.Fatalf("want 1 top-level-only error, got:\n%s\nsource:\n%s", dump(r.Diagnostics), src)
		}
		mustContain(t, got[0].Message, "Cannot call 'plot' from a local scope")
	}
}

func Test_Validator_Conditional_TA_Call_Warning(t *testing.T) {
	r := validateSrc(t, `x = close > open ? ta.sma(close, 14) : close
plot(x)`)
	wantOnly(t, r, CodeConditional, SeverityWarning, "The function 'ta.sma' should be called on each calculation")

	wantClean(t, `x = ta.sma(close, 14)
plot(close > open ? x : close)`)
}

// --- types ------------------------------------------------------------------

func Test_Validator_Type_Mismatch_On_Reassignment(t *testing.T) {
	r := validateSrc(t, `var int n = 0
n := "text"
plot(n)`)
	wantOnly(t, r, CodeTypeMismatch, SeverityError, "Type mismatch: cannot assign 'string' to 'n' of type 'int'")
}

func Test_Validator_Promotion_Is_Not_An_Error(t *testing.T) {
	r := wantClean(t, `var float level = 0.0
level := close
plot(level)`)
	if got := symbolType(t, r, "level"); got != "series<float>" {
		t.Fatalf("promoted type: want series<float>, got %q", got)
	}
}

func Test_Validator_Declared_Type_Mismatch(t *testing.T) {
	r := validateSrc(t, `bool flag = 1.5
plot(close, title=flag ? "a" : "b")`)
	wantOnly(t, r, CodeTypeMismatch, SeverityError, "cannot assign 'float' to 'flag' of type 'bool'")
}

func Test_Validator_Ternary_Incompatible_Branches(t *testing.T) {
	r := validateSrc(t, `x = 1 > 0 ? close : color.red
plot(x)`)
	wantOnly(t, r, CodeTernary, SeverityError, "Ternary branches have incompatible types 'series<float>' and 'color'")
}

func Test_Validator_Operator_Types(t *testing.T) {
	r := validateSrc(t, `s = "a" + 1
b = true * 2
plot(close)`)
	got := withCode(r.Diagnostics, CodeOperator)
	if len(got) != 2 {
		t.Fatalf("want 2 operator errors, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, got[0].Message, "Operator '+' cannot be applied to 'string' and 'int'")
	mustContain(t, got[1].Message, "Operator '*' cannot be applied to 'bool' and 'int'")
}

func Test_Validator_Condition_Must_Be_Bool_From_V5(t *testing.T) {
	src := "if close\n    plot(close)\n"
	r := validateSrc(t, "//@version=5\n"+src)
	wantOnly(t, r, CodeCondition, SeverityError, "Condition of 'if' must be of type 'bool', got 'series<float>'")

	r = validateSrc(t, "//@version=4\n"+src)
	if len(withCode(r.Diagnostics, CodeCondition)) != 0 {
		t.Fatalf("v4 accepts numeric conditions:\n%s", dump(r.Diagnostics))
	}
}

func Test_Validator_Void_Value(t *testing.T) {
	r := validateSrc(t, `x = alert("boom")`)
	wantOnly(t, r, CodeVoid, SeverityError, "Cannot assign a value that does not return anything to 'x'")
}

func Test_Validator_Tuple_Arity(t *testing.T) {
	r := validateSrc(t, `[a, b] = ta.macd(close, 12, 26, 9)
plot(a + b)`)
	wantOnly(t, r, CodeTuple, SeverityError, "Tuple destructuring expects 2 values but the right side produces 3")

	r = validateSrc(t, `[a, b] = close
plot(a + b)`)
	wantOnly(t, r, CodeTuple, SeverityError, "Cannot destructure a value of type 'series<float>'")
}

func Test_Validator_Const_And_Builtin_Reassignment(t *testing.T) {
	r := validateSrc(t, `const int LIMIT = 5
LIMIT := 6
close := 1
f() => 1
f := 2
plot(LIMIT)`)
	got := withCode(r.Diagnostics, CodeConst)
	if len(got) != 3 {
		t.Fatalf("want 3 const-reassign errors, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, got[0].Message, "Cannot reassign the constant 'LIMIT'")
	mustContain(t, got[1].Message, "Cannot modify the builtin 'close'")
	mustContain(t, got[2].Message, "Cannot assign to the function 'f'")
}

func Test_Validator_Assign_To_Undeclared(t *testing.T) {
	r := validateSrc(t, `total = 0
totl := 5
plot(total)`)
	d := wantOnly(t, r, CodeUndefined, SeverityError, "Cannot assign to undeclared variable 'totl'")
	mustContain(t, d.Message, "Did you mean 'total'?")
}

func Test_Validator_Control_Flow(t *testing.T) {
	r := validateSrc(t, `break
continue
return 1`)
	got := withCode(r.Diagnostics, CodeControlFlow)
	if len(got) != 3 {
		t.Fatalf("want 3 control-flow errors, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, got[0].Message, "'break' used outside of a loop")
	mustContain(t, got[1].Message, "'continue' used outside of a loop")
	mustContain(t, got[2].Message, "'return' used outside of a function")

	wantClean(t, `for i = 0 to 3
    if i > 1
        break
    continue`)
}

// --- undefined / unused / advisories ------------------------------------------

func Test_Validator_Undefined_With_Suggestion(t *testing.T) {
	r := validateSrc(t, `length = 14
plot(ta.sma(close, lengthh))`)
	d := wantOnly(t, r, CodeUndefined, SeverityError, "Undefined variable 'lengthh'")
	mustContain(t, d.Message, "Did you mean 'length'?")
	if d.Line != 2 || d.Col != 20 || d.Length != 7 {
		t.Fatalf("position: %d:%d len %d", d.Line, d.Col, d.Length)
	}
}

func Test_Validator_Unused_Variable_Once_After_Walk(t *testing.T) {
	r := validateSrc(t, `a = 1
b = 2
plot(b)`)
	d := wantOnly(t, r, CodeUnused, SeverityWarning, "Variable 'a' is declared but never used")
	if d.Line != 1 || d.Col != 1 || d.Length != 1 {
		t.Fatalf("position: %d:%d len %d", d.Line, d.Col, d.Length)
	}

	// a use further down the file still counts
	wantClean(t, `a = 1
f() => a
plot(f())`)
}

func Test_Validator_Unused_Allowlist(t *testing.T) {
	wantClean(t, `_tmp = 1
unused = 2
version = 3`)

	ts, _, _ := Tokenize("keep = 1\ndrop = 2")
	prog, _ := Parse(ts)
	r := Validate(prog, Options{UnusedAllowlist: []string{"keep"}})
	wantOnly(t, r, CodeUnused, SeverityWarning, "'drop'")
}

func Test_Validator_Shadowed_Builtin(t *testing.T) {
	r := validateSrc(t, `high = 1
plot(high)`)
	wantOnly(t, r, CodeShadow, SeverityWarning, "Variable 'high' shadows the builtin variable of the same name")
}

func Test_Validator_Deprecated_Constant(t *testing.T) {
	r := validateSrc(t, `c = color.grey
plot(close, color=c)`)
	wantOnly(t, r, CodeDeprecated, SeverityWarning, "'color.grey' is deprecated; use 'color.gray' instead")
	if len(errorsIn(r)) != 0 {
		t.Fatalf("a deprecated constant is not an error:\n%s", dump(r.Diagnostics))
	}
}

func Test_Validator_Old_Version_Warning(t *testing.T) {
	r := validateSrc(t, "//@version=3\nplot(close)")
	wantOnly(t, r, CodeVersion, SeverityWarning, "Language version 3 is not supported")
}

// --- user types ---------------------------------------------------------------

func Test_Validator_User_Type_Fields_And_Constructor(t *testing.T) {
	r := validateSrc(t, `type Pivot
    float price = 0.0
    int bar
p = Pivot.new(1.5, 10)
plot(p.price)
q = Pivot.new(1.5, 10, 3)
z = p.prise
w = Pivot.new(bar = "x")`)
	wantOnly(t, r, CodeTooManyArgs, SeverityError, "Too many arguments for 'Pivot.new': expected at most 2, got 3")
	d := wantOnly(t, r, CodeUnknownMember, SeverityError, "'prise' is not a field of 'Pivot'")
	mustContain(t, d.Message, "Did you mean 'price'?")
	wantOnly(t, r, CodeArgType, SeverityError, "Argument 'bar' of 'Pivot.new' expects 'int', got 'string'")
	if got := symbolType(t, r, "p"); got != "Pivot" {
		t.Fatalf("constructor result: want Pivot, got %q", got)
	}
}

func Test_Validator_Type_Field_Defaults(t *testing.T) {
	r := validateSrc(t, `type Box
    int n = "x"
    int n`)
	got := withCode(r.Diagnostics, CodeTypeMismatch)
	if len(got) != 2 {
		t.Fatalf("want 2 type-mismatch errors, got:\n%s", dump(r.Diagnostics))
	}
	mustContain(t, got[0].Message, "cannot assign 'string' to field 'n' of type 'int'")
	mustContain(t, got[1].Message, "Field 'n' is declared more than once in 'Box'")
}

func Test_Validator_Enum_Members(t *testing.T) {
	r := validateSrc(t, `enum Dir
    up = "Up"
    down = 1
    flat
d = Dir.up
e = Dir.side
plot(close, title=d == Dir.flat ? "a" : "b")`)
	wantOnly(t, r, CodeTypeMismatch, SeverityError, "Enum field 'down' must have a string title, got 'int'")
	wantOnly(t, r, CodeUnknownMember, SeverityError, "'side' is not a member of the enum 'Dir'")
}

// --- result surface -----------------------------------------------------------

func Test_Validator_Diagnostics_Are_Sorted_And_Types_Recorded(t *testing.T) {
	prog := mustParse(t, `b = undefinedB
a = undefinedA + 1`)
	r := Validate(prog, Options{})
	errs := errorsIn(r)
	if len(errs) != 2 || errs[0].Line != 1 || errs[1].Line != 2 {
		t.Fatalf("diagnostics must be ordered by position:\n%s", dump(r.Diagnostics))
	}
	bin := prog.Stmts[1].(*VarDecl).Value
	if got, ok := r.Types[bin]; !ok || got != TUnknown {
		t.Fatalf("type of the failed binary expression: %q (recorded %v)", got, ok)
	}
	if !r.HasErrors() {
		t.Fatalf("HasErrors must be true")
	}
}

func Test_Validator_Nil_Program(t *testing.T) {
	r := Validate(nil, Options{})
	if len(r.Diagnostics) != 0 {
		t.Fatalf("nil program: %v", r.Diagnostics)
	}
}

func Test_Diagnostic_JSON_Shape(t *testing.T) {
	d := Diagnostic{Line: 3, Col: 7, Length: 2, Message: "m", Severity: SeverityWarning, Code: CodeUnused}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"line":3,"column":7,"length":2,"message":"m","severity":"warning","code":"unused"}`
	if string(b) != want {
		t.Fatalf("json:\nwant %s\ngot  %s", want, b)
	}
	var back Diagnostic
	if err := json.Unmarshal(b, &back); err != nil || back != d {
		t.Fatalf("unmarshal: %v %+v", err, back)
	}
	if err := json.Unmarshal([]byte(`{"severity":"fatal"}`), &back); err == nil {
		t.Fatalf("unknown severity must fail")
	}
}
