// validator.go — semantic analysis over a parsed Program.
//
// OVERVIEW
// --------
// Validate walks the top-level statements once, in order. Each statement binds
// the names it declares in the symbol table and asks infer.go for the types of
// the expressions it contains; diagnostics are appended as problems are found.
//
// Blocks
// ------
// Function and loop bodies get their own scope. Before a body is validated,
// collectDeclarations pre-registers every name it declares (recursing into if
// branches, which share the enclosing scope) so statements may refer to locals
// declared further down. `if` never opens a scope.
//
// Functions are visited twice. A quiet scratch pass binds the parameters,
// validates the body without reporting anything and records the return type;
// the scratch scope is then discarded and a real pass reports diagnostics.
// Calls later in the file see the function's return type.
//
// blockDepth counts enclosing blocks of any kind and gates top-level-only
// builtins; condDepth counts enclosing if branches, ternary arms and switch
// cases and gates the ta.* consistency warning.
//
// Unused variables are reported once, after the walk, from every symbol the
// table ever held.
package pine

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "unknown"
}

// MarshalText encodes the severity as "error" or "warning".
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts "error" and "warning".
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Diagnostic codes.
const (
	CodeSyntax        = "syntax"
	CodeUndefined     = "undefined"
	CodeTypeMismatch  = "type-mismatch"
	CodeOperator      = "operator-types"
	CodeTernary       = "ternary-branches"
	CodeTooManyArgs   = "too-many-args"
	CodeMissingArg    = "missing-arg"
	CodeUnknownArg    = "unknown-arg"
	CodeDuplicateArg  = "duplicate-arg"
	CodeArgType       = "arg-type"
	CodeNotCallable   = "not-callable"
	CodeTopLevelOnly  = "top-level-only"
	CodeConditional   = "conditional-call"
	CodeDeprecated    = "deprecated"
	CodeUnknownMember = "unknown-member"
	CodeUnused        = "unused"
	CodeShadow        = "shadow-builtin"
	CodeVersion       = "version"
	CodeTuple         = "tuple-arity"
	CodeConst         = "const-reassign"
	CodeControlFlow   = "control-flow"
	CodeVoid          = "void-value"
	CodeCondition     = "condition-type"
)

// Diagnostic is one semantic finding. Line and Col are 1-based.
type Diagnostic struct {
	Line     int      `json:"line"`
	Col      int      `json:"column"`
	Length   int      `json:"length"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
}

// Options configures a validation run.
type Options struct {
	// Version is the language version; 0 means DefaultLanguageVersion.
	Version int
	// Builtins is the registry; nil means DefaultBuiltins().
	Builtins Builtins
	// UnusedAllowlist names variables never reported as unused, in addition
	// to the fixed allowlist and names starting with "_".
	UnusedAllowlist []string
}

// Result is the outcome of a validation run.
type Result struct {
	Diagnostics []Diagnostic
	// Types maps every expression whose type was inferred to that type.
	Types map[Expr]Type
	// Symbols lists every user-declared symbol, in declaration order.
	Symbols []*Symbol
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// unusedAllowlist holds names scripts conventionally declare for the
// platform or for readers rather than for later reference.
var unusedAllowlist = map[string]bool{
	"_":       true,
	"unused":  true,
	"dummy":   true,
	"ignore":  true,
	"version": true,
}

// Validate checks prog and returns its diagnostics and inferred types. It
// never panics on malformed input.
func Validate(prog *Program, opts Options) *Result {
	return NewValidator(opts).Validate(prog)
}

// Validator holds the state of one validation run. It is not safe for
// concurrent use; build one per document.
type Validator struct {
	reg     Builtins
	version int
	allow   map[string]bool

	syms  *SymbolTable
	diags []Diagnostic
	types map[Expr]Type

	quiet      int // >0 inside scratch passes: no diagnostics, no memo
	blockDepth int
	condDepth  int
	loopDepth  int
	frames     []*funcFrame

	funcs       map[string]*FuncDecl
	methods     map[string]*FuncDecl
	funcReturns map[*FuncDecl]Type
	inferring   map[*FuncDecl]bool
	userTypes   map[string]*TypeDecl
}

type funcFrame struct {
	fn        *FuncDecl
	returns   Type
	hasReturn bool
}

// NewValidator builds a validator with a fresh symbol table seeded from the
// registry in opts.
func NewValidator(opts Options) *Validator {
	reg := opts.Builtins
	if reg == nil {
		reg = DefaultBuiltins()
	}
	version := opts.Version
	if version == 0 {
		version = DefaultLanguageVersion
	}
	allow := make(map[string]bool, len(unusedAllowlist)+len(opts.UnusedAllowlist))
	for n := range unusedAllowlist {
		allow[n] = true
	}
	for _, n := range opts.UnusedAllowlist {
		allow[n] = true
	}
	return &Validator{
		reg:         reg,
		version:     version,
		allow:       allow,
		syms:        NewSymbolTable(reg),
		types:       make(map[Expr]Type),
		funcs:       make(map[string]*FuncDecl),
		methods:     make(map[string]*FuncDecl),
		funcReturns: make(map[*FuncDecl]Type),
		inferring:   make(map[*FuncDecl]bool),
		userTypes:   make(map[string]*TypeDecl),
	}
}

// Validate runs the analysis. A Validator must not be reused.
func (v *Validator) Validate(prog *Program) *Result {
	if v.version < 4 {
		v.warnAt(Pos{Line: 1, Col: 1}, 1, CodeVersion,
			fmt.Sprintf("Language version %d is not supported; use //@version=%d", v.version, DefaultLanguageVersion))
	}
	if prog != nil {
		for _, s := range prog.Stmts {
			v.stmt(s)
		}
	}
	v.reportUnused()
	sort.SliceStable(v.diags, func(i, j int) bool {
		a, b := v.diags[i], v.diags[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return &Result{Diagnostics: v.diags, Types: v.types, Symbols: v.syms.Symbols()}
}

// ─────────────────────────────── reporting ───────────────────────────────

func (v *Validator) report(sev Severity, pos Pos, length int, code, msg string) {
	if v.quiet > 0 {
		return
	}
	if length < 1 {
		length = 1
	}
	v.diags = append(v.diags, Diagnostic{Line: pos.Line, Col: pos.Col, Length: length, Message: msg, Severity: sev, Code: code})
}

func (v *Validator) errorAt(pos Pos, length int, code, msg string) {
	v.report(SeverityError, pos, length, code, msg)
}

func (v *Validator) warnAt(pos Pos, length int, code, msg string) {
	v.report(SeverityWarning, pos, length, code, msg)
}

func didYouMean(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf(". Did you mean '%s'?", s)
}

// ─────────────────────────────── symbols ────────────────────────────────

// define binds sym in the current scope. Scratch-pass symbols are kept out of
// the table's history so they never produce unused warnings.
func (v *Validator) define(sym *Symbol) {
	if v.quiet > 0 {
		v.syms.Current().Define(sym)
		return
	}
	v.syms.Define(sym)
}

// collectDeclarations pre-registers the names a block declares.
func (v *Validator) collectDeclarations(stmts []Stmt) {
	for _, s := range stmts {
		switch d := s.(type) {
		case *VarDecl:
			if v.syms.LookupLocal(d.Name) == nil {
				t := TUnknown
				if d.Type != nil {
					t = FromTypeRef(d.Type)
				}
				v.define(&Symbol{Name: d.Name, Type: t, Kind: SymVariable, Qualifier: d.Qualifier,
					Line: d.NamePos.Line, Col: d.NamePos.Col, Origin: OriginVariable, Decl: d})
			}
		case *TupleDecl:
			for i, n := range d.Names {
				if v.syms.LookupLocal(n) == nil {
					v.define(&Symbol{Name: n, Type: TUnknown, Kind: SymVariable,
						Line: d.NamePoss[i].Line, Col: d.NamePoss[i].Col, Origin: OriginTuple, Decl: d})
				}
			}
		case *FuncDecl:
			if v.syms.LookupLocal(d.Name) == nil {
				v.define(&Symbol{Name: d.Name, Type: TUnknown, Kind: SymFunction,
					Line: d.NamePos.Line, Col: d.NamePos.Col, Origin: OriginFunction, Decl: d, Func: d})
			}
		case *TypeDecl:
			if v.syms.LookupLocal(d.Name) == nil {
				v.define(&Symbol{Name: d.Name, Type: Type(d.Name), Kind: SymVariable,
					Line: d.NamePos.Line, Col: d.NamePos.Col, Origin: OriginType, Decl: d})
			}
		case *SequenceStmt:
			v.collectDeclarations(d.Stmts)
		case *IfStmt:
			v.collectDeclarations(d.Then)
			v.collectDeclarations(d.Else)
		}
	}
}

// ────────────────────────────── statements ──────────────────────────────

func (v *Validator) stmts(list []Stmt) {
	for _, s := range list {
		v.stmt(s)
	}
}

func (v *Validator) stmt(s Stmt) {
	switch n := s.(type) {
	case *VarDecl:
		v.varDecl(n)
	case *TupleDecl:
		v.tupleDecl(n)
	case *FuncDecl:
		v.funcDecl(n)
	case *ExprStmt:
		v.infer(n.X)
	case *IfStmt:
		v.ifStmt(n)
	case *ForStmt:
		v.forStmt(n)
	case *ForInStmt:
		v.forInStmt(n)
	case *WhileStmt:
		v.condition(n.Cond, "while")
		v.loopBody(n.Body, nil)
	case *ReturnStmt:
		v.returnStmt(n)
	case *BreakStmt:
		if v.loopDepth == 0 {
			v.errorAt(n.Pos, len("break"), CodeControlFlow, "'break' used outside of a loop")
		}
	case *ContinueStmt:
		if v.loopDepth == 0 {
			v.errorAt(n.Pos, len("continue"), CodeControlFlow, "'continue' used outside of a loop")
		}
	case *AssignStmt:
		v.assign(n)
	case *ImportStmt:
		if n.Alias != "" {
			v.define(&Symbol{Name: n.Alias, Type: TUnknown, Kind: SymVariable,
				Line: n.Line, Col: n.Col, Origin: OriginImport, Decl: n})
		}
	case *TypeDecl:
		v.typeDecl(n)
	case *SequenceStmt:
		v.stmts(n.Stmts)
	}
}

func (v *Validator) varDecl(d *VarDecl) {
	declared := TUnknown
	if d.Type != nil {
		declared = FromTypeRef(d.Type)
	}

	existing := v.syms.LookupLocal(d.Name)
	if existing != nil && existing.Decl != Node(d) && existing.Origin != OriginBuiltin {
		// same scope, new declaration (sibling if/else branches): check the
		// new value against the binding already in place
		t := v.infer(d.Value)
		if d.Value != nil {
			v.checkStore(existing, t, d.Value.Position(), d.Name)
		}
		return
	}

	if g := v.syms.Global().LookupLocal(d.Name); g != nil && g.Origin == OriginBuiltin && g.Kind == SymVariable {
		v.warnAt(d.NamePos, len(d.Name), CodeShadow,
			fmt.Sprintf("Variable '%s' shadows the builtin variable of the same name", d.Name))
	}
	sym := existing
	if sym == nil || sym.Origin == OriginBuiltin {
		sym = &Symbol{Name: d.Name, Kind: SymVariable, Qualifier: d.Qualifier,
			Line: d.NamePos.Line, Col: d.NamePos.Col, Origin: OriginVariable, Decl: d}
		v.define(sym)
	}
	sym.Type = declared

	if d.Value == nil {
		if d.Type == nil {
			sym.Type = TNA
		}
		return
	}
	t := v.infer(d.Value)
	if t == TVoid {
		v.errorAt(d.Value.Position(), len(d.Name), CodeVoid,
			fmt.Sprintf("Cannot assign a value that does not return anything to '%s'", d.Name))
		sym.Type = TUnknown
		return
	}
	if d.Type == nil {
		sym.Type = t
		return
	}
	v.checkStore(sym, t, d.Value.Position(), d.Name)
}

func (v *Validator) typeDecl(d *TypeDecl) {
	v.userTypes[d.Name] = d
	if v.syms.LookupLocal(d.Name) == nil {
		v.define(&Symbol{Name: d.Name, Type: Type(d.Name), Kind: SymVariable,
			Line: d.NamePos.Line, Col: d.NamePos.Col, Origin: OriginType, Decl: d})
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if seen[f.Name] {
			v.errorAt(f.Pos, len(f.Name), CodeTypeMismatch,
				fmt.Sprintf("Field '%s' is declared more than once in '%s'", f.Name, d.Name))
		}
		seen[f.Name] = true
		if f.Default == nil {
			continue
		}
		t := v.infer(f.Default)
		if d.Enum {
			if t != TUnknown && !IsString(t) {
				v.errorAt(f.Default.Position(), 1, CodeTypeMismatch,
					fmt.Sprintf("Enum field '%s' must have a string title, got '%s'", f.Name, t))
			}
			continue
		}
		if want := FromTypeRef(f.Type); !IsAssignable(t, want) {
			v.errorAt(f.Default.Position(), 1, CodeTypeMismatch,
				fmt.Sprintf("Type mismatch: cannot assign '%s' to field '%s' of type '%s'", t, f.Name, want))
		}
	}
}

// checkStore verifies that a value of type t may be stored in sym, promoting
// the symbol's type where that is legal.
func (v *Validator) checkStore(sym *Symbol, t Type, at Pos, name string) {
	switch {
	case IsAssignable(t, sym.Type):
		if sym.Type == TNA || sym.Type == TUnknown {
			sym.Type = t
		}
	case CanPromote(sym.Type, t):
		sym.Type = t
	default:
		v.errorAt(at, len(name), CodeTypeMismatch,
			fmt.Sprintf("Type mismatch: cannot assign '%s' to '%s' of type '%s'", t, name, sym.Type))
	}
}

func (v *Validator) tupleDecl(d *TupleDecl) {
	t := v.infer(d.Value)
	elems := TupleElems(t)
	if elems != nil && len(elems) != len(d.Names) {
		v.errorAt(d.Pos, 1, CodeTuple,
			fmt.Sprintf("Tuple destructuring expects %d values but the right side produces %d", len(d.Names), len(elems)))
		elems = nil
	}
	if elems == nil && t != TUnknown && t != TNA && !IsTuple(t) && d.Value != nil {
		v.errorAt(d.Value.Position(), 1, CodeTuple,
			fmt.Sprintf("Cannot destructure a value of type '%s'", t))
	}
	for i, name := range d.Names {
		et := TUnknown
		if elems != nil {
			et = elems[i]
		}
		if sym := v.syms.LookupLocal(name); sym != nil && sym.Origin != OriginBuiltin {
			if sym.Decl == Node(d) {
				sym.Type = et
			} else {
				v.checkStore(sym, et, d.NamePoss[i], name)
			}
			continue
		}
		v.define(&Symbol{Name: name, Type: et, Kind: SymVariable,
			Line: d.NamePoss[i].Line, Col: d.NamePoss[i].Col, Origin: OriginTuple, Decl: d})
	}
}

func (v *Validator) condition(e Expr, kw string) {
	t := v.infer(e)
	if v.version < 5 || t == TUnknown || t == TNA || IsBool(t) {
		return
	}
	switch Base(t) {
	case TInt, TFloat, TString, TColor:
		v.errorAt(e.Position(), len(kw), CodeCondition,
			fmt.Sprintf("Condition of '%s' must be of type 'bool', got '%s'", kw, t))
	}
}

func (v *Validator) ifStmt(n *IfStmt) {
	v.condition(n.Cond, "if")
	v.blockDepth++
	v.condDepth++
	v.stmts(n.Then)
	v.stmts(n.Else)
	v.condDepth--
	v.blockDepth--
}

func (v *Validator) forStmt(n *ForStmt) {
	for _, e := range []Expr{n.From, n.To, n.Step} {
		if e == nil {
			continue
		}
		if t := v.infer(e); t != TUnknown && t != TNA && !IsNumeric(t) {
			v.errorAt(e.Position(), 1, CodeTypeMismatch,
				fmt.Sprintf("Loop bounds must be numeric, got '%s'", t))
		}
	}
	v.loopBody(n.Body, func() {
		v.define(&Symbol{Name: n.Var, Type: TInt, Kind: SymVariable,
			Line: n.VarPos.Line, Col: n.VarPos.Col, Origin: OriginLoop, Decl: n, Used: true})
	})
}

func (v *Validator) forInStmt(n *ForInStmt) {
	v.infer(n.Iterable)
	v.loopBody(n.Body, func() {
		for i, name := range n.Vars {
			v.define(&Symbol{Name: name, Type: TUnknown, Kind: SymVariable,
				Line: n.VarPoss[i].Line, Col: n.VarPoss[i].Col, Origin: OriginLoop, Decl: n, Used: true})
		}
	})
}

func (v *Validator) loopBody(body []Stmt, bind func()) {
	v.blockDepth++
	v.loopDepth++
	v.syms.EnterScope(ScopeLoop)
	if bind != nil {
		bind()
	}
	v.collectDeclarations(body)
	v.stmts(body)
	v.syms.ExitScope()
	v.loopDepth--
	v.blockDepth--
}

func (v *Validator) returnStmt(n *ReturnStmt) {
	t := TVoid
	if n.Value != nil {
		t = v.infer(n.Value)
	}
	if len(v.frames) == 0 {
		if !n.Synthetic {
			v.errorAt(n.Pos, len("return"), CodeControlFlow, "'return' used outside of a function")
		}
		return
	}
	f := v.frames[len(v.frames)-1]
	if !f.hasReturn {
		f.returns, f.hasReturn = t, true
		return
	}
	if TernaryBranchesCompatible(f.returns, t) {
		f.returns = BranchResultType(f.returns, t)
	}
}

func (v *Validator) assign(n *AssignStmt) {
	id, ok := n.Target.(*Ident)
	if !ok {
		v.infer(n.Target)
		v.infer(n.Value)
		return
	}
	sym := v.syms.Lookup(id.Name)
	t := v.infer(n.Value)
	if sym == nil {
		v.errorAt(id.Pos, len(id.Name), CodeUndefined,
			fmt.Sprintf("Cannot assign to undeclared variable '%s'", id.Name)+
				didYouMean(closest(id.Name, v.syms.FindSimilar(id.Name, 2), 2)))
		if v.quiet == 0 {
			v.types[n.Target] = TUnknown
		}
		return
	}
	sym.Used = true
	if v.quiet == 0 {
		v.types[n.Target] = sym.Type
	}
	switch {
	case sym.Origin == OriginBuiltin:
		v.errorAt(id.Pos, len(id.Name), CodeConst, fmt.Sprintf("Cannot modify the builtin '%s'", id.Name))
		return
	case sym.Qualifier == "const":
		v.errorAt(id.Pos, len(id.Name), CodeConst, fmt.Sprintf("Cannot reassign the constant '%s'", id.Name))
		return
	case sym.Kind == SymFunction:
		v.errorAt(id.Pos, len(id.Name), CodeConst, fmt.Sprintf("Cannot assign to the function '%s'", id.Name))
		return
	}
	if n.Op != ":=" && n.Op != "=" {
		op := strings.TrimSuffix(n.Op, "=")
		if !TypesCompatible(sym.Type, t, op) {
			v.errorAt(n.Value.Position(), len(n.Op), CodeOperator,
				fmt.Sprintf("Operator '%s' cannot be applied to '%s' and '%s'", n.Op, sym.Type, t))
			return
		}
		t = BinaryOpType(sym.Type, t, op)
	}
	if t == TVoid {
		v.errorAt(n.Value.Position(), len(id.Name), CodeVoid,
			fmt.Sprintf("Cannot assign a value that does not return anything to '%s'", id.Name))
		return
	}
	v.checkStore(sym, t, n.Value.Position(), id.Name)
}

// ─────────────────────────────── functions ──────────────────────────────

func (v *Validator) funcDecl(fn *FuncDecl) {
	if fn.Method {
		v.methods[fn.Name] = fn
	}
	v.funcs[fn.Name] = fn
	sym := v.syms.LookupLocal(fn.Name)
	if sym == nil || sym.Func != fn {
		sym = &Symbol{Name: fn.Name, Kind: SymFunction, Line: fn.NamePos.Line, Col: fn.NamePos.Col,
			Origin: OriginFunction, Decl: fn, Func: fn, Used: true}
		v.define(sym)
	}

	// defaults are evaluated in the enclosing scope
	for _, p := range fn.Params {
		if p.Default != nil {
			v.infer(p.Default)
		}
	}

	ret := v.inferReturn(fn)
	v.funcReturns[fn] = ret
	sym.Type = ret
	if fn.ReturnType != nil {
		sym.Type = FromTypeRef(fn.ReturnType)
		v.funcReturns[fn] = sym.Type
	}

	v.blockDepth++
	v.syms.EnterScope(ScopeFunction)
	v.bindParams(fn)
	v.collectDeclarations(fn.Body)
	v.frames = append(v.frames, &funcFrame{fn: fn})
	v.stmts(fn.Body)
	v.frames = v.frames[:len(v.frames)-1]
	v.syms.ExitScope()
	v.blockDepth--
}

func (v *Validator) paramType(p *Param) Type {
	if p.Type != nil {
		return FromTypeRef(p.Type)
	}
	if p.Default != nil {
		v.quiet++
		t := v.infer(p.Default)
		v.quiet--
		if t != TNA {
			return t
		}
	}
	return TUnknown
}

func (v *Validator) bindParams(fn *FuncDecl) {
	for _, p := range fn.Params {
		v.define(&Symbol{Name: p.Name, Type: v.paramType(p), Kind: SymVariable,
			Line: p.Line, Col: p.Col, Origin: OriginParam, Decl: p})
	}
}

// inferReturn runs the quiet scratch pass over fn's body.
func (v *Validator) inferReturn(fn *FuncDecl) Type {
	if v.inferring[fn] {
		return TUnknown
	}
	v.inferring[fn] = true
	v.quiet++
	depth := v.blockDepth
	v.blockDepth++
	v.syms.EnterScope(ScopeScratch)
	v.bindParams(fn)
	v.collectDeclarations(fn.Body)
	frame := &funcFrame{fn: fn}
	v.frames = append(v.frames, frame)
	v.stmts(fn.Body)

	ret := TUnknown
	switch {
	case frame.hasReturn:
		ret = frame.returns
	case len(fn.Body) > 0:
		ret = v.implicitReturn(fn.Body[len(fn.Body)-1])
	default:
		ret = TVoid
	}

	v.frames = v.frames[:len(v.frames)-1]
	v.syms.ExitScope()
	v.blockDepth = depth
	v.quiet--
	delete(v.inferring, fn)
	return ret
}

// implicitReturn types the last statement of a body, still inside the
// scratch scope so locals resolve.
func (v *Validator) implicitReturn(last Stmt) Type {
	switch s := last.(type) {
	case *ExprStmt:
		return v.infer(s.X)
	case *VarDecl:
		if sym := v.syms.LookupLocal(s.Name); sym != nil {
			return sym.Type
		}
	case *AssignStmt:
		return v.infer(s.Target)
	case *TupleDecl:
		return v.infer(s.Value)
	case *SequenceStmt:
		if len(s.Stmts) > 0 {
			return v.implicitReturn(s.Stmts[len(s.Stmts)-1])
		}
	case *IfStmt:
		var then, els Type = TUnknown, TUnknown
		if len(s.Then) > 0 {
			then = v.implicitReturn(s.Then[len(s.Then)-1])
		}
		if len(s.Else) > 0 {
			els = v.implicitReturn(s.Else[len(s.Else)-1])
		}
		if TernaryBranchesCompatible(then, els) {
			return BranchResultType(then, els)
		}
	}
	return TUnknown
}

// ──────────────────────────────── unused ────────────────────────────────

func (v *Validator) reportUnused() {
	for _, sym := range v.syms.Symbols() {
		if sym.Used || (sym.Origin != OriginVariable && sym.Origin != OriginTuple) {
			continue
		}
		if v.allow[sym.Name] || strings.HasPrefix(sym.Name, "_") {
			continue
		}
		v.warnAt(Pos{Line: sym.Line, Col: sym.Col}, len(sym.Name), CodeUnused,
			fmt.Sprintf("Variable '%s' is declared but never used", sym.Name))
	}
}
