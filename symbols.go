// symbols.go — lexical scopes and the symbol table used by the validator.
//
// A SymbolTable owns a chain of scopes rooted at a global scope that is seeded
// from the read-only builtin registry. Scopes are pushed for function bodies
// and loop bodies and discarded on exit; `if` does not open a scope.
//
// Symbols are mutable in exactly two ways: Used is set by MarkUsed, and Type may
// be replaced by Update when the new type is a legal promotion (see CanPromote
// in types.go).
package pine

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// SymbolKind separates callable bindings from values.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymFunction
)

func (k SymbolKind) String() string {
	if k == SymFunction {
		return "function"
	}
	return "variable"
}

// Origin records what introduced a symbol.
type Origin int

const (
	OriginVariable Origin = iota // name = expr, var x = ...
	OriginTuple                  // [a, b] = ...
	OriginParam                  // function parameter
	OriginFunction               // user function or method
	OriginLoop                   // for / for-in iterator
	OriginImport                 // import alias
	OriginType                   // type / enum declaration
	OriginBuiltin                // seeded from the registry; never the zero value
)

var originNames = [...]string{"variable", "tuple", "parameter", "function", "loop", "import", "type", "builtin"}

func (o Origin) String() string {
	if int(o) < len(originNames) {
		return originNames[o]
	}
	return "unknown"
}

// Symbol is one name binding.
type Symbol struct {
	Name      string
	Type      Type
	Kind      SymbolKind
	Qualifier string // var, varip, const or ""
	Used      bool
	Line      int
	Col       int
	Origin    Origin
	Decl      Node      // declaring node; nil for builtins
	Func      *FuncDecl // set for user functions
	Scope     *Scope
}

// ScopeKind classifies a scope.
type ScopeKind int

const (
	ScopeGlobal   ScopeKind = iota
	ScopeFunction           // function or method body
	ScopeLoop               // for, for-in, while body
	ScopeScratch            // throwaway scope for return-type inference
	ScopeCase               // multi-line switch case body
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeFunction:
		return "function"
	case ScopeLoop:
		return "loop"
	case ScopeScratch:
		return "scratch"
	case ScopeCase:
		return "case"
	default:
		return "unknown"
	}
}

// Scope is one lexical level.
type Scope struct {
	Kind    ScopeKind
	Parent  *Scope
	Symbols map[string]*Symbol
}

// NewScope creates a scope of the given kind under parent.
func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, Symbols: make(map[string]*Symbol)}
}

// Define adds a symbol to this scope, replacing a same-named local.
func (s *Scope) Define(sym *Symbol) {
	sym.Scope = s
	s.Symbols[sym.Name] = sym
}

// Lookup resolves a symbol by walking the parent chain.
// Returns nil if the symbol is not found.
func (s *Scope) Lookup(name string) *Symbol {
	for scope := s; scope != nil; scope = scope.Parent {
		if sym, ok := scope.Symbols[name]; ok {
			return sym
		}
	}
	return nil
}

// LookupLocal resolves a symbol only in this scope (not parents).
func (s *Scope) LookupLocal(name string) *Symbol {
	return s.Symbols[name]
}

// SymbolTable tracks the current scope and every user symbol ever defined.
type SymbolTable struct {
	global  *Scope
	current *Scope
	all     []*Symbol
}

// NewSymbolTable returns a table whose global scope holds every top-level
// builtin name of reg. reg may be nil.
func NewSymbolTable(reg Builtins) *SymbolTable {
	g := NewScope(ScopeGlobal, nil)
	if reg != nil {
		for _, name := range reg.Names() {
			if strings.Contains(name, ".") {
				continue
			}
			// time, hour, dayofweek... are both; a bare name means the variable
			if t, ok := reg.Variable(name); ok {
				g.Define(&Symbol{Name: name, Kind: SymVariable, Type: t, Origin: OriginBuiltin})
				continue
			}
			if fn, ok := reg.Function(name); ok {
				g.Define(&Symbol{Name: name, Kind: SymFunction, Type: fn.ReturnType(), Origin: OriginBuiltin})
			}
		}
	}
	return &SymbolTable{global: g, current: g}
}

// Global returns the root scope.
func (st *SymbolTable) Global() *Scope { return st.global }

// Current returns the innermost scope.
func (st *SymbolTable) Current() *Scope { return st.current }

// EnterScope pushes a child scope.
func (st *SymbolTable) EnterScope(kind ScopeKind) {
	st.current = NewScope(kind, st.current)
}

// ExitScope pops the innermost scope. The global scope is never popped.
func (st *SymbolTable) ExitScope() {
	if st.current.Parent != nil {
		st.current = st.current.Parent
	}
}

// Define binds sym in the current scope, shadowing outer bindings.
func (st *SymbolTable) Define(sym *Symbol) {
	st.current.Define(sym)
	if sym.Origin != OriginBuiltin {
		st.all = append(st.all, sym)
	}
}

// Lookup walks from the current scope to the root.
func (st *SymbolTable) Lookup(name string) *Symbol { return st.current.Lookup(name) }

// LookupLocal checks only the current scope.
func (st *SymbolTable) LookupLocal(name string) *Symbol { return st.current.LookupLocal(name) }

// MarkUsed flags the nearest binding of name as used.
func (st *SymbolTable) MarkUsed(name string) bool {
	if sym := st.Lookup(name); sym != nil {
		sym.Used = true
		return true
	}
	return false
}

// Update replaces the type of the nearest binding of name when next is a
// legal promotion of its current type. It reports whether the type changed.
func (st *SymbolTable) Update(name string, next Type) bool {
	sym := st.Lookup(name)
	if sym == nil || sym.Type == next || !CanPromote(sym.Type, next) {
		return false
	}
	sym.Type = next
	return true
}

// Symbols returns every non-builtin symbol defined so far, in definition
// order, including symbols of scopes already exited.
func (st *SymbolTable) Symbols() []*Symbol { return st.all }

// FindSimilar returns visible names within maxDistance edits of name, closest
// first.
func (st *SymbolTable) FindSimilar(name string, maxDistance int) []string {
	seen := map[string]bool{name: true}
	type cand struct {
		name string
		dist int
	}
	var cands []cand
	for s := st.current; s != nil; s = s.Parent {
		for n := range s.Symbols {
			if seen[n] {
				continue
			}
			seen[n] = true
			if d := editDistance(name, n); d <= maxDistance {
				cands = append(cands, cand{n, d})
			}
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].name < cands[j].name
	})
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.name
	}
	return out
}

// editDistance is case-insensitive; a pure case difference counts as one edit.
func editDistance(a, b string) int {
	if strings.EqualFold(a, b) {
		return 1
	}
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}

// closest returns the best candidate within maxDistance, or "".
func closest(name string, candidates []string, maxDistance int) string {
	best, bestDist := "", maxDistance+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		d := editDistance(name, c)
		if d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	return best
}
