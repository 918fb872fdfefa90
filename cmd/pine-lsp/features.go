// features.go
//
// ROLE: LSP feature handlers. Each handler decodes its params, takes a
// document snapshot and answers from the stored analysis; none of them
// re-lex or re-parse.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	pine "github.com/daios-ai/pinelint"
)

// LSP SymbolKind values.
const (
	kindModule     = 2
	kindMethod     = 6
	kindField      = 8
	kindEnum       = 10
	kindFunction   = 12
	kindVariable   = 13
	kindConstant   = 14
	kindEnumMember = 22
	kindStruct     = 23
)

////////////////////////////////////////////////////////////////////////////////
// Initialize & text sync
////////////////////////////////////////////////////////////////////////////////

func (s *server) onInitialize(id json.RawMessage, _ json.RawMessage) {
	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    2, // Incremental
			},
			HoverProvider:              true,
			DocumentSymbolProvider:     true,
			DocumentFormattingProvider: true,
		},
		ServerInfo: map[string]string{
			"name":    "pine-lsp",
			"version": pine.Version,
		},
	}
	s.sendResponse(id, result, nil)
}

func (s *server) onDidOpen(raw json.RawMessage) {
	var params struct {
		TextDocument TextDocumentItem `json:"textDocument"`
	}
	_ = json.Unmarshal(raw, &params)
	doc := &docState{
		uri:   params.TextDocument.URI,
		text:  params.TextDocument.Text,
		lines: lineOffsets(params.TextDocument.Text),
	}
	s.mu.Lock()
	s.docs[doc.uri] = doc
	s.mu.Unlock()
	s.analyze(doc)
}

func (s *server) onDidChange(raw json.RawMessage) {
	var params struct {
		TextDocument struct {
			URI string `json:"uri"`
		} `json:"textDocument"`
		ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
	}
	_ = json.Unmarshal(raw, &params)

	s.mu.Lock()
	doc := s.docs[params.TextDocument.URI]
	s.mu.Unlock()
	if doc == nil || len(params.ContentChanges) == 0 {
		return
	}

	// Edits apply in order; a change without a range replaces the document.
	for _, ch := range params.ContentChanges {
		if ch.Range == nil {
			doc.text = ch.Text
			doc.lines = lineOffsets(doc.text)
			continue
		}
		start := posToOffset(doc.lines, ch.Range.Start, doc.text)
		end := posToOffset(doc.lines, ch.Range.End, doc.text)
		if end < start {
			start, end = end, start
		}
		var b bytes.Buffer
		b.WriteString(doc.text[:start])
		b.WriteString(ch.Text)
		b.WriteString(doc.text[end:])
		doc.text = b.String()
		doc.lines = lineOffsets(doc.text)
	}
	s.analyze(doc)
}

func (s *server) onDidClose(raw json.RawMessage) {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	_ = json.Unmarshal(raw, &params)
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	s.clearDiagnostics(params.TextDocument.URI)
}

////////////////////////////////////////////////////////////////////////////////
// Hover
////////////////////////////////////////////////////////////////////////////////

func (s *server) onHover(id json.RawMessage, paramsRaw json.RawMessage) {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		s.sendResponse(id, nil, &ResponseError{Code: codeInvalidParams, Message: err.Error()})
		return
	}
	doc := s.snapshotDoc(params.TextDocument.URI)
	if doc == nil || doc.analysis == nil {
		s.sendResponse(id, nil, nil)
		return
	}
	line, col := sourcePos(doc, params.Position)
	h, ok := doc.analysis.HoverAt(line, col)
	if !ok {
		s.sendResponse(id, nil, nil)
		return
	}

	value := fmt.Sprintf("```pine\n(%s) %s: %s\n```", h.Kind, h.Name, h.Type)
	if h.Detail != "" && h.Detail != string(h.Type) {
		value += "\n" + h.Detail
	}
	hover := Hover{Contents: MarkupContent{Kind: "markdown", Value: value}}
	if tok, ok := doc.analysis.TokenAt(line, col); ok {
		r := sourceRange(doc, tok.Line, tok.Col, len(tok.Lexeme))
		hover.Range = &r
	}
	s.sendResponse(id, hover, nil)
}

////////////////////////////////////////////////////////////////////////////////
// Document symbols
////////////////////////////////////////////////////////////////////////////////

func (s *server) onDocumentSymbols(id json.RawMessage, paramsRaw json.RawMessage) {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
	}
	_ = json.Unmarshal(paramsRaw, &params)

	doc := s.snapshotDoc(params.TextDocument.URI)
	if doc == nil || doc.analysis == nil || doc.analysis.Program == nil {
		s.sendResponse(id, []DocumentSymbol{}, nil)
		return
	}
	out := []DocumentSymbol{}
	for _, st := range doc.analysis.Program.Stmts {
		out = append(out, documentSymbols(doc, st)...)
	}
	s.sendResponse(id, out, nil)
}

// documentSymbols lists the declarations made by one top-level statement.
func documentSymbols(doc *docState, st pine.Stmt) []DocumentSymbol {
	sym := func(name string, at pine.Pos, kind int, detail string) DocumentSymbol {
		r := nameRange(doc, at, name)
		return DocumentSymbol{Name: name, Detail: detail, Kind: kind, Range: r, SelectionRange: r}
	}
	switch x := st.(type) {
	case *pine.VarDecl:
		kind := kindVariable
		if x.Qualifier == "const" {
			kind = kindConstant
		}
		return []DocumentSymbol{sym(x.Name, x.NamePos, kind, string(declaredType(doc, x.Name, x.NamePos)))}
	case *pine.TupleDecl:
		var out []DocumentSymbol
		for i, n := range x.Names {
			out = append(out, sym(n, x.NamePoss[i], kindVariable, string(declaredType(doc, n, x.NamePoss[i]))))
		}
		return out
	case *pine.FuncDecl:
		kind := kindFunction
		if x.Method {
			kind = kindMethod
		}
		return []DocumentSymbol{sym(x.Name, x.NamePos, kind, signature(x))}
	case *pine.TypeDecl:
		kind, member, detail := kindStruct, kindField, "type"
		if x.Enum {
			kind, member, detail = kindEnum, kindEnumMember, "enum"
		}
		parent := sym(x.Name, x.NamePos, kind, detail)
		for _, f := range x.Fields {
			child := sym(f.Name, f.Pos, member, "")
			if f.Type != nil {
				child.Detail = f.Type.String()
			}
			parent.Children = append(parent.Children, child)
		}
		return []DocumentSymbol{parent}
	case *pine.ImportStmt:
		if x.Alias == "" {
			return nil
		}
		return []DocumentSymbol{sym(x.Alias, x.Pos, kindModule, x.Path)}
	case *pine.SequenceStmt:
		var out []DocumentSymbol
		for _, s := range x.Stmts {
			out = append(out, documentSymbols(doc, s)...)
		}
		return out
	}
	return nil
}

func declaredType(doc *docState, name string, at pine.Pos) pine.Type {
	for _, s := range doc.analysis.Symbols {
		if s.Name == name && s.Line == at.Line && s.Col == at.Col {
			return s.Type
		}
	}
	return pine.TUnknown
}

func signature(f *pine.FuncDecl) string {
	var b bytes.Buffer
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Type != nil {
			b.WriteString(p.Type.String())
			b.WriteByte(' ')
		}
		b.WriteString(p.Name)
	}
	b.WriteByte(')')
	return b.String()
}

////////////////////////////////////////////////////////////////////////////////
// Formatting
////////////////////////////////////////////////////////////////////////////////

func (s *server) onDocumentFormatting(id json.RawMessage, paramsRaw json.RawMessage) {
	var params struct {
		TextDocument TextDocumentIdentifier `json:"textDocument"`
		Options      struct {
			TabSize      int  `json:"tabSize"`
			InsertSpaces bool `json:"insertSpaces"`
		} `json:"options"`
	}
	_ = json.Unmarshal(paramsRaw, &params)

	doc := s.snapshotDoc(params.TextDocument.URI)
	if doc == nil || doc.analysis == nil {
		s.sendResponse(id, []TextEdit{}, nil)
		return
	}
	indent := s.cfg.Indent
	if params.Options.InsertSpaces && params.Options.TabSize > 0 {
		indent = params.Options.TabSize
	}
	out, ok := doc.analysis.Format(indent)
	if !ok || out == doc.text {
		// syntax errors or nothing to change: no edits
		s.sendResponse(id, []TextEdit{}, nil)
		return
	}
	full := TextEdit{
		Range: Range{
			Start: Position{},
			End:   offsetToPos(doc.lines, len(doc.text), doc.text),
		},
		NewText: out,
	}
	s.sendResponse(id, []TextEdit{full}, nil)
}
