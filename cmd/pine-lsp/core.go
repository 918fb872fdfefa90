// cmd/pine-lsp/core.go
//
// ROLE: Shared infrastructure for the language server: stdio framing,
// send/notify helpers, UTF-16 position math and the analysis step that
// publishes diagnostics.
//
// The front end reports 1-based lines and 1-based byte columns; LSP wants
// 0-based lines and UTF-16 character offsets. Every conversion goes through
// sourceRange / sourcePos so handlers never do column math themselves.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pine "github.com/daios-ai/pinelint"
)

////////////////////////////////////////////////////////////////////////////////
// Transport (stdio framing) + send/notify
////////////////////////////////////////////////////////////////////////////////

func readMsg(r *bufio.Reader) ([]byte, error) {
	var contentLen int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if i := strings.IndexByte(line, ':'); i >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:i]))
			val := strings.TrimSpace(line[i+1:])
			if key == "content-length" {
				_, _ = fmt.Sscanf(val, "%d", &contentLen)
			}
		}
	}
	if contentLen <= 0 {
		return nil, io.EOF
	}
	buf := make([]byte, contentLen)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

func writeMsg(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	_, err = w.Write(b.Bytes())
	return err
}

func (s *server) write(v any) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = writeMsg(s.out, v)
}

func (s *server) sendResponse(id json.RawMessage, result any, respErr *ResponseError) {
	if respErr == nil && result == nil {
		s.write(Response{JSONRPC: "2.0", ID: id, Result: json.RawMessage("null")})
		return
	}
	s.write(Response{JSONRPC: "2.0", ID: id, Result: result, Error: respErr})
}

func (s *server) notify(method string, params any) {
	s.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

////////////////////////////////////////////////////////////////////////////////
// Text & UTF-16 helpers
////////////////////////////////////////////////////////////////////////////////

// CRLF-aware: offsets are stored at the byte after each '\n'.
func lineOffsets(text string) []int {
	offs := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offs = append(offs, i+1)
		}
	}
	return offs
}

func toU16(r rune) int {
	if r < 0x10000 {
		return 1
	}
	return 2
}

func posToOffset(lines []int, p Position, text string) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(lines) {
		return len(text)
	}
	i := lines[p.Line]
	need := p.Character // in UTF-16 units
	for i < len(text) && need > 0 {
		r, sz := utf8.DecodeRuneInString(text[i:])
		if r == '\r' || r == '\n' {
			break
		}
		need -= toU16(r)
		i += sz
	}
	return i
}

func offsetToPos(lines []int, off int, text string) Position {
	if off < 0 {
		off = 0
	}
	if off > len(text) {
		off = len(text)
	}
	i, j := 0, len(lines)
	for i+1 < j {
		m := (i + j) / 2
		if lines[m] <= off {
			i = m
		} else {
			j = m
		}
	}
	u16 := 0
	for k := lines[i]; k < off && k < len(text); {
		r, sz := utf8.DecodeRuneInString(text[k:])
		if r == '\r' || r == '\n' {
			break
		}
		u16 += toU16(r)
		k += sz
	}
	return Position{Line: i, Character: u16}
}

// byteColToOffset maps a 1-based line and 1-based byte column to a byte
// offset, clamped within the line.
func byteColToOffset(lines []int, line, col int, text string) int {
	line0 := line - 1
	if line0 < 0 {
		line0 = 0
	}
	if line0 >= len(lines) {
		return len(text)
	}
	start := lines[line0]
	end := len(text)
	if line0+1 < len(lines) {
		end = lines[line0+1] - 1 // stop before '\n'
	}
	off := start + col - 1
	if off < start {
		off = start
	}
	if off > end {
		off = end
	}
	return off
}

// sourceRange converts a front-end position and byte length to an LSP range.
func sourceRange(doc *docState, line, col, length int) Range {
	start := byteColToOffset(doc.lines, line, col, doc.text)
	end := byteColToOffset(doc.lines, line, col+length, doc.text)
	return Range{
		Start: offsetToPos(doc.lines, start, doc.text),
		End:   offsetToPos(doc.lines, end, doc.text),
	}
}

// sourcePos converts an LSP position to the front end's 1-based line and
// byte column.
func sourcePos(doc *docState, p Position) (line, col int) {
	off := posToOffset(doc.lines, p, doc.text)
	line0 := p.Line
	if line0 >= len(doc.lines) {
		line0 = len(doc.lines) - 1
	}
	if line0 < 0 {
		line0 = 0
	}
	return line0 + 1, off - doc.lines[line0] + 1
}

// nameRange locates name on the line of pos, at or after its column. The
// front end records where a declaration starts, which is not always where
// its name is ("float x = 1").
func nameRange(doc *docState, pos pine.Pos, name string) Range {
	start := byteColToOffset(doc.lines, pos.Line, pos.Col, doc.text)
	end := len(doc.text)
	if pos.Line < len(doc.lines) {
		end = doc.lines[pos.Line]
	}
	if i := strings.Index(doc.text[start:end], name); i >= 0 {
		start += i
	}
	return Range{
		Start: offsetToPos(doc.lines, start, doc.text),
		End:   offsetToPos(doc.lines, start+len(name), doc.text),
	}
}

////////////////////////////////////////////////////////////////////////////////
// Analysis & diagnostics
////////////////////////////////////////////////////////////////////////////////

// analyze re-runs the front end over doc and publishes its diagnostics.
func (s *server) analyze(doc *docState) {
	a := pine.Analyze(doc.text, s.cfg.Options())
	s.mu.Lock()
	doc.analysis = a
	s.mu.Unlock()
	s.publishDiagnostics(doc, s.cfg.Filter(a.Diagnostics))
}

func (s *server) publishDiagnostics(doc *docState, diags []pine.Diagnostic) {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		sev := 1
		if d.Severity == pine.SeverityWarning {
			sev = 2
		}
		out = append(out, Diagnostic{
			Range:    sourceRange(doc, d.Line, d.Col, d.Length),
			Severity: sev,
			Code:     d.Code,
			Source:   "pine",
			Message:  d.Message,
		})
	}
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         doc.uri,
		Diagnostics: out,
	})
}

func (s *server) clearDiagnostics(uri string) {
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
}
