// errors.go: user-facing error wrapping and caret-snippet rendering
//
// What this file does
// -------------------
// Turns lexer errors, parser errors and validation diagnostics into readable
// snippets with a caret (or a run of carets) under the offending columns:
//
//	PARSE ERROR in rsi.pine at 3:12: unexpected token ")"
//
//	   2 | length = input.int(14
//	   3 | plot(ta.rsi(close, ))
//	     |            ^
//	   4 | hline(70)
//
// The snippet includes up to one line of context before and after the error,
// numbers the lines, and places the caret under the 1-based column.
//
// Scope of the public API
// -----------------------
// Public:   `WrapErrorWithSource`, `WrapErrorWithName`, `FormatDiagnostic`
// Private:  the caret-snippet renderer.
//
// Behavior guarantees
// -------------------
//   - *LexError and *ParseError become a plain-text snippet (no ANSI colors);
//     any other error is returned unchanged.
//   - Line/column are 1-based. Out-of-range values are clamped so the caret
//     can always be rendered. Empty sources are handled.
package pine

import (
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// WrapErrorWithSource returns err augmented with a caret-annotated snippet of
// src when err is a lexer or parser error, and err unchanged otherwise.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with the source's name in the
// header.
func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col, 1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col, 1, e.Msg))
	default:
		return err
	}
}

// FormatDiagnostic renders a validation diagnostic as a snippet whose caret
// run spans the diagnostic's length.
func FormatDiagnostic(d Diagnostic, srcName, src string) string {
	header := "ERROR"
	if d.Severity == SeverityWarning {
		header = "WARNING"
	}
	return prettyErrorStringLabeled(src, header, srcName, d.Line, d.Col, d.Length, d.Message)
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: rendering
   =========================== */

// prettyErrorStringLabeled builds the snippet: header, at most one previous
// and one next line, and width carets under the error.
func prettyErrorStringLabeled(src, header, name string, line, col, width int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if width < 1 {
		width = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := strings.TrimRight(lines[line-1], "\r")

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, strings.TrimRight(lines[line-2], "\r"))
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	if room := len(lineTxt) - (col - 1); room > 0 && width > room {
		width = room
	}
	fmt.Fprintf(&b, "     | %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", width))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, strings.TrimRight(lines[line], "\r"))
	}
	return b.String()
}
