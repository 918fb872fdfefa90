package pine

import (
	"errors"
	"strings"
	"testing"
)

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", sub, s)
	}
}

func mustNotContain(t *testing.T, s, sub string) {
	t.Helper()
	if strings.Contains(s, sub) {
		t.Fatalf("expected output NOT to contain %q\n--- output ---\n%s", sub, s)
	}
}

func Test_ErrorWrap_Parse_ShowsCaretAndContext(t *testing.T) {
	src := "length = 14\nplot(ta.rsi(close, ))\nhline(70)"
	_, err := FormatSource(src, 4)
	if err == nil {
		t.Fatalf("expected parse error, got nil")
	}
	msg := err.Error()

	mustContain(t, msg, "PARSE ERROR at 2:20")
	mustContain(t, msg, `unexpected token ")"`)
	mustContain(t, msg, "   1 | length = 14")
	mustContain(t, msg, "   2 | plot(ta.rsi(close, ))")
	mustContain(t, msg, "     | "+strings.Repeat(" ", 19)+"^\n")
	mustContain(t, msg, "   3 | hline(70)")
}

func Test_ErrorWrap_Lex_ShowsCaretAndContext(t *testing.T) {
	src := "ok = 1\nbad = #12"
	_, err := FormatSource(src, 4)
	if err == nil {
		t.Fatalf("expected lex error, got nil")
	}
	msg := err.Error()

	mustContain(t, msg, "LEXICAL ERROR at 2:7")
	mustContain(t, msg, "malformed color literal")
	mustContain(t, msg, "   1 | ok = 1")
	mustContain(t, msg, "   2 | bad = #12")
	mustContain(t, msg, "     |       ^")
	mustNotContain(t, msg, "   3 |")
}

func Test_ErrorWrap_Name_In_Header(t *testing.T) {
	err := WrapErrorWithName(&ParseError{Line: 1, Col: 1, Msg: "boom"}, "rsi.pine", "x")
	mustContain(t, err.Error(), "PARSE ERROR in rsi.pine at 1:1: boom")
}

func Test_ErrorWrap_Other_Errors_Unchanged(t *testing.T) {
	orig := errors.New("plain")
	if got := WrapErrorWithSource(orig, "src"); got != orig {
		t.Fatalf("non-syntax errors must pass through unchanged, got %v", got)
	}
}

func Test_ErrorWrap_Clamps_Out_Of_Range(t *testing.T) {
	msg := WrapErrorWithSource(&ParseError{Line: 9, Col: 0, Msg: "eof"}, "a\nb").Error()
	mustContain(t, msg, "   2 | b")
	mustContain(t, msg, "     | ^")

	msg = WrapErrorWithSource(&LexError{Line: 1, Col: 1, Msg: "empty"}, "").Error()
	mustContain(t, msg, "LEXICAL ERROR at 1:1: empty")
	mustContain(t, msg, "   1 | ")
}

func Test_FormatDiagnostic_Caret_Run_And_Severity(t *testing.T) {
	src := "x = 1\ny = undefinedThing + 1\nplot(y)"
	d := Diagnostic{Line: 2, Col: 5, Length: 14, Message: "Undefined variable 'undefinedThing'", Severity: SeverityError}
	msg := FormatDiagnostic(d, "demo.pine", src)
	mustContain(t, msg, "ERROR in demo.pine at 2:5: Undefined variable 'undefinedThing'")
	mustContain(t, msg, "     |     "+strings.Repeat("^", 14)+"\n")

	d.Severity = SeverityWarning
	msg = FormatDiagnostic(d, "", src)
	mustContain(t, msg, "WARNING at 2:5")

	// the caret run never runs past the end of the line
	d.Length = 100
	msg = FormatDiagnostic(d, "", src)
	mustContain(t, msg, "     |     "+strings.Repeat("^", 18)+"\n")
}
