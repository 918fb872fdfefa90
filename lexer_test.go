// lexer_test.go
package pine

import (
	"reflect"
	"testing"
)

func toks(t *testing.T, src string) []Token {
	t.Helper()
	ts, errs, _ := Tokenize(src)
	if len(errs) > 0 {
		t.Fatalf("Tokenize error: %v", errs[0])
	}
	return ts
}

func typesWithoutEOF(tokens []Token) []TokenType {
	if len(tokens) == 0 {
		return nil
	}
	end := len(tokens)
	if tokens[end-1].Type == EOF {
		end--
	}
	out := make([]TokenType, 0, end)
	for i := 0; i < end; i++ {
		out = append(out, tokens[i].Type)
	}
	return out
}

func wantTypes(t *testing.T, src string, want []TokenType) []Token {
	t.Helper()
	got := toks(t, src)
	gotTypes := typesWithoutEOF(got)
	if !reflect.DeepEqual(gotTypes, want) {
		t.Fatalf("\nsource:\n%s\nwant types:\n%v\ngot types:\n%v\n", src, want, gotTypes)
	}
	return got
}

func Test_Lexer_Simple_Declaration(t *testing.T) {
	wantTypes(t, "length = input.int(14, \"Length\")", []TokenType{
		ID, ASSIGN, ID, PERIOD, ID, LROUND, INTEGER, COMMA, STRING, RROUND, NEWLINE,
	})
}

func Test_Lexer_Operators(t *testing.T) {
	wantTypes(t, "a := b += c -= d *= e /= f %= g == h != i <= j >= k => l", []TokenType{
		ID, DEFINE, ID, PLUS_ASSIGN, ID, MINUS_ASSIGN, ID, MULT_ASSIGN, ID, DIV_ASSIGN,
		ID, MOD_ASSIGN, ID, EQ, ID, NEQ, ID, LESS_EQ, ID, GREATER_EQ, ID, ARROW, ID, NEWLINE,
	})
	wantTypes(t, "x = a ? b : c", []TokenType{ID, ASSIGN, ID, QUESTION, ID, COLON, ID, NEWLINE})
}

func Test_Lexer_Keywords_And_Type_Keywords(t *testing.T) {
	wantTypes(t, "var float x = na", []TokenType{VAR, TYPE, ID, ASSIGN, NA, NEWLINE})
	wantTypes(t, "varip int n = 0", []TokenType{VARIP, TYPE, ID, ASSIGN, INTEGER, NEWLINE})
	wantTypes(t, "if a and not b or c", []TokenType{IF, ID, AND, NOT, ID, OR, ID, NEWLINE})
	wantTypes(t, "for i = 0 to 10 by 2", []TokenType{FOR, ID, ASSIGN, INTEGER, TO, INTEGER, BY, INTEGER, NEWLINE})
	wantTypes(t, "for x in xs", []TokenType{FOR, ID, IN, ID, NEWLINE})
}

func Test_Lexer_Property_Names_Are_Identifiers(t *testing.T) {
	ts := wantTypes(t, "c = color.red", []TokenType{ID, ASSIGN, TYPE, PERIOD, ID, NEWLINE})
	if ts[4].Lexeme != "red" {
		t.Fatalf("want property 'red', got %q", ts[4].Lexeme)
	}
	// keywords after '.' are properties too
	wantTypes(t, "s = strategy.long", []TokenType{ID, ASSIGN, ID, PERIOD, ID, NEWLINE})
	wantTypes(t, "a = array.new<float>()", []TokenType{
		ID, ASSIGN, TYPE, PERIOD, ID, LESS, TYPE, GREATER, LROUND, RROUND, NEWLINE,
	})
}

func Test_Lexer_Literals(t *testing.T) {
	ts := toks(t, `x = 42 + 3.5 + 1e3 + .5`)
	if ts[2].Type != INTEGER || ts[2].Literal.(int64) != 42 {
		t.Fatalf("want INTEGER 42, got %v %v", ts[2].Type, ts[2].Literal)
	}
	if ts[4].Type != NUMBER || ts[4].Literal.(float64) != 3.5 {
		t.Fatalf("want NUMBER 3.5, got %v %v", ts[4].Type, ts[4].Literal)
	}
	if ts[6].Type != NUMBER || ts[6].Literal.(float64) != 1000 {
		t.Fatalf("want NUMBER 1000, got %v %v", ts[6].Type, ts[6].Literal)
	}
	if ts[8].Type != NUMBER || ts[8].Literal.(float64) != 0.5 {
		t.Fatalf("want NUMBER 0.5, got %v %v", ts[8].Type, ts[8].Literal)
	}

	ts = toks(t, `s = "a\"b\n" + 'c'`)
	if ts[2].Literal.(string) != "a\"b\n" || ts[2].Lexeme != `"a\"b\n"` {
		t.Fatalf("unexpected string token: %q / %q", ts[2].Literal, ts[2].Lexeme)
	}
	if ts[4].Literal.(string) != "c" {
		t.Fatalf("single-quoted string: got %q", ts[4].Literal)
	}

	ts = toks(t, `c = #FF0000, d = #00ff0080, b = true`)
	if ts[2].Type != COLOR || ts[2].Literal.(string) != "#ff0000" {
		t.Fatalf("color literal: %v %v", ts[2].Type, ts[2].Literal)
	}
	if ts[6].Type != COLOR {
		t.Fatalf("8-digit color literal: %v", ts[6].Type)
	}
	if ts[10].Type != BOOLEAN || ts[10].Literal.(bool) != true {
		t.Fatalf("bool literal: %v %v", ts[10].Type, ts[10].Literal)
	}
}

func Test_Lexer_Indentation_And_Newlines(t *testing.T) {
	src := "if cond\n    a = 1\n\n\n    b = 2\nc = 3\n"
	ts := wantTypes(t, src, []TokenType{
		IF, ID, NEWLINE,
		ID, ASSIGN, INTEGER, NEWLINE,
		ID, ASSIGN, INTEGER, NEWLINE,
		ID, ASSIGN, INTEGER, NEWLINE,
	})
	if ts[0].Indent != 0 || ts[3].Indent != 4 || ts[7].Indent != 4 || ts[11].Indent != 0 {
		t.Fatalf("indents: %d %d %d %d", ts[0].Indent, ts[3].Indent, ts[7].Indent, ts[11].Indent)
	}
	if ts[1].Indent != NoIndent || ts[1].LineStart() {
		t.Fatalf("mid-line token must not carry an indent")
	}
	if ts[7].Line != 5 || ts[7].Col != 5 {
		t.Fatalf("position of b: %d:%d", ts[7].Line, ts[7].Col)
	}
}

func Test_Lexer_Tab_Counts_Four(t *testing.T) {
	ts := toks(t, "f() =>\n\tx = 1\n\tx\n")
	for _, tk := range ts {
		if tk.Lexeme == "x" && tk.LineStart() && tk.Indent != 4 {
			t.Fatalf("tab indent: want 4, got %d", tk.Indent)
		}
	}
}

func Test_Lexer_Parens_Continue_Lines(t *testing.T) {
	src := "plot(close,\n     color = color.red)\nx = 1"
	ts := wantTypes(t, src, []TokenType{
		ID, LROUND, ID, COMMA, TYPE, ASSIGN, TYPE, PERIOD, ID, RROUND, NEWLINE,
		ID, ASSIGN, INTEGER, NEWLINE,
	})
	if ts[4].LineStart() {
		t.Fatalf("token inside parentheses must not start a logical line")
	}
}

func Test_Lexer_Comments_Collected_Not_Tokens(t *testing.T) {
	src := "// header\nx = 1 // trailing\n    // indented comment line\ny = 2"
	l := NewLexer(src)
	ts := l.Scan()
	if got := typesWithoutEOF(ts); !reflect.DeepEqual(got, []TokenType{
		ID, ASSIGN, INTEGER, NEWLINE, ID, ASSIGN, INTEGER, NEWLINE,
	}) {
		t.Fatalf("comments leaked into tokens: %v", got)
	}
	cs := l.Comments()
	if len(cs) != 3 {
		t.Fatalf("want 3 comments, got %d", len(cs))
	}
	if cs[1].Line != 2 || cs[1].Col != 7 || cs[1].Text != " trailing" {
		t.Fatalf("trailing comment: %+v", cs[1])
	}
	if ts[4].Indent != 0 {
		t.Fatalf("comment-only line must not affect the next line's indent")
	}
}

func Test_Lexer_Version_Marker(t *testing.T) {
	_, _, v := Tokenize("//@version=5\nindicator(\"x\")")
	if v != 5 {
		t.Fatalf("want version 5, got %d", v)
	}
	_, _, v = Tokenize("// @version=4\n")
	if v != 4 {
		t.Fatalf("want version 4, got %d", v)
	}
	_, _, v = Tokenize("x = 1")
	if v != 0 {
		t.Fatalf("want no version, got %d", v)
	}
}

func Test_Lexer_Errors_Do_Not_Stop_Scan(t *testing.T) {
	ts, errs, _ := Tokenize("a = 1 $ 2\nb = \"open\nc = #12")
	if len(errs) != 3 {
		t.Fatalf("want 3 lexical errors, got %d: %v", len(errs), errs)
	}
	mustContain(t, errs[0].Error(), "LEXICAL ERROR at 1:7")
	mustContain(t, errs[0].Error(), "unexpected character")
	mustContain(t, errs[1].Error(), "string was not terminated")
	mustContain(t, errs[2].Error(), "malformed color literal")

	var ids []string
	for _, tk := range ts {
		if tk.Type == ID {
			ids = append(ids, tk.Lexeme)
		}
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("scan must continue past errors, got identifiers %v", ids)
	}
}

func Test_Lexer_Ends_With_Newline_And_EOF(t *testing.T) {
	ts := toks(t, "x = 1")
	n := len(ts)
	if ts[n-1].Type != EOF || ts[n-2].Type != NEWLINE {
		t.Fatalf("want NEWLINE, EOF at end; got %v, %v", ts[n-2].Type, ts[n-1].Type)
	}
	ts = toks(t, "")
	if len(ts) != 1 || ts[0].Type != EOF {
		t.Fatalf("empty source: want only EOF, got %v", typesWithoutEOF(ts))
	}
}

func Test_Lexer_Minus_Before_Dot_Number(t *testing.T) {
	// ".5" after an operand is a member access, not a number
	wantTypes(t, "x = a.b", []TokenType{ID, ASSIGN, ID, PERIOD, ID, NEWLINE})
	wantTypes(t, "x = -.5", []TokenType{ID, ASSIGN, MINUS, NUMBER, NEWLINE})
}
