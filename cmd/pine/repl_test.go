package main

import (
	"io"
	"reflect"
	"strings"
	"testing"

	pine "github.com/daios-ai/pinelint"
)

type scripted struct {
	lines   []string
	prompts []string
}

func (s *scripted) Prompt(p string) (string, error) {
	s.prompts = append(s.prompts, p)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func Test_Repl_ReadSnippet(t *testing.T) {
	type tc struct {
		in   []string
		want string
	}
	cases := []tc{
		{[]string{"x = 1"}, "x = 1"},
		{[]string{"a = (1 +", "2)"}, "a = (1 +\n2)"},
		{[]string{"b = close > open ?", "1 : 0"}, "b = close > open ?\n1 : 0"},
		{[]string{"if close > open", "    x = 1", "", "ignored"}, "if close > open\n    x = 1"},
		{[]string{"f(x) =>", "    x * 2", ""}, "f(x) =>\n    x * 2"},
		{[]string{":quit"}, ":quit"},
		// end of input closes an open block
		{[]string{"while true", "    break"}, "while true\n    break"},
	}
	for _, c := range cases {
		p := &scripted{lines: append([]string(nil), c.in...)}
		got, ok := readSnippet(p, promptMain, promptCont)
		if !ok || got != c.want {
			t.Fatalf("readSnippet(%q): %q %v", c.in, got, ok)
		}
	}

	p := &scripted{lines: []string{"a = (", "1)"}}
	readSnippet(p, promptMain, promptCont)
	if !reflect.DeepEqual(p.prompts, []string{promptMain, promptCont}) {
		t.Fatalf("prompts: %q", p.prompts)
	}
	if _, ok := readSnippet(&scripted{}, promptMain, promptCont); ok {
		t.Fatalf("EOF on an empty snippet ends the REPL")
	}
}

func Test_Repl_Block_Detection(t *testing.T) {
	blocks := []string{"if a", "for i = 0 to 3", "while n > 0", "type P", "enum E", "f(x) =>", "y = switch x", "method m(float self) =>"}
	for _, l := range blocks {
		if !opensBlock(l) {
			t.Fatalf("%q opens a block", l)
		}
	}
	for _, l := range []string{"f(x) => x * 2", "x = 1", "plot(close)", ""} {
		if opensBlock(l) {
			t.Fatalf("%q does not open a block", l)
		}
	}
	if !continues("x = a and") || !continues("plot(close,") || continues("x = 1") || continues("") {
		t.Fatalf("continues")
	}
}

func Test_Repl_Session(t *testing.T) {
	s := &session{cfg: pine.DefaultConfig()}

	out, ok := s.eval("x = close")
	if !ok || !reflect.DeepEqual(out, []string{"x: series<float>"}) {
		t.Fatalf("declaration: %v %q", ok, out)
	}
	out, ok = s.eval("y = x * 2")
	if !ok || !reflect.DeepEqual(out, []string{"y: series<float>"}) {
		t.Fatalf("earlier statements are in scope: %v %q", ok, out)
	}
	out, ok = s.eval("x + 1")
	if !ok || !reflect.DeepEqual(out, []string{"series<float>"}) {
		t.Fatalf("expression: %v %q", ok, out)
	}

	out, ok = s.eval("z = nope")
	if ok || len(out) != 1 || !strings.Contains(out[0], "at 1:5") {
		t.Fatalf("errors are reported against the snippet: %v %q", ok, out)
	}
	if len(s.lines) != 3 {
		t.Fatalf("a snippet with errors is not kept: %q", s.lines)
	}

	out, ok = s.eval("[m, sig, h] = ta.macd(close, 12, 26, 9)")
	if !ok || len(out) != 3 || out[0] != "m: series<float>" {
		t.Fatalf("tuple: %v %q", ok, out)
	}
}

func Test_Repl_Commands(t *testing.T) {
	s := &session{cfg: pine.DefaultConfig()}
	s.eval("a=1")

	if msg, _ := s.command(":source"); msg != "a = 1" {
		t.Fatalf(":source: %q", msg)
	}
	if msg, _ := s.command(":doc ta.sma"); !strings.HasPrefix(msg, "function: ta.sma(") {
		t.Fatalf(":doc: %q", msg)
	}
	if msg, _ := s.command(":doc nope"); !strings.Contains(msg, "no builtin") {
		t.Fatalf(":doc unknown: %q", msg)
	}
	if _, more := s.command(":reset"); !more || len(s.lines) != 0 {
		t.Fatalf(":reset")
	}
	if _, more := s.command(":quit"); more {
		t.Fatalf(":quit must end the loop")
	}
	if msg, _ := s.command(":what"); !strings.Contains(msg, "unknown command") {
		t.Fatalf("unknown command: %q", msg)
	}
}
