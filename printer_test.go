// printer_test.go
package pine

import (
	"reflect"
	"testing"
)

func formatOK(t *testing.T, src string) string {
	t.Helper()
	out, err := FormatSource(src, DefaultIndent)
	if err != nil {
		t.Fatalf("FormatSource error: %v\nsource:\n%s", err, src)
	}
	return out
}

func wantFormat(t *testing.T, src, want string) {
	t.Helper()
	got := formatOK(t, src)
	if got != want {
		t.Fatalf("format mismatch\n--- source ---\n%s\n--- want ---\n%s\n--- got ---\n%s", src, want, got)
	}
}

// wantStable asserts the source is already in canonical form.
func wantStable(t *testing.T, src string) {
	t.Helper()
	wantFormat(t, src, src)
}

var formatterCorpus = []string{
	`//@version=5
indicator("demo",overlay=true)
length=input.int(14,"Length")
src = close


fast = ta.ema(src,length)   // fast line
if fast>src and not (fast > 0)
  plot(fast, color = color.green)
else
      plot(src)
`,
	`x = switch
    close > open =>
        d = close - open
        d * 2
    => 0.0
y = switch x
    1.0 => "one"
    => "other"
`,
	`import user/lib/1
import user/other/2 as o
type Point
    float x = 0.0
    float y
enum Dir
    up = "Up"
    down
f(float a, b = 2) => a * b
method twice(float self) =>
    r = self * 2
    r
`,
	`var float acc = na
varip int n = 0
float a = 1.0, b = 2.0
[m, s, h] = ta.macd(close, 12, 26, 9)
arr = array.new<float>(0)
prev = close[1]
acc := nz(acc) + close
for i = 0 to 10 by 2
    n += i
for [k, v] in arr
    acc := v
while n > 0
    n -= 1
    if n == 5
        break
`,
	`plot(close,
     color = color.red,
     linewidth = 2)
z = a ?
  b : c
`,
}

func Test_Printer_Canonical_Layout(t *testing.T) {
	wantFormat(t, formatterCorpus[0], `//@version=5
indicator("demo", overlay=true)
length = input.int(14, "Length")
src = close

fast = ta.ema(src, length) // fast line
if fast > src and not (fast > 0)
    plot(fast, color=color.green)
else
    plot(src)
`)
}

func Test_Printer_Idempotent(t *testing.T) {
	for i, src := range formatterCorpus {
		once := formatOK(t, src)
		twice := formatOK(t, once)
		if once != twice {
			t.Fatalf("corpus[%d]: formatting is not idempotent\n--- once ---\n%s\n--- twice ---\n%s", i, once, twice)
		}
	}
}

func Test_Printer_Reparse_Keeps_Statement_Kinds(t *testing.T) {
	for i, src := range formatterCorpus {
		before := mustParse(t, src)
		after := mustParse(t, formatOK(t, src))
		if !reflect.DeepEqual(kinds(before.Stmts), kinds(after.Stmts)) {
			t.Fatalf("corpus[%d]: statement kinds changed\nbefore %v\nafter  %v", i, kinds(before.Stmts), kinds(after.Stmts))
		}
	}
}

func Test_Printer_Already_Canonical(t *testing.T) {
	for _, i := range []int{1, 2, 3} {
		wantStable(t, formatterCorpus[i])
	}
}

func Test_Printer_Joins_Continued_Lines(t *testing.T) {
	wantFormat(t, formatterCorpus[4], `plot(close, color=color.red, linewidth=2)
z = a ? b : c
`)
}

func Test_Printer_Comments_Preserved(t *testing.T) {
	wantStable(t, `// leading
if close > open // why
    // inside
    a = 1 // trailing a

    b = 2
// before c
c = 3
// end
`)
}

func Test_Printer_Blank_Lines_Collapse_To_One(t *testing.T) {
	wantFormat(t, "a = 1\n\n\n\nb = 2\n", "a = 1\n\nb = 2\n")
	// no blank line after the first statement of a block
	wantFormat(t, "if a\n\n    b = 1\n", "if a\n    b = 1\n")
}

func Test_Printer_Else_If_Chain(t *testing.T) {
	wantStable(t, `if a
    x = 1
else if b
    x = 2
else
    x = 3
`)
}

func Test_Printer_Parentheses_Only_Where_Needed(t *testing.T) {
	wantFormat(t, `v = (a + b)
w = (a + b) * c
x = a - (b - c)
y = a - b - c
z = (a ? b : c) ? d : e
u = a ? b : c ? d : e
n = -(-a)
m = not (a and b)
k = (close)[1]
`, `v = a + b
w = (a + b) * c
x = a - (b - c)
y = a - b - c
z = (a ? b : c) ? d : e
u = a ? b : c ? d : e
n = -(-a)
m = not (a and b)
k = close[1]
`)
}

func Test_Printer_Indent_Width(t *testing.T) {
	out, err := FormatSource("if a\n    b = 1\n", 2)
	if err != nil {
		t.Fatalf("FormatSource: %v", err)
	}
	if out != "if a\n  b = 1\n" {
		t.Fatalf("indent 2: %q", out)
	}
}

func Test_Printer_Empty_And_Without_Source(t *testing.T) {
	if got := formatOK(t, ""); got != "" {
		t.Fatalf("empty source: %q", got)
	}
	if got := formatOK(t, "// only a comment"); got != "// only a comment\n" {
		t.Fatalf("comment-only source: %q", got)
	}
	prog := mustParse(t, "a=1\nb=2")
	if got := Format(prog, nil, 0); got != "a = 1\nb = 2\n" {
		t.Fatalf("Format without comments: %q", got)
	}
}
