package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	pine "github.com/daios-ai/pinelint"
)

const (
	historyFile = ".pine_history"
	promptMain  = "==> "
	promptCont  = "... "
)

var (
	banner   = fmt.Sprintf("Pine %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.", pine.Version)
	helpText = `REPL commands:
  :quit          Exit the REPL
  :reset         Forget every statement entered so far
  :source        Print the session so far, formatted
  :doc <name>    Describe a builtin function, variable or namespace
`
)

// prompter is the part of *liner.State the snippet reader needs.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// session accumulates accepted statements; each snippet is checked in the
// context of everything entered before it.
type session struct {
	cfg   *pine.Config
	lines []string
}

// eval checks snippet after the session's statements. Snippets without
// errors are kept; the returned lines report their diagnostics and the
// types of what they declare.
func (s *session) eval(snippet string) (out []string, ok bool) {
	base := len(s.lines)
	src := snippet
	if base > 0 {
		src = strings.Join(s.lines, "\n") + "\n" + snippet
	}
	a := pine.Analyze(src, s.cfg.Options())

	ok = true
	for _, d := range s.cfg.Filter(a.Diagnostics) {
		// every top-level name of a REPL session is unused until it is
		if d.Line <= base || d.Code == pine.CodeUnused {
			continue
		}
		if d.Severity == pine.SeverityError {
			ok = false
		}
		d.Line -= base
		out = append(out, pine.FormatDiagnostic(d, "", snippet))
	}
	if !ok {
		return out, false
	}

	s.lines = append(s.lines, strings.Split(snippet, "\n")...)
	if a.Program == nil {
		return out, true
	}
	for _, st := range a.Program.Stmts {
		if st.Position().Line <= base {
			continue
		}
		out = append(out, describeStmt(a, st)...)
	}
	return out, true
}

func describeStmt(a *pine.Analysis, st pine.Stmt) []string {
	switch x := st.(type) {
	case *pine.ExprStmt:
		if t, ok := a.Types[x.X]; ok && t != pine.TVoid {
			return []string{string(t)}
		}
	case *pine.VarDecl:
		return []string{x.Name + ": " + string(symbolType(a, x.Name, x.NamePos))}
	case *pine.TupleDecl:
		var out []string
		for i, n := range x.Names {
			out = append(out, n+": "+string(symbolType(a, n, x.NamePoss[i])))
		}
		return out
	case *pine.FuncDecl:
		return []string{x.Name + ": function → " + string(symbolType(a, x.Name, x.NamePos))}
	case *pine.TypeDecl:
		if x.Enum {
			return []string{x.Name + ": enum"}
		}
		return []string{x.Name + ": type"}
	case *pine.SequenceStmt:
		var out []string
		for _, s := range x.Stmts {
			out = append(out, describeStmt(a, s)...)
		}
		return out
	}
	return nil
}

func symbolType(a *pine.Analysis, name string, at pine.Pos) pine.Type {
	for _, s := range a.Symbols {
		if s.Name == name && s.Line == at.Line && s.Col == at.Col {
			return s.Type
		}
	}
	return pine.TUnknown
}

// command runs a ":" command. It returns false when the REPL should exit.
func (s *session) command(line string) (string, bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":q":
		return "", false
	case ":help":
		return helpText, true
	case ":reset":
		s.lines = nil
		return "session cleared", true
	case ":source":
		out, err := pine.FormatSource(strings.Join(s.lines, "\n"), s.cfg.Indent)
		if err != nil {
			return err.Error(), true
		}
		return strings.TrimRight(out, "\n"), true
	case ":doc":
		if len(fields) != 2 {
			return "usage: :doc <name>", true
		}
		kind, detail, ok := pine.Describe(pine.DefaultBuiltins(), fields[1])
		if !ok {
			return fmt.Sprintf("no builtin named %q", fields[1]), true
		}
		return kind + ": " + detail, true
	}
	return "unknown command. Type :help for commands.", true
}

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "settings file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := pine.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 2
	}

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{cfg: cfg}
	for {
		code, ok := readSnippet(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			msg, more := s.command(trimmed)
			if !more {
				return 0
			}
			fmt.Println(msg)
			continue
		}

		out, accepted := s.eval(code)
		for _, line := range out {
			switch {
			case !accepted:
				fmt.Fprintln(os.Stderr, red(line))
			case strings.HasPrefix(line, "WARNING"):
				fmt.Println(yellow(line))
			default:
				fmt.Println(blue(line))
			}
		}
	}
	return 0
}

// readSnippet reads one statement, prompting for more lines while brackets
// are open, the line ends in an operator, or a block opened on the first line
// has not been closed by an empty line.
func readSnippet(p prompter, prompt, cont string) (string, bool) {
	var lines []string
	block := false
	for {
		pr := prompt
		if len(lines) > 0 {
			pr = cont
		}
		line, err := p.Prompt(pr)
		if errors.Is(err, io.EOF) {
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), true
			}
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			lines, block = nil, false
			continue
		}
		if err != nil {
			return "", false
		}

		if block && strings.TrimSpace(line) == "" {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, line)
		if len(lines) == 1 {
			if strings.HasPrefix(strings.TrimSpace(line), ":") {
				return line, true
			}
			block = opensBlock(line)
		}
		if block {
			continue
		}
		if !continues(strings.Join(lines, "\n")) {
			return strings.Join(lines, "\n"), true
		}
	}
}

// opensBlock reports whether line starts an indented body.
func opensBlock(line string) bool {
	toks := significant(pine.NewLexer(line).Scan())
	if len(toks) == 0 {
		return false
	}
	switch toks[0].Type {
	case pine.IF, pine.FOR, pine.WHILE, pine.TYPECONS, pine.ENUM:
		return true
	case pine.EXPORT, pine.METHOD:
		return toks[len(toks)-1].Type == pine.ARROW
	}
	for _, t := range toks {
		if t.Type == pine.SWITCH {
			return true
		}
	}
	return toks[len(toks)-1].Type == pine.ARROW
}

// continues reports whether src cannot end yet: an open bracket or a
// trailing operator.
func continues(src string) bool {
	toks := significant(pine.NewLexer(src).Scan())
	depth := 0
	for _, t := range toks {
		switch t.Type {
		case pine.LROUND, pine.LSQUARE:
			depth++
		case pine.RROUND, pine.RSQUARE:
			depth--
		}
	}
	if depth > 0 {
		return true
	}
	if len(toks) == 0 {
		return false
	}
	switch toks[len(toks)-1].Type {
	case pine.COMMA, pine.QUESTION, pine.COLON, pine.ARROW,
		pine.PLUS, pine.MINUS, pine.MULT, pine.DIV, pine.MOD,
		pine.ASSIGN, pine.DEFINE, pine.AND, pine.OR, pine.NOT:
		return true
	}
	return false
}

func significant(toks []pine.Token) []pine.Token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.Type != pine.NEWLINE && t.Type != pine.EOF {
			out = append(out, t)
		}
	}
	return out
}
