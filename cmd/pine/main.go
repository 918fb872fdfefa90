package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	pine "github.com/daios-ai/pinelint"
)

const appName = "pine"

func red(s string) string    { return "\x1b[31m" + s + "\x1b[0m" }
func yellow(s string) string { return "\x1b[33m" + s + "\x1b[0m" }
func blue(s string) string   { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "check":
		os.Exit(cmdCheck(os.Args[2:], os.Stdout, os.Stderr))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:], os.Stdout, os.Stderr))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "serve":
		os.Exit(cmdServe(os.Args[2:]))
	case "version":
		fmt.Println(pine.Version)
		return
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		// bare file arguments mean check
		os.Exit(cmdCheck(os.Args[1:], os.Stdout, os.Stderr))
	}
}

func usage() {
	fmt.Printf(`Pine linter %s (built %s)

Usage:
  %s [check] [-config f] [-format json|text] file...   Validate scripts.
  %s fmt [-check] [-w] [-config f] file...             Format scripts.
  %s repl [-config f]                                  Start the REPL.
  %s serve [-addr a] [-config f]                       Serve the HTTP API.
  %s version                                           Print the compiled version

`, pine.Version, pine.BuildDate, appName, appName, appName, appName, appName)
}

// loadConfig reads the settings file and applies the flags the user set.
func loadConfig(fs *flag.FlagSet, path string, version int, warnings bool) (*pine.Config, error) {
	cfg, err := pine.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "version":
			cfg.Version = version
		case "warnings":
			cfg.Warnings = warnings
		}
	})
	return cfg, nil
}

// -----------------------------------------------------------------------------
// check
// -----------------------------------------------------------------------------

// fileResult is one element of the check report.
type fileResult struct {
	File    string            `json:"file"`
	Errors  []pine.Diagnostic `json:"errors"`
	Success bool              `json:"success"`
}

func checkSource(name, src string, cfg *pine.Config) (fileResult, *pine.Analysis) {
	a := pine.Analyze(src, cfg.Options())
	res := fileResult{File: name, Errors: cfg.Filter(a.Diagnostics), Success: !a.HasErrors()}
	if res.Errors == nil {
		res.Errors = []pine.Diagnostic{}
	}
	return res, a
}

func cmdCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "settings file (default "+pine.ConfigFileName+" if present)")
	format := fs.String("format", "json", "output format: json or text")
	version := fs.Int("version", 0, "language version for scripts without //@version")
	warnings := fs.Bool("warnings", true, "report warnings")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *format != "json" && *format != "text" {
		fmt.Fprintf(stderr, "%s: unknown format %q\n", appName, *format)
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "usage: %s check [flags] file...\n", appName)
		return 2
	}
	cfg, err := loadConfig(fs, *cfgPath, *version, *warnings)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 2
	}

	failed := false
	results := make([]fileResult, 0, fs.NArg())
	var text bytes.Buffer
	for _, file := range fs.Args() {
		src, err := os.ReadFile(file)
		if err != nil {
			failed = true
			results = append(results, fileResult{
				File:    file,
				Errors:  []pine.Diagnostic{{Message: "cannot read file: " + err.Error(), Severity: pine.SeverityError}},
				Success: false,
			})
			fmt.Fprintf(&text, "%s: cannot read %s: %v\n", appName, file, err)
			continue
		}
		res, _ := checkSource(file, string(src), cfg)
		if !res.Success {
			failed = true
		}
		results = append(results, res)
		for _, d := range res.Errors {
			fmt.Fprintln(&text, pine.FormatDiagnostic(d, file, string(src)))
		}
	}

	if *format == "text" {
		_, _ = stdout.Write(text.Bytes())
	} else {
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return 1
		}
		fmt.Fprintln(stdout, string(b))
	}
	if failed {
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// fmt
// -----------------------------------------------------------------------------

func cmdFmt(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fmt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	check := fs.Bool("check", false, "check format; exit 1 if any file would change")
	write := fs.Bool("w", false, "write the result back to the file")
	cfgPath := fs.String("config", "", "settings file")
	indent := fs.Int("indent", 0, "block indent width (default from settings)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "usage: %s fmt [-check] [-w] file...\n", appName)
		return 2
	}
	cfg, err := pine.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return 2
	}
	if *indent > 0 {
		cfg.Indent = *indent
	}

	code := 0
	for _, file := range fs.Args() {
		info, err := os.Stat(file)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			code = 1
			continue
		}
		src, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(stderr, "%s: cannot read %s: %v\n", appName, file, err)
			code = 1
			continue
		}
		a := pine.Analyze(string(src), cfg.Options())
		out, ok := a.Format(cfg.Indent)
		if !ok {
			fmt.Fprintln(stderr, pine.FormatDiagnostic(firstSyntaxError(a), file, string(src)))
			code = 1
			continue
		}
		changed := out != string(src)
		switch {
		case *check:
			if changed {
				fmt.Fprintln(stdout, file)
				code = 1
			}
		case *write:
			if changed {
				if err := os.WriteFile(file, []byte(out), info.Mode().Perm()); err != nil {
					fmt.Fprintf(stderr, "%s: %v\n", appName, err)
					code = 1
				}
			}
		default:
			fmt.Fprint(stdout, out)
		}
	}
	return code
}

func firstSyntaxError(a *pine.Analysis) pine.Diagnostic {
	for _, d := range a.Diagnostics {
		if d.Code == pine.CodeSyntax {
			return d
		}
	}
	return a.Diagnostics[0]
}
