// cmd/pine-lsp/main.go
//
// ROLE: Executable entrypoint and JSON-RPC dispatch loop.
//
// Transport only: read a framed message, decode it, route it on its method to
// a handler in features.go. Language intelligence lives in the pine package.

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	pine "github.com/daios-ai/pinelint"
)

func main() {
	cfgPath := flag.String("config", "", "settings file (default "+pine.ConfigFileName+" if present)")
	flag.Parse()

	cfg, err := pine.LoadConfig(*cfgPath)
	if err != nil {
		// best-effort log to stderr; keep serving with defaults
		fmt.Fprintln(os.Stderr, "pine-lsp:", err)
		cfg = pine.DefaultConfig()
	}
	s := newServer(os.Stdout, cfg)
	if err := s.serve(bufio.NewReader(os.Stdin)); err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}
}

// serve handles messages until exit or end of input.
func (s *server) serve(in *bufio.Reader) error {
	for {
		msgBytes, err := readMsg(in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var req Request
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			// Malformed JSON is ignored.
			continue
		}

		switch req.Method {
		// LSP lifecycle
		case "initialize":
			s.onInitialize(req.ID, req.Params)
		case "initialized":
			// no-op
		case "shutdown":
			s.sendResponse(req.ID, nil, nil)
		case "exit":
			return nil

		// Text sync
		case "textDocument/didOpen":
			s.onDidOpen(req.Params)
		case "textDocument/didChange":
			s.onDidChange(req.Params)
		case "textDocument/didClose":
			s.onDidClose(req.Params)

		// Language features
		case "textDocument/hover":
			s.onHover(req.ID, req.Params)
		case "textDocument/documentSymbol":
			s.onDocumentSymbols(req.ID, req.Params)
		case "textDocument/formatting":
			s.onDocumentFormatting(req.ID, req.Params)

		default:
			// Requests (with an id) get MethodNotFound; notifications are ignored.
			if len(req.ID) > 0 {
				s.sendResponse(req.ID, nil, &ResponseError{Code: codeMethodNotFound, Message: "method not found"})
			}
		}
	}
}
