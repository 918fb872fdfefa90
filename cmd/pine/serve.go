package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	pine "github.com/daios-ai/pinelint"
)

// maxBody bounds request bodies; scripts are small.
const maxBody = 1 << 20

func cmdServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "settings file")
	addr := fs.String("addr", "", "listen address (default from settings)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := pine.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 2
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	log.Printf("pine %s listening on %s\n", pine.Version, cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, newServer(cfg)); err != nil {
		log.Println(err)
		return 1
	}
	return 0
}

// newServer returns a http.Handler with the check, format and builtin
// lookup routes registered.
func newServer(cfg *pine.Config) http.Handler {
	s := mux.NewRouter()
	w := &web{cfg: cfg}
	s.HandleFunc("/v1/check", w.Check).Methods("POST")
	s.HandleFunc("/v1/format", w.Format).Methods("POST")
	s.HandleFunc("/v1/builtins/{name}", w.Builtin).Methods("GET")
	return s
}

// web holds the handlers. It is safe to use from multiple goroutines: the
// settings are never written after startup.
type web struct {
	cfg *pine.Config
}

type errMSG struct {
	Message string `json:"error"`
}

type sourceRequest struct {
	File    string `json:"file"`
	Source  string `json:"source"`
	Version int    `json:"version"`
	Indent  int    `json:"indent"`
}

type checkResponse struct {
	fileResult
	Version int `json:"version"`
}

type formatResponse struct {
	Formatted string            `json:"formatted,omitempty"`
	Changed   bool              `json:"changed"`
	Errors    []pine.Diagnostic `json:"errors,omitempty"`
}

type builtinResponse struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

func (ww *web) decode(w http.ResponseWriter, r *http.Request) (*sourceRequest, bool) {
	req := &sourceRequest{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(req); err != nil {
		log.Println(err)
		writeJSON(w, http.StatusBadRequest, &errMSG{"trouble decoding request body"})
		return nil, false
	}
	if req.File == "" {
		req.File = "<request>"
	}
	return req, true
}

// Check validates the posted source.
func (ww *web) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := ww.decode(w, r)
	if !ok {
		return
	}
	cfg := *ww.cfg
	if req.Version > 0 {
		cfg.Version = req.Version
	}
	res, a := checkSource(req.File, req.Source, &cfg)
	writeJSON(w, http.StatusOK, &checkResponse{fileResult: res, Version: a.Version})
}

// Format returns the canonical layout of the posted source, or its syntax
// errors with status 422.
func (ww *web) Format(w http.ResponseWriter, r *http.Request) {
	req, ok := ww.decode(w, r)
	if !ok {
		return
	}
	indent := ww.cfg.Indent
	if req.Indent > 0 {
		indent = req.Indent
	}
	a := pine.Analyze(req.Source, ww.cfg.Options())
	out, ok := a.Format(indent)
	if !ok {
		var syntax []pine.Diagnostic
		for _, d := range a.Diagnostics {
			if d.Code == pine.CodeSyntax {
				syntax = append(syntax, d)
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, &formatResponse{Errors: syntax})
		return
	}
	writeJSON(w, http.StatusOK, &formatResponse{Formatted: out, Changed: out != req.Source})
}

// Builtin describes a builtin function, variable, constant or namespace.
func (ww *web) Builtin(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	kind, detail, ok := pine.Describe(pine.DefaultBuiltins(), name)
	if !ok {
		writeJSON(w, http.StatusNotFound, &errMSG{fmt.Sprintf("no builtin named %q", name)})
		return
	}
	writeJSON(w, http.StatusOK, &builtinResponse{Name: name, Kind: kind, Detail: detail})
}
