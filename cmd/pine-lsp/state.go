// state.go
//
// ROLE: Server/document data structures. Defines the shared model (server,
// open documents) with a constructor and a read-only snapshot method.
//
// No transport framing, no analysis, no feature handlers.

package main

import (
	"io"
	"sync"

	pine "github.com/daios-ai/pinelint"
)

// docState is one open document and its latest analysis.
type docState struct {
	uri      string
	text     string
	lines    []int // line start offsets (byte indices)
	analysis *pine.Analysis
}

// server is the global state of the language server.
type server struct {
	mu   sync.RWMutex
	docs map[string]*docState
	cfg  *pine.Config

	wmu sync.Mutex // serializes writes to out
	out io.Writer
}

func newServer(out io.Writer, cfg *pine.Config) *server {
	if cfg == nil {
		cfg = pine.DefaultConfig()
	}
	return &server{
		docs: make(map[string]*docState),
		cfg:  cfg,
		out:  out,
	}
}

// snapshotDoc returns a consistent, read-only snapshot of a document. The
// analysis is never mutated after it is stored, so it is shared.
func (s *server) snapshotDoc(uri string) *docState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.docs[uri]
	if d == nil {
		return nil
	}
	cp := *d
	if d.lines != nil {
		cp.lines = append([]int(nil), d.lines...)
	}
	return &cp
}
