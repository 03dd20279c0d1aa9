package lsp

import (
	"context"
	"log"

	"github.com/google/uuid"
)

type progressParams struct {
	Token string `json:"token"`
	Value any    `json:"value"`
}

type workDoneProgress struct {
	Kind    string `json:"kind"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// progress reports one long-running operation through $/progress.
// The zero value reports nothing.
type progress struct {
	conn  *Conn
	token string
}

// beginProgress starts a work-done progress if the client supports it.
func (s *Server) beginProgress(ctx context.Context, title string) progress {
	s.mu.RLock()
	supported := s.workProgress
	s.mu.RUnlock()

	if s.conn == nil || !supported {
		return progress{}
	}

	token := uuid.NewString()
	if err := s.conn.Call(ctx, "window/workDoneProgress/create", map[string]string{"token": token}); err != nil {
		log.Printf("progress: create: %v", err)
		return progress{}
	}
	p := progress{conn: s.conn, token: token}
	p.send(ctx, workDoneProgress{Kind: "begin", Title: title})
	return p
}

func (p progress) end(ctx context.Context, message string) {
	p.send(ctx, workDoneProgress{Kind: "end", Message: message})
}

func (p progress) send(ctx context.Context, value workDoneProgress) {
	if p.conn == nil {
		return
	}
	if err := p.conn.Notify(ctx, "$/progress", progressParams{Token: p.token, Value: value}); err != nil {
		log.Printf("progress: %v", err)
	}
}
