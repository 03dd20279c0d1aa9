package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/rfls/internal/version"
	"github.com/albertocavalcante/rfls/internal/workspace"
)

// CommandReindex re-indexes one root (argument: root path or URI) or all roots.
const CommandReindex = "rfls.reindex"

// Options configures a Server.
type Options struct {
	// Factory returns the indexer factory given the reader that serves open
	// buffers ahead of disk. Nil uses workspace.DefaultFactory.
	Factory func(reader workspace.DocumentReader) workspace.Factory

	// Watch starts a filesystem watcher per root, for clients that do not
	// send workspace/didChangeWatchedFiles.
	Watch bool

	// NoIntrospection disables library introspection.
	NoIntrospection bool
}

// Server handles LSP requests for Robot Framework files.
type Server struct {
	conn *Conn

	// State
	mu           sync.RWMutex
	initialized  bool
	shutdown     bool
	documents    map[protocol.DocumentURI]*Document
	roots        []string
	workProgress bool

	overlay  *workspace.Overlay
	registry *workspace.Registry
	watch    bool

	// bg tracks root indexing started by notifications.
	bg sync.WaitGroup

	// Callbacks
	onExit func()
}

// Document represents an open text document.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string
}

// NewServer creates a new LSP server.
func NewServer(onExit func(), opts Options) *Server {
	overlay := workspace.NewOverlay(workspace.DiskReader{})

	var factory workspace.Factory
	if opts.Factory != nil {
		factory = opts.Factory(overlay)
	} else {
		factory = workspace.DefaultFactory(workspace.FactoryOptions{
			Reader:          overlay,
			NoIntrospection: opts.NoIntrospection,
		})
	}

	s := &Server{
		documents: make(map[protocol.DocumentURI]*Document),
		overlay:   overlay,
		registry:  workspace.NewRegistry(factory),
		watch:     opts.Watch,
		onExit:    onExit,
	}
	s.registry.OnEvent(s.onRootEvent)
	return s
}

// SetConn sets the connection for sending notifications.
func (s *Server) SetConn(conn *Conn) {
	s.conn = conn
}

// Registry returns the server's workspace roots.
func (s *Server) Registry() *workspace.Registry {
	return s.registry
}

// Wait blocks until background root indexing has finished.
func (s *Server) Wait() {
	s.bg.Wait()
}

// Handle implements Handler interface - routes requests to methods.
func (s *Server) Handle(ctx context.Context, req *Request) (any, error) {
	s.mu.RLock()
	shutdown := s.shutdown
	initialized := s.initialized
	s.mu.RUnlock()

	// Check shutdown state - only allow exit after shutdown
	if shutdown && req.Method != "exit" {
		return nil, &ResponseError{
			Code:    CodeInvalidRequest,
			Message: "server is shutting down",
		}
	}

	// Check initialization - only lifecycle methods allowed before initialize
	if !initialized {
		switch req.Method {
		case "initialize", "initialized", "shutdown", "exit":
			// Allowed before initialization
		default:
			return nil, &ResponseError{
				Code:    CodeInvalidRequest,
				Message: "server not initialized",
			}
		}
	}

	// Route to method handlers
	switch req.Method {
	// Lifecycle
	case "initialize":
		return s.handleInitialize(ctx, req.Params)
	case "initialized":
		return s.handleInitialized(ctx, req.Params)
	case "shutdown":
		return s.handleShutdown(ctx)
	case "exit":
		return s.handleExit(ctx)

	// Text document sync
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, req.Params)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, req.Params)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, req.Params)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, req.Params)

	// Workspace
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(ctx, req.Params)
	case "workspace/didChangeWorkspaceFolders":
		return s.handleDidChangeWorkspaceFolders(ctx, req.Params)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(ctx, req.Params)
	case "workspace/symbol":
		return s.handleWorkspaceSymbol(ctx, req.Params)

	// Language features
	case "textDocument/hover":
		return s.handleHover(ctx, req.Params)
	case "textDocument/definition":
		return s.handleDefinition(ctx, req.Params)
	case "textDocument/completion":
		return s.handleCompletion(ctx, req.Params)
	case "textDocument/references":
		return s.handleReferences(ctx, req.Params)
	case "textDocument/prepareRename":
		return s.handlePrepareRename(ctx, req.Params)
	case "textDocument/rename":
		return s.handleRename(ctx, req.Params)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(ctx, req.Params)

	case "$/cancelRequest", "$/setTrace":
		return nil, nil

	default:
		log.Printf("unhandled method: %s", req.Method)
		return nil, ErrMethodNotFound
	}
}

// --- Lifecycle methods ---

// initializeParams holds the parts of the initialize request read here.
type initializeParams struct {
	RootURI          protocol.DocumentURI `json:"rootUri"`
	WorkspaceFolders []struct {
		URI string `json:"uri"`
	} `json:"workspaceFolders"`
	Capabilities struct {
		Window struct {
			WorkDoneProgress bool `json:"workDoneProgress"`
		} `json:"window"`
	} `json:"capabilities"`
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var p initializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing initialize params: %w", err)
	}

	var roots []string
	for _, f := range p.WorkspaceFolders {
		if path := pathFromURI(protocol.DocumentURI(f.URI)); path != "" {
			roots = append(roots, path)
		}
	}
	if len(roots) == 0 && p.RootURI != "" {
		if path := pathFromURI(p.RootURI); path != "" {
			roots = append(roots, path)
		}
	}

	s.mu.Lock()
	s.roots = roots
	s.workProgress = p.Capabilities.Window.WorkDoneProgress
	s.mu.Unlock()

	log.Printf("initialize: roots=%v", roots)

	// Built by hand: protocol v0.12.0 lacks the workspace folder capability.
	return map[string]any{
		"capabilities": map[string]any{
			"textDocumentSync": map[string]any{
				"openClose": true,
				"change":    protocol.TextDocumentSyncKindFull,
				"save":      map[string]any{"includeText": false},
			},
			"hoverProvider":      true,
			"definitionProvider": true,
			"referencesProvider": true,
			"completionProvider": map[string]any{
				"triggerCharacters": []string{"$", "@", "&", "%", "{"},
			},
			"renameProvider":          map[string]any{"prepareProvider": true},
			"documentSymbolProvider":  true,
			"workspaceSymbolProvider": true,
			"executeCommandProvider": map[string]any{
				"commands": []string{CommandReindex},
			},
			"workspace": map[string]any{
				"workspaceFolders": map[string]any{
					"supported":           true,
					"changeNotifications": true,
				},
			},
		},
		"serverInfo": map[string]string{
			"name":    "rfls",
			"version": version.Version,
		},
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.Lock()
	s.initialized = true
	roots := s.roots
	s.mu.Unlock()

	log.Printf("initialized")
	s.addRoots(roots)
	return nil, nil
}

func (s *Server) handleShutdown(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	log.Printf("shutdown")
	return nil, nil
}

func (s *Server) handleExit(ctx context.Context) (any, error) {
	log.Printf("exit")
	s.registry.Close()
	if s.onExit != nil {
		s.onExit()
	}
	return nil, nil
}

// --- Roots ---

// addRoots indexes roots in the background.
func (s *Server) addRoots(roots []string) {
	if len(roots) == 0 {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		ctx := context.Background()
		p := s.beginProgress(ctx, "Indexing Robot Framework files")
		for _, root := range roots {
			if _, err := s.addRoot(ctx, root); err != nil {
				log.Printf("roots: %v", err)
			}
		}
		p.end(ctx, fmt.Sprintf("Indexed %d workspace folder(s)", len(roots)))
	}()
}

func (s *Server) addRoot(ctx context.Context, root string) (*workspace.Indexer, error) {
	ix, err := s.registry.Add(ctx, root)
	if err != nil {
		return nil, err
	}
	if s.watch {
		if err := s.registry.Watch(root); err != nil {
			log.Printf("roots: watching %s: %v", root, err)
		}
	}
	return ix, nil
}

// onRootEvent reports root lifecycle events to the client log.
func (s *Server) onRootEvent(ev workspace.Event) {
	msg := fmt.Sprintf("rfls: root %s %s", ev.Root, ev.Kind)
	if ev.Kind != workspace.RootRemoved {
		msg += fmt.Sprintf(" (%d/%d files in %v)", ev.Stats.Indexed, ev.Stats.Files, ev.Stats.Duration)
		if ev.Stats.TimedOut {
			msg += ", timed out"
		}
	}
	log.Print(msg)
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(context.Background(), "window/logMessage", protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: msg,
	}); err != nil {
		log.Printf("roots: log message: %v", err)
	}
}

// indexerFor returns the indexer owning path. A document outside every
// root gets its directory added as a root.
func (s *Server) indexerFor(ctx context.Context, path string) *workspace.Indexer {
	if ix, ok := s.registry.ForPath(path); ok {
		return ix
	}
	dir := filepath.Dir(path)
	log.Printf("roots: %s is outside all roots, adding %s", path, dir)
	ix, err := s.addRoot(ctx, dir)
	if err != nil {
		log.Printf("roots: %v", err)
		return nil
	}
	return ix
}

// --- Text document sync ---

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.documents[p.TextDocument.URI] = &Document{
		URI:     p.TextDocument.URI,
		Version: p.TextDocument.Version,
		Content: p.TextDocument.Text,
	}
	s.mu.Unlock()

	log.Printf("didOpen: %s", p.TextDocument.URI)

	path := pathFromURI(p.TextDocument.URI)
	if path == "" {
		return nil, nil
	}
	s.overlay.Set(path, p.TextDocument.Text)
	if ix := s.indexerFor(ctx, path); ix != nil {
		if err := ix.IndexFile(path); err != nil {
			log.Printf("didOpen: %v", err)
		}
	}
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	var content string
	s.mu.Lock()
	doc, ok := s.documents[p.TextDocument.URI]
	if ok {
		doc.Version = p.TextDocument.Version
		// Full sync - take the last change
		if len(p.ContentChanges) > 0 {
			doc.Content = p.ContentChanges[len(p.ContentChanges)-1].Text
		}
		content = doc.Content
	}
	s.mu.Unlock()

	log.Printf("didChange: %s v%d", p.TextDocument.URI, p.TextDocument.Version)

	path := pathFromURI(p.TextDocument.URI)
	if !ok || path == "" {
		return nil, nil
	}
	s.overlay.Set(path, content)
	if ix, ok := s.registry.ForPath(path); ok {
		ix.Changed(path)
	}
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.documents, p.TextDocument.URI)
	s.mu.Unlock()

	log.Printf("didClose: %s", p.TextDocument.URI)

	path := pathFromURI(p.TextDocument.URI)
	if path == "" {
		return nil, nil
	}
	s.overlay.Close(path)
	// The buffer may have been discarded; go back to what is on disk.
	if ix, ok := s.registry.ForPath(path); ok {
		ix.Changed(path)
	}
	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	log.Printf("didSave: %s", p.TextDocument.URI)

	path := pathFromURI(p.TextDocument.URI)
	if ix, ok := s.registry.ForPath(path); ok && path != "" {
		ix.Changed(path)
	}
	return nil, nil
}

// isOpen reports whether the editor owns the content of path.
func (s *Server) isOpen(path string) bool {
	_, ok := s.overlay.Get(path)
	return ok
}

// --- Workspace notifications ---

func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	for _, change := range p.Changes {
		path := pathFromURI(change.URI)
		if path == "" {
			continue
		}
		ix, ok := s.registry.ForPath(path)
		if !ok {
			continue
		}
		switch change.Type {
		case protocol.FileChangeTypeCreated:
			ix.Created(path)
		case protocol.FileChangeTypeChanged:
			if !s.isOpen(path) {
				ix.Changed(path)
			}
		case protocol.FileChangeTypeDeleted:
			ix.Deleted(path)
		}
	}
	log.Printf("didChangeWatchedFiles: %d change(s)", len(p.Changes))
	return nil, nil
}

// workspaceFoldersParams mirrors DidChangeWorkspaceFoldersParams.
type workspaceFoldersParams struct {
	Event struct {
		Added []struct {
			URI string `json:"uri"`
		} `json:"added"`
		Removed []struct {
			URI string `json:"uri"`
		} `json:"removed"`
	} `json:"event"`
}

func (s *Server) handleDidChangeWorkspaceFolders(ctx context.Context, params json.RawMessage) (any, error) {
	var p workspaceFoldersParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	for _, f := range p.Event.Removed {
		path := pathFromURI(protocol.DocumentURI(f.URI))
		if err := s.registry.Remove(path); err != nil {
			log.Printf("didChangeWorkspaceFolders: %v", err)
		}
	}

	var added []string
	for _, f := range p.Event.Added {
		if path := pathFromURI(protocol.DocumentURI(f.URI)); path != "" {
			added = append(added, path)
		}
	}
	s.addRoots(added)
	return nil, nil
}

// --- Commands ---

func (s *Server) handleExecuteCommand(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.ExecuteCommandParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	if p.Command != CommandReindex {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: "unknown command: " + p.Command}
	}

	var root string
	if len(p.Arguments) > 0 {
		if arg, ok := p.Arguments[0].(string); ok {
			root = arg
			if path := pathFromURI(protocol.DocumentURI(arg)); path != "" {
				root = path
			}
		}
	}

	log.Printf("executeCommand: %s %s", p.Command, root)

	prog := s.beginProgress(ctx, "Re-indexing Robot Framework files")
	var err error
	if root != "" {
		_, err = s.registry.Reindex(ctx, root)
	} else {
		err = s.registry.ReindexAll(ctx)
	}
	if err != nil {
		prog.end(ctx, "Re-index failed")
		return nil, &ResponseError{Code: CodeRequestFailed, Message: err.Error()}
	}
	prog.end(ctx, "Re-index complete")
	return nil, nil
}
