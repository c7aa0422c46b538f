package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stanwatch/internal/config"
	"stanwatch/internal/diag"
	"stanwatch/internal/runner"
	"stanwatch/internal/trace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

const (
	commandAnalyseFile   = "stanwatch.analyseFile"
	commandAnalyseFolder = "stanwatch.analyseFolder"

	methodStatus             = "stanwatch/status"
	methodDidChangeSelection = "stanwatch/didChangeSelection"
	methodDidChangeWindow    = "stanwatch/didChangeWindowState"
)

// SettingsLoader returns the base settings for a workspace root.
type SettingsLoader func(root string) (config.Settings, error)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Runner executes PHPStan; defaults to runner.ExecRunner.
	Runner runner.Runner
	// LoadSettings reads stanwatch.toml and the environment for the
	// workspace root at initialize. Defaults to config.Load.
	LoadSettings SettingsLoader
	Tracer       trace.Tracer
	Version      string
}

type document struct {
	text       string
	languageID string
	version    int
}

// Server bridges an editor speaking LSP over stdio to the orchestrator.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex

	openDocs    map[string]document
	lastTouched string
	published   *diag.Collection

	workspaceRoot     string
	folders           []string
	base              config.Settings
	overrides         config.Values
	shutdownRequested bool

	loadSettings SettingsLoader
	tracer       trace.Tracer
	version      string
	orch         *runner.Orchestrator
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	loader := opts.LoadSettings
	if loader == nil {
		loader = func(root string) (config.Settings, error) {
			settings, _, err := config.Load(root)
			return settings, err
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	s := &Server{
		in:           bufio.NewReader(in),
		out:          bufio.NewWriter(out),
		openDocs:     make(map[string]document),
		published:    diag.NewCollection(),
		base:         config.Defaults(),
		loadSettings: loader,
		tracer:       tracer,
		version:      opts.Version,
	}
	s.orch = runner.New(runner.Options{
		Settings: s.currentSettings,
		Roots:    s.currentRoots,
		Active:   s.activePath,
		Accept:   s.acceptTarget,
		Lines:    activeLines{s},
		UI:       hostUI{s},
		Sink:     s,
		Runner:   opts.Runner,
		Tracer:   tracer,
		Logf:     s.logf,
	})
	return s
}

// Run serves LSP requests until exit or end of input.
func (s *Server) Run(ctx context.Context) error {
	defer s.orch.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	span := trace.Begin(s.tracer, trace.ScopeCommand, msg.Method, 0)
	defer span.End("")

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		// analyse whatever the editor shows at startup
		s.orch.Trigger("")
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/didChangeWorkspaceFolders":
		return s.handleDidChangeWorkspaceFolders(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case methodDidChangeSelection:
		return s.handleDidChangeSelection(msg)
	case methodDidChangeWindow:
		return s.handleDidChangeWindowState(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	folders := make([]string, 0, len(params.WorkspaceFolders)+1)
	for _, f := range params.WorkspaceFolders {
		if path := uriToPath(f.URI); path != "" {
			folders = append(folders, path)
		}
	}
	if root == "" && len(folders) > 0 {
		root = folders[0]
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		if len(folders) == 0 {
			folders = append(folders, root)
		}
	}

	base := config.Defaults()
	if root != "" {
		loaded, err := s.loadSettings(root)
		if err != nil {
			s.logf("settings: %v", err)
		} else {
			base = loaded
		}
	}

	s.mu.Lock()
	s.workspaceRoot = root
	s.folders = folders
	s.base = base
	s.mu.Unlock()

	if len(params.InitializationOptions) > 0 {
		s.applySettings(params.InitializationOptions)
	}

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{commandAnalyseFile, commandAnalyseFolder},
			},
			Workspace: &workspaceCapabilities{
				WorkspaceFolders: workspaceFoldersCapability{Supported: true, ChangeNotifications: true},
			},
		},
		ServerInfo: &serverInfo{Name: "stanwatch", Version: s.version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.orch.Close()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidChangeWorkspaceFolders(msg *rpcMessage) error {
	var params didChangeWorkspaceFoldersParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range params.Event.Removed {
		path := uriToPath(f.URI)
		kept := s.folders[:0]
		for _, existing := range s.folders {
			if !samePath(existing, path) {
				kept = append(kept, existing)
			}
		}
		s.folders = kept
	}
	for _, f := range params.Event.Added {
		if path := uriToPath(f.URI); path != "" {
			s.folders = append(s.folders, path)
		}
	}
	return nil
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.openDocs[uri] = document{
		text:       params.TextDocument.Text,
		languageID: params.TextDocument.LanguageID,
		version:    params.TextDocument.Version,
	}
	s.lastTouched = uri
	s.mu.Unlock()
	s.orch.Trigger(uriToPath(uri))
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc := s.openDocs[uri]
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	s.openDocs[uri] = doc
	s.lastTouched = uri
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	if params.Text != nil {
		doc := s.openDocs[uri]
		doc.text = *params.Text
		s.openDocs[uri] = doc
	}
	s.lastTouched = uri
	s.mu.Unlock()
	s.orch.Trigger(uriToPath(uri))
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.openDocs, uri)
	if s.lastTouched == uri {
		s.lastTouched = ""
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidChangeSelection(msg *rpcMessage) error {
	var params didChangeSelectionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return nil
		}
	}
	path := ""
	if params.TextDocument != nil {
		uri := canonicalURI(params.TextDocument.URI)
		s.mu.Lock()
		if _, open := s.openDocs[uri]; open {
			s.lastTouched = uri
		}
		s.mu.Unlock()
		path = uriToPath(uri)
	}
	s.orch.Trigger(path)
	return nil
}

func (s *Server) handleDidChangeWindowState(msg *rpcMessage) error {
	s.orch.Trigger("")
	return nil
}

// currentSettings merges base settings with the editor's overrides.
func (s *Server) currentSettings() config.Settings {
	s.mu.Lock()
	settings := s.base
	overrides := s.overrides
	s.mu.Unlock()
	if err := settings.Apply(overrides); err != nil {
		s.logf("settings: %v", err)
	}
	return settings
}

func (s *Server) currentRoots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.folders...)
}

func (s *Server) activePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uriToPath(s.lastTouched)
}

// acceptTarget trusts the editor's language id for open documents and
// falls back to the file extension.
func (s *Server) acceptTarget(path string) bool {
	uri := canonicalURI(pathToURI(path))
	s.mu.Lock()
	doc, open := s.openDocs[uri]
	s.mu.Unlock()
	if open && doc.languageID != "" {
		return strings.EqualFold(doc.languageID, "php")
	}
	return runner.IsPHPFile(path)
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
}
