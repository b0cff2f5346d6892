package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/il/cache"
	"github.com/teranos/ilsp/il/query"
	"github.com/teranos/ilsp/il/workspace"
	"github.com/teranos/ilsp/internal/util"
	"github.com/teranos/ilsp/logger"
	"github.com/teranos/ilsp/version"
)

// GLSPHandler serves one client connection. It owns the symbol cache, the
// update workers and the file watcher of that client's workspace, so two
// editors on different roots never share state.
type GLSPHandler struct {
	server *Server
	cache  *cache.SymbolCache
	engine *query.Engine
	worker *cache.Worker
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	root        string
	notify      glsp.NotifyFunc
	initialized bool
	pending     map[string][]analysis.Diagnostic
	watcher     *workspace.Watcher
	closeOnce   sync.Once
}

// NewGLSPHandler creates a session bound to the server's current configuration
func NewGLSPHandler(s *Server) *GLSPHandler {
	cfg := s.Config()
	log := s.logger.With("session", uuid.NewString()[:8])
	ctx, cancel := context.WithCancel(logger.WithComponent(s.ctx, "lsp"))

	h := &GLSPHandler{
		server:  s,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string][]analysis.Diagnostic),
	}
	h.cache = cache.New(
		analysis.NewAnnotator(cfg.AnalysisOptions(), log.Named("annotator")),
		cache.WithShards(cfg.Cache.Shards),
		cache.WithLogger(log.Named("cache")),
	)
	h.engine = query.NewEngine(utf16Source{h.cache})
	h.worker = cache.NewWorker(ctx, h.cache, cfg.WorkerConfig(), h.onOutcome, log.Named("worker"))
	return h
}

// Protocol returns the glsp handler table for this session
func (h *GLSPHandler) Protocol() *protocol.Handler {
	return &protocol.Handler{
		Initialize:                     h.Initialize,
		Initialized:                    h.Initialized,
		Shutdown:                       h.Shutdown,
		Exit:                           h.Exit,
		SetTrace:                       h.SetTrace,
		TextDocumentDidOpen:            h.TextDocumentDidOpen,
		TextDocumentDidSave:            h.TextDocumentDidSave,
		TextDocumentDidClose:           h.TextDocumentDidClose,
		TextDocumentCompletion:         h.TextDocumentCompletion,
		TextDocumentHover:              h.TextDocumentHover,
		TextDocumentDocumentSymbol:     h.TextDocumentDocumentSymbol,
		TextDocumentSemanticTokensFull: h.TextDocumentSemanticTokensFull,
	}
}

// Cache exposes the session's symbol cache
func (h *GLSPHandler) Cache() *cache.SymbolCache {
	return h.cache
}

// request derives a request id and a logger carrying it
func (h *GLSPHandler) request(method string) (context.Context, string, *zap.SugaredLogger) {
	id := uuid.NewString()
	ctx := logger.WithRequestID(h.ctx, id)
	return ctx, id, logger.FromContext(ctx, h.logger).With(logger.FieldMethod, method)
}

// Initialize scans the workspace root. Diagnostics found by the scan are
// held back until the client confirms with initialized.
func (h *GLSPHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	reqCtx, _, log := h.request("initialize")

	root := rootFromParams(params)
	log.Infow("LSP client initializing",
		"client", params.ClientInfo,
		logger.FieldRoot, root,
	)

	h.mu.Lock()
	h.root = root
	h.notify = ctx.Notify
	h.mu.Unlock()

	if root != "" {
		report, err := workspace.Scan(reqCtx, h.cache, root, h.server.Config().ScanOptions(), log)
		if err != nil {
			// An unscannable root still gets per-file service on open and save
			log.Warnw("Workspace scan failed", logger.FieldRoot, root, logger.FieldError, err)
		} else {
			h.mu.Lock()
			for _, f := range report.Files {
				h.pending[f.Path] = f.Result.Columns.Diagnostics(f.Diagnostics())
			}
			h.mu.Unlock()
		}
	}

	h.worker.Start()

	return protocol.InitializeResult{
		Capabilities: capabilities(),
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    version.ServerName,
			Version: util.Ptr(version.Get().Short()),
		},
	}, nil
}

func capabilities() protocol.ServerCapabilities {
	syncKind := protocol.TextDocumentSyncKindNone
	return protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: util.Ptr(true),
			Change:    &syncKind,
			Save:      &protocol.SaveOptions{IncludeText: util.Ptr(false)},
		},
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{"("},
		},
		HoverProvider:          &protocol.HoverOptions{},
		DocumentSymbolProvider: true,
		SemanticTokensProvider: &protocol.SemanticTokensOptions{
			Legend: protocol.SemanticTokensLegend{
				TokenTypes:     query.TokenTypes,
				TokenModifiers: query.TokenModifiers,
			},
			Full: true,
		},
	}
}

// rootFromParams picks rootUri, then rootPath, then the first workspace folder
func rootFromParams(params *protocol.InitializeParams) string {
	if params.RootURI != nil && *params.RootURI != "" {
		if path, err := pathFromURI(string(*params.RootURI)); err == nil {
			return path
		}
	}
	if params.RootPath != nil && *params.RootPath != "" {
		return *params.RootPath
	}
	if len(params.WorkspaceFolders) > 0 {
		if path, err := pathFromURI(string(params.WorkspaceFolders[0].URI)); err == nil {
			return path
		}
	}
	return ""
}

// Initialized publishes the scan diagnostics and starts watching the root
func (h *GLSPHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	_, _, log := h.request("initialized")

	h.mu.Lock()
	h.initialized = true
	if ctx.Notify != nil {
		h.notify = ctx.Notify
	}
	pending := h.pending
	h.pending = make(map[string][]analysis.Diagnostic)
	root := h.root
	h.mu.Unlock()

	for path, diags := range pending {
		h.publish(path, diags)
	}
	log.Infow("LSP client initialized", logger.FieldCount, len(pending))

	cfg := h.server.Config()
	if root == "" || !cfg.Workspace.Watch {
		return nil
	}

	w, err := workspace.NewWatcher(root, cfg.WatchOptions(), h.onChange, h.onRemove, h.logger.Named("watcher"))
	if err != nil {
		log.Warnw("File watcher unavailable", logger.FieldRoot, root, logger.FieldError, err)
		return nil
	}
	if err := w.Start(h.ctx); err != nil {
		log.Warnw("File watcher failed to start", logger.FieldRoot, root, logger.FieldError, err)
		_ = w.Close()
		return nil
	}

	h.mu.Lock()
	h.watcher = w
	h.mu.Unlock()
	return nil
}

// Shutdown stops the watcher and the update workers
func (h *GLSPHandler) Shutdown(ctx *glsp.Context) error {
	h.logger.Infow("LSP client shutting down")
	h.Close()
	return nil
}

// Exit is idempotent with Shutdown; the transport ends the session
func (h *GLSPHandler) Exit(ctx *glsp.Context) error {
	h.Close()
	return nil
}

// SetTrace records the client's trace level
func (h *GLSPHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// Close releases the session. Safe to call more than once.
func (h *GLSPHandler) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		w := h.watcher
		h.watcher = nil
		h.mu.Unlock()

		if w != nil {
			if err := w.Close(); err != nil {
				h.logger.Warnw("Failed to close file watcher", logger.FieldError, err)
			}
		}
		h.worker.Stop()
		h.cancel()
		h.server.forget(h)
	})
}

// TextDocumentDidOpen analyses the text the editor opened
func (h *GLSPHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	_, id, log := h.request("textDocument/didOpen")
	path, err := pathFromURI(string(params.TextDocument.URI))
	if err != nil {
		log.Debugw("Ignoring document", logger.FieldURI, params.TextDocument.URI, logger.FieldError, err)
		return nil
	}
	return h.submit(cache.Job{Path: path, Source: []byte(params.TextDocument.Text), RequestID: id}, log)
}

// TextDocumentDidSave re-reads the saved file
func (h *GLSPHandler) TextDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	_, id, log := h.request("textDocument/didSave")
	path, err := pathFromURI(string(params.TextDocument.URI))
	if err != nil {
		log.Debugw("Ignoring document", logger.FieldURI, params.TextDocument.URI, logger.FieldError, err)
		return nil
	}
	job := cache.Job{Path: path, RequestID: id}
	if params.Text != nil {
		job.Source = []byte(*params.Text)
	}
	return h.submit(job, log)
}

// TextDocumentDidClose keeps the cached entry; the file is still part of the workspace
func (h *GLSPHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.logger.Debugw("Document closed", logger.FieldURI, params.TextDocument.URI)
	return nil
}

func (h *GLSPHandler) submit(job cache.Job, log *zap.SugaredLogger) error {
	if err := h.worker.Submit(job); err != nil {
		log.Warnw("Update not queued", logger.FieldPath, job.Path, logger.FieldError, err)
		if errors.Is(err, errors.ErrServiceUnavailable) {
			return nil
		}
		return err
	}
	return nil
}

// TextDocumentCompletion lists the declarations visible at the cursor
func (h *GLSPHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	_, _, log := h.request("textDocument/completion")
	// Panic recovery: if completion logic panics, return empty list instead of crashing
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic in completion handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	path, err := h.document(params.TextDocument.URI)
	if err != nil {
		rejected(log, params.TextDocument.URI, err)
		return []protocol.CompletionItem{}, nil
	}

	items := toCompletionItems(h.engine.Completion(path, toPosition(params.Position)))
	log.Debugw("LSP completion result",
		logger.FieldPath, path,
		logger.FieldLine, params.Position.Line,
		logger.FieldCharacter, params.Position.Character,
		logger.FieldCount, len(items),
	)
	return items, nil
}

// TextDocumentHover describes the declaration of the name under the cursor
func (h *GLSPHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	_, _, log := h.request("textDocument/hover")
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic in hover handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = nil
			err = nil
		}
	}()

	path, err := h.document(params.TextDocument.URI)
	if err != nil {
		rejected(log, params.TextDocument.URI, err)
		return nil, nil
	}

	res, ok := h.engine.Hover(path, toPosition(params.Position))
	if !ok {
		return nil, nil
	}
	log.Debugw("LSP hover result", logger.FieldPath, path, "name", res.Name)

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: res.Markdown(),
		},
		Range: util.Ptr(fromRange(res.Use)),
	}, nil
}

// TextDocumentDocumentSymbol returns the outline of a file
func (h *GLSPHandler) TextDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (result any, err error) {
	_, _, log := h.request("textDocument/documentSymbol")
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic in document symbol handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = []protocol.DocumentSymbol{}
			err = nil
		}
	}()

	path, err := h.document(params.TextDocument.URI)
	if err != nil {
		rejected(log, params.TextDocument.URI, err)
		return []protocol.DocumentSymbol{}, nil
	}
	return toDocumentSymbols(h.engine.DocumentSymbols(path)), nil
}

// TextDocumentSemanticTokensFull handles semantic tokens request for syntax highlighting
func (h *GLSPHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (result *protocol.SemanticTokens, err error) {
	_, _, log := h.request("textDocument/semanticTokens/full")
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic in semantic tokens handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = &protocol.SemanticTokens{Data: []uint32{}}
			err = nil
		}
	}()

	path, err := h.document(params.TextDocument.URI)
	if err != nil {
		rejected(log, params.TextDocument.URI, err)
		return &protocol.SemanticTokens{Data: []uint32{}}, nil
	}

	data := h.engine.SemanticTokens(path)
	log.Debugw("LSP semantic tokens result", logger.FieldPath, path, "data_length", len(data))
	return &protocol.SemanticTokens{Data: data}, nil
}

// document resolves a request URI to an analysed path
func (h *GLSPHandler) document(u protocol.DocumentUri) (string, error) {
	path, err := pathFromURI(string(u))
	if err != nil {
		return "", err
	}
	if !h.cache.Contains(path) {
		return "", errors.Wrapf(errors.ErrNotFound, "no analysis for %s", path)
	}
	return path, nil
}

// rejected logs a query that is answered with an empty result
func rejected(log *zap.SugaredLogger, u protocol.DocumentUri, err error) {
	switch {
	case errors.IsNotFoundError(err):
		log.Debugw("Document not analysed", logger.FieldURI, u)
	case errors.IsInvalidRequestError(err):
		log.Warnw("Invalid document URI", logger.FieldURI, u, logger.FieldError, err)
	default:
		log.Warnw("Query rejected", logger.FieldURI, u, logger.FieldError, err)
	}
}

// onOutcome publishes the diagnostics of every finished update
func (h *GLSPHandler) onOutcome(ctx context.Context, o cache.Outcome) {
	diags := o.Result.Diagnostics
	if o.Err != nil {
		if !errors.IsUnreadableError(o.Err) {
			// cancelled during shutdown
			return
		}
		diags = []analysis.Diagnostic{analysis.UnreadableDiagnostic(o.Err)}
	}
	h.publish(o.Job.Path, o.Result.Columns.Diagnostics(diags))
}

func (h *GLSPHandler) onChange(ctx context.Context, path string) {
	if err := h.worker.Submit(cache.Job{Path: path}); err != nil {
		logger.FromContext(ctx, h.logger).Debugw("Watched change not queued", logger.FieldPath, path, logger.FieldError, err)
	}
}

func (h *GLSPHandler) onRemove(ctx context.Context, path string) {
	if h.cache.Evict(path) {
		h.publish(path, nil)
	}
}

// reconfigure swaps the annotator and re-analyses every cached file
func (h *GLSPHandler) reconfigure(cfg *am.Config) {
	h.cache.SetAnalyzer(analysis.NewAnnotator(cfg.AnalysisOptions(), h.logger.Named("annotator")))
	for _, path := range h.cache.Paths() {
		if err := h.worker.Submit(cache.Job{Path: path}); err != nil {
			h.logger.Debugw("Re-analysis not queued", logger.FieldPath, path, logger.FieldError, err)
			return
		}
	}
}

// publish sends diagnostics for path, or parks them until initialized
func (h *GLSPHandler) publish(path string, diags []analysis.Diagnostic) {
	h.mu.Lock()
	if !h.initialized {
		h.pending[path] = diags
		h.mu.Unlock()
		return
	}
	notify := h.notify
	h.mu.Unlock()

	if notify == nil {
		return
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uriFromPath(path),
		Diagnostics: toDiagnostics(diags),
	})
}
