// includenav/lsp_server.go
// Implements the Language Server Protocol (LSP) server logic.
package includenav

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

const (
	// navigateCommand reveals the target of the include under the cursor.
	navigateCommand = "includenav.navigateToInclude"
	// settingsSection is the client settings key holding FileConfig fields.
	settingsSection = "includenav"

	diagnosticsTimeout = 30 * time.Second
	requestTimeout     = 10 * time.Second
)

// completionTriggerCharacters start completion inside a path literal.
var completionTriggerCharacters = []string{"'", `"`, "/", ".", "@", "~"}

// ============================================================================
// LSP Server Implementation
// ============================================================================

// notifier sends server-to-client notifications. *jsonrpc2.Conn satisfies it.
type notifier interface {
	Notify(ctx context.Context, method string, params any, opts ...jsonrpc2.CallOption) error
}

// Server represents the LSP server instance.
type Server struct {
	conn           *jsonrpc2.Conn
	client         notifier
	logger         *slog.Logger
	logLevel       *slog.LevelVar // nil when the level is fixed
	navigator      *Navigator
	files          map[DocumentURI]*OpenFile
	filesMu        sync.RWMutex
	clientCaps     ClientCapabilities
	serverInfo     *ServerInfo
	requestTracker *RequestTracker
	scans          *scanScheduler
	watcher        *ConfigWatcher // nil when config watching is off
	watchCancel    context.CancelFunc
	watchMu        sync.Mutex
}

// OpenFile represents a file currently open in the client editor.
type OpenFile struct {
	URI     DocumentURI
	Doc     *TextDocument
	Version int
}

// NewServer creates a new LSP server instance. logLevel may be nil.
func NewServer(navigator *Navigator, logger *slog.Logger, version string, logLevel *slog.LevelVar) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		logger:    logger,
		logLevel:  logLevel,
		navigator: navigator,
		files:     make(map[DocumentURI]*OpenFile),
		serverInfo: &ServerInfo{
			Name:    "includenav LSP",
			Version: version,
		},
		requestTracker: NewRequestTracker(),
		scans:          newScanScheduler(),
	}
	return s
}

// Run starts the LSP server, listening on r/w until the connection closes.
func (s *Server) Run(r io.Reader, w io.Writer) {
	s.logger.Info("Starting LSP server run loop")

	stream := &stdrwc{r: r, w: w}
	objectStream := jsonrpc2.NewBufferedStream(stream, jsonrpc2.VSCodeObjectCodec{})
	handler := asyncRequests{jsonrpc2.HandlerWithError(s.handle)}

	s.conn = jsonrpc2.NewConn(context.Background(), objectStream, handler)
	s.client = s.conn
	s.logger.Info("JSON-RPC connection established")

	<-s.conn.DisconnectNotify()
	s.logger.Info("JSON-RPC connection closed")
	s.stopWatcher()
}

// stdrwc is a simple ReadWriteCloser that wraps stdin/stdout without closing them.
type stdrwc struct {
	r io.Reader
	w io.Writer
}

func (s *stdrwc) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *stdrwc) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdrwc) Close() error                { return nil }

// asyncRequests handles notifications in arrival order and requests on their
// own goroutines, so $/cancelRequest can reach a request still running.
type asyncRequests struct {
	h jsonrpc2.Handler
}

func (a asyncRequests) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		a.h.Handle(ctx, conn, req)
		return
	}
	go a.h.Handle(ctx, conn, req)
}

// handle routes incoming LSP requests/notifications to appropriate methods.
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	methodLogger := s.logger.With("method", req.Method, "is_notification", req.Notif)
	if !req.Notif {
		methodLogger = methodLogger.With("req_id", req.ID)
	}
	methodLogger.Debug("Received request/notification")

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			methodLogger.Error("Panic recovered in handler", "panic_value", r, "stack", stack)

			panicData, marshalErr := json.Marshal(fmt.Sprintf("Panic: %v", r))
			if marshalErr != nil {
				panicData = []byte(`"failed to marshal panic data"`)
			}
			rawPanicData := json.RawMessage(panicData)
			err = &jsonrpc2.Error{
				Code:    int64(JsonRpcInternalError),
				Message: fmt.Sprintf("Internal server error in method %s", req.Method),
				Data:    &rawPanicData,
			}
			result = nil
		}
	}()

	if !req.Notif {
		var done func()
		ctx, done = s.requestTracker.Add(req.ID, ctx)
		defer done()
	}
	if ctx.Err() != nil {
		methodLogger.Warn("Request context cancelled before processing started", "error", ctx.Err())
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Request cancelled"}
	}

	unmarshalParams := func(target any) error {
		if req.Params == nil {
			return errors.New("params field is null")
		}
		return json.Unmarshal(*req.Params, target)
	}
	invalidParams := func(err error) error {
		methodLogger.Error("Failed to unmarshal params", "error", err)
		return &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid %s params: %v", req.Method, err)}
	}

	switch req.Method {
	case "initialize":
		var params InitializeParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleInitialize(ctx, params, methodLogger)

	case "initialized":
		methodLogger.Info("Client initialized notification received")
		return nil, nil

	case "shutdown":
		return s.handleShutdown(ctx, methodLogger)

	case "exit":
		return s.handleExit(ctx, methodLogger)

	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didOpen params", "error", err)
			return nil, nil
		}
		return s.handleDidOpen(ctx, params, methodLogger)

	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChange params", "error", err)
			return nil, nil
		}
		return s.handleDidChange(ctx, params, methodLogger)

	case "textDocument/didSave":
		var params DidSaveTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didSave params", "error", err)
			return nil, nil
		}
		return s.handleDidSave(ctx, params, methodLogger)

	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didClose params", "error", err)
			return nil, nil
		}
		return s.handleDidClose(ctx, params, methodLogger)

	case "textDocument/completion":
		var params CompletionParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleCompletion(ctx, params, methodLogger)

	case "textDocument/hover":
		var params HoverParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleHover(ctx, params, methodLogger)

	case "textDocument/definition":
		var params DefinitionParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleDefinition(ctx, params, methodLogger)

	case "textDocument/documentLink":
		var params DocumentLinkParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleDocumentLink(ctx, params, methodLogger)

	case "workspace/didChangeConfiguration":
		var params DidChangeConfigurationParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChangeConfiguration params", "error", err)
			return nil, nil
		}
		return s.handleDidChangeConfiguration(ctx, params, methodLogger)

	case "workspace/didChangeWorkspaceFolders":
		var params DidChangeWorkspaceFoldersParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChangeWorkspaceFolders params", "error", err)
			return nil, nil
		}
		return s.handleDidChangeWorkspaceFolders(ctx, params, methodLogger)

	case "workspace/executeCommand":
		var params ExecuteCommandParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleExecuteCommand(ctx, params, methodLogger)

	case "$/cancelRequest":
		var params CancelParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal cancelRequest params", "error", err)
			return nil, nil
		}
		var cancelID jsonrpc2.ID
		switch idVal := params.ID.(type) {
		case float64:
			cancelID = jsonrpc2.ID{Num: uint64(idVal)}
		case string:
			cancelID = jsonrpc2.ID{Str: idVal, IsString: true}
		default:
			methodLogger.Warn("Could not determine type of cancel request ID", "id_value", params.ID, "id_type", fmt.Sprintf("%T", params.ID))
			return nil, nil
		}
		s.requestTracker.Cancel(cancelID)
		methodLogger.Debug("Cancellation request processed", "cancelled_id", cancelID)
		return nil, nil

	default:
		if req.Notif {
			methodLogger.Debug("Ignoring unhandled notification")
			return nil, nil
		}
		methodLogger.Warn("Unhandled LSP method")
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcMethodNotFound), Message: fmt.Sprintf("Method not supported: %s", req.Method)}
	}
}

// ============================================================================
// Open Documents
// ============================================================================

// openFile returns the snapshot of an open document.
func (s *Server) openFile(uri DocumentURI) (*OpenFile, bool) {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	f, ok := s.files[uri]
	return f, ok
}

// ============================================================================
// Notifications to the Client
// ============================================================================

func (s *Server) sendShowMessage(msgType MessageType, message string) {
	if s.client == nil {
		s.logger.Warn("Cannot send showMessage: connection is nil")
		return
	}
	params := ShowMessageParams{Type: msgType, Message: message}
	if err := s.client.Notify(context.Background(), "window/showMessage", params); err != nil {
		s.logger.Error("Failed to send window/showMessage notification", "error", err, "message_type", msgType)
	}
}

func (s *Server) publishDiagnostics(uri DocumentURI, version *int, diagnostics []LspDiagnostic) {
	if s.client == nil {
		s.logger.Warn("Cannot publish diagnostics: connection is nil", "uri", uri)
		return
	}
	params := PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	}
	if err := s.client.Notify(context.Background(), "textDocument/publishDiagnostics", params); err != nil {
		s.logger.Error("Failed to send textDocument/publishDiagnostics notification", "error", err, "uri", uri, "diagnostic_count", len(diagnostics))
	} else {
		s.logger.Debug("Published diagnostics", "uri", uri, "diagnostic_count", len(diagnostics))
	}
}

// triggerDiagnostics scans file in the background. A newer scan of the same
// document cancels this one, and only the newest scan publishes.
func (s *Server) triggerDiagnostics(file *OpenFile) {
	key := string(file.URI)
	ctx, gen := s.scans.begin(context.Background(), key)
	go func() {
		defer s.scans.finish(key, gen)
		diagLogger := s.logger.With("uri", file.URI, "version", file.Version, "operation", "triggerDiagnostics")

		scanCtx, cancel := context.WithTimeout(ctx, diagnosticsTimeout)
		defer cancel()

		findings, err := s.navigator.ScanDocument(scanCtx, file.Doc)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				diagLogger.Debug("Diagnostics scan superseded")
			} else {
				diagLogger.Warn("Diagnostics scan failed", "error", err)
			}
			return
		}

		diagnostics := make([]LspDiagnostic, 0, len(findings))
		for _, f := range findings {
			diagnostics = append(diagnostics, findingToDiagnostic(file.Doc, f))
		}
		version := file.Version
		s.scans.publishIfCurrent(key, gen, func() {
			s.publishDiagnostics(file.URI, &version, diagnostics)
		})
	}()
}

// ============================================================================
// Config Watching
// ============================================================================

// startWatcher begins fsnotify invalidation for the current workspace roots.
func (s *Server) startWatcher() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if !s.navigator.GetCurrentConfig().WatchConfigFiles || s.watcher != nil {
		return
	}
	w, err := NewConfigWatcher(s.navigator.InvalidateAliases, s.logger)
	if err != nil {
		s.logger.Warn("Config watching disabled", "error", err)
		return
	}
	for _, root := range s.navigator.WorkspaceRoots() {
		if err := w.Add(root); err != nil {
			s.logger.Warn("Could not watch workspace root", "root", root, "error", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = w
	s.watchCancel = cancel
	go w.Run(ctx)
}

func (s *Server) stopWatcher() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return
	}
	s.watchCancel()
	if err := s.watcher.Close(); err != nil {
		s.logger.Warn("Closing config watcher failed", "error", err)
	}
	s.watcher = nil
}

// addRoot registers a workspace root with the navigator and the watcher.
func (s *Server) addRoot(uri DocumentURI) {
	root, err := ValidateAndGetFilePath(string(uri))
	if err != nil {
		s.logger.Warn("Ignoring workspace folder with invalid URI", "uri", uri, "error", err)
		return
	}
	s.navigator.AddWorkspaceRoot(root)
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		if err := s.watcher.Add(root); err != nil {
			s.logger.Warn("Could not watch workspace root", "root", root, "error", err)
		}
	}
}

// removeRoot forgets a workspace root.
func (s *Server) removeRoot(uri DocumentURI) {
	root, err := ValidateAndGetFilePath(string(uri))
	if err != nil {
		return
	}
	s.navigator.RemoveWorkspaceRoot(root)
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		if err := s.watcher.Remove(root); err != nil {
			s.logger.Warn("Could not unwatch workspace root", "root", root, "error", err)
		}
	}
}

// ============================================================================
// Metrics
// ============================================================================

var publishMetricsOnce sync.Once

// PublishExpvarMetrics exposes server and cache counters under /debug/vars.
// Only the first server's state is published.
func PublishExpvarMetrics(s *Server) {
	publishMetricsOnce.Do(func() {
		startTime := time.Now()
		expvar.NewString("serverInfo.name").Set(s.serverInfo.Name)
		expvar.NewString("serverInfo.version").Set(s.serverInfo.Version)
		expvar.NewString("serverStartTime").Set(startTime.Format(time.RFC3339))
		expvar.Publish("goroutines", expvar.Func(func() any { return runtime.NumGoroutine() }))
		expvar.Publish("memory.allocBytes", expvar.Func(func() any {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return m.Alloc
		}))
		expvar.Publish("lsp.openFiles", expvar.Func(func() any {
			s.filesMu.RLock()
			defer s.filesMu.RUnlock()
			return len(s.files)
		}))
		expvar.Publish("lsp.pendingRequests", expvar.Func(func() any { return s.requestTracker.Count() }))
		expvar.Publish("lsp.pendingScans", expvar.Func(func() any { return s.scans.pending() }))
		expvar.Publish("cache.alias.roots", expvar.Func(func() any { return s.navigator.AliasCacheLen() }))

		cacheMetric := func(pick func(hits, misses, keysAdded, keysEvicted uint64) uint64) expvar.Func {
			return func() any {
				m := s.navigator.GetMemoryCacheMetrics()
				if m == nil {
					return 0
				}
				return pick(m.Hits(), m.Misses(), m.KeysAdded(), m.KeysEvicted())
			}
		}
		expvar.Publish("cache.memory.hits", cacheMetric(func(h, _, _, _ uint64) uint64 { return h }))
		expvar.Publish("cache.memory.misses", cacheMetric(func(_, m, _, _ uint64) uint64 { return m }))
		expvar.Publish("cache.memory.keysAdded", cacheMetric(func(_, _, a, _ uint64) uint64 { return a }))
		expvar.Publish("cache.memory.keysEvicted", cacheMetric(func(_, _, _, e uint64) uint64 { return e }))
		s.logger.Info("Expvar metrics published")
	})
}

// ============================================================================
// Request Tracking
// ============================================================================

// RequestTracker holds the cancel functions of in-flight requests.
type RequestTracker struct {
	mu       sync.Mutex
	requests map[jsonrpc2.ID]context.CancelFunc
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		requests: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Add derives a cancellable context for id. The returned func must be called
// when the request completes.
func (rt *RequestTracker) Add(id jsonrpc2.ID, ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	rt.mu.Lock()
	rt.requests[id] = cancel
	rt.mu.Unlock()
	return reqCtx, func() {
		rt.Remove(id)
		cancel()
	}
}

func (rt *RequestTracker) Remove(id jsonrpc2.ID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.requests, id)
}

// Cancel cancels the request's context if it is still running.
func (rt *RequestTracker) Cancel(id jsonrpc2.ID) bool {
	rt.mu.Lock()
	cancel, found := rt.requests[id]
	if found {
		delete(rt.requests, id)
	}
	rt.mu.Unlock()

	if found {
		cancel()
	}
	return found
}

func (rt *RequestTracker) Count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.requests)
}
