// includenav/lsp_handlers_textdocument.go
// Contains LSP method handlers for text document synchronization and the
// navigation features (definition, hover, completion, document links).
package includenav

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/jsonrpc2"
)

// ============================================================================
// Synchronization Handlers
// ============================================================================

func (s *Server) handleDidOpen(ctx context.Context, params DidOpenTextDocumentParams, logger *slog.Logger) (any, error) {
	item := params.TextDocument
	logger = logger.With("uri", item.URI, "version", item.Version)
	logger.Info("Handling textDocument/didOpen", "size", len(item.Text))

	absPath, pathErr := ValidateAndGetFilePath(string(item.URI))
	if pathErr != nil {
		logger.Error("Invalid URI in didOpen", "error", pathErr)
		s.sendShowMessage(MessageTypeError, fmt.Sprintf("Invalid document URI: %v", pathErr))
		return nil, nil
	}
	languageID := item.LanguageID
	if languageID == "" {
		languageID = LanguageForPath(absPath)
	}

	file := &OpenFile{
		URI:     item.URI,
		Doc:     NewTextDocument(absPath, languageID, item.Text),
		Version: item.Version,
	}
	s.filesMu.Lock()
	s.files[item.URI] = file
	s.filesMu.Unlock()

	s.triggerDiagnostics(file)
	return nil, nil
}

// handleDidChange keeps the newest text. Diagnostics wait for the next save.
func (s *Server) handleDidChange(ctx context.Context, params DidChangeTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	version := params.TextDocument.Version
	if len(params.ContentChanges) == 0 {
		logger.Warn("Received didChange notification with no content changes", "uri", uri, "version", version)
		return nil, nil
	}
	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	current, exists := s.files[uri]
	if !exists {
		logger.Warn("didChange for a document that is not open", "uri", uri)
		return nil, nil
	}
	if version <= current.Version {
		logger.Warn("Ignoring out-of-order didChange notification", "uri", uri, "received_version", version, "current_version", current.Version)
		return nil, nil
	}
	s.files[uri] = &OpenFile{
		URI:     uri,
		Doc:     NewTextDocument(current.Doc.Path(), current.Doc.LanguageID(), text),
		Version: version,
	}
	logger.Debug("Updated document", "uri", uri, "version", version)
	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, params DidSaveTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	logger.Info("Handling textDocument/didSave", "uri", uri)

	s.filesMu.Lock()
	file, ok := s.files[uri]
	if ok && params.Text != nil {
		file = &OpenFile{
			URI:     uri,
			Doc:     NewTextDocument(file.Doc.Path(), file.Doc.LanguageID(), *params.Text),
			Version: file.Version,
		}
		s.files[uri] = file
	}
	s.filesMu.Unlock()
	if !ok {
		logger.Warn("didSave for a document that is not open", "uri", uri)
		return nil, nil
	}

	if isAliasConfigFile(file.Doc.Path()) {
		if root := s.navigator.ProjectRoot(file.Doc.Path()); root != "" {
			s.navigator.InvalidateAliases(root)
		}
	}
	s.triggerDiagnostics(file)
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, params DidCloseTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	logger.Info("Handling textDocument/didClose", "uri", uri)

	s.filesMu.Lock()
	delete(s.files, uri)
	s.filesMu.Unlock()

	s.scans.cancel(string(uri))
	s.publishDiagnostics(uri, nil, []LspDiagnostic{})
	return nil, nil
}

// ============================================================================
// Feature Handlers
// ============================================================================

// positionInFile converts an LSP position on an open document to a byte column.
func (s *Server) positionInFile(uri DocumentURI, pos LSPPosition, logger *slog.Logger) (*OpenFile, int, int, bool) {
	file, ok := s.openFile(uri)
	if !ok {
		logger.Warn("Request for a document that is not open")
		return nil, 0, 0, false
	}
	line, col, err := LspPositionToByteColumn(file.Doc, pos)
	if err != nil {
		logger.Warn("Failed to convert LSP position", "error", err)
		return nil, 0, 0, false
	}
	return file, line, col, true
}

func (s *Server) handleDefinition(ctx context.Context, params DefinitionParams, logger *slog.Logger) (any, error) {
	logger = logger.With("uri", params.TextDocument.URI, "lsp_line", params.Position.Line, "lsp_char", params.Position.Character)
	file, line, col, ok := s.positionInFile(params.TextDocument.URI, params.Position, logger)
	if !ok {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	locations := s.locationsFor(reqCtx, file.Doc, line, col, logger)
	if ctx.Err() != nil {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Definition request cancelled"}
	}
	if len(locations) == 0 {
		return nil, nil
	}
	logger.Debug("Definition resolved", "targets", len(locations))
	return locations, nil
}

// locationsFor resolves the literal at (line, col) into file locations.
func (s *Server) locationsFor(ctx context.Context, doc Document, line, col int, logger *slog.Logger) []Location {
	targets := s.navigator.Definition(ctx, doc, line, col)
	locations := make([]Location, 0, len(targets))
	for _, target := range targets {
		loc, err := targetLocation(target)
		if err != nil {
			logger.Warn("Skipping target", "target", target, "error", err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

func (s *Server) handleHover(ctx context.Context, params HoverParams, logger *slog.Logger) (any, error) {
	logger = logger.With("uri", params.TextDocument.URI, "lsp_line", params.Position.Line, "lsp_char", params.Position.Character)
	file, line, col, ok := s.positionInFile(params.TextDocument.URI, params.Position, logger)
	if !ok {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	content, found := s.navigator.Hover(reqCtx, file.Doc, line, col)
	if ctx.Err() != nil {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Hover request cancelled"}
	}
	if !found {
		return nil, nil
	}

	markupKind := MarkupKindPlainText
	if s.clientCaps.TextDocument != nil && s.clientCaps.TextDocument.Hover != nil {
		for _, kind := range s.clientCaps.TextDocument.Hover.ContentFormat {
			if kind == MarkupKindMarkdown {
				markupKind = MarkupKindMarkdown
				break
			}
		}
	}

	result := HoverResult{Contents: MarkupContent{Kind: markupKind, Value: content}}
	if hit := s.navigator.ExtractContext(file.Doc, line, col); hit.Found() {
		r := rangeToLSP(file.Doc, Range{
			Start: Position{Line: line, Character: hit.Start},
			End:   Position{Line: line, Character: hit.End},
		})
		result.Range = &r
	}
	return result, nil
}

func (s *Server) handleCompletion(ctx context.Context, params CompletionParams, logger *slog.Logger) (any, error) {
	logger = logger.With("uri", params.TextDocument.URI, "lsp_line", params.Position.Line, "lsp_char", params.Position.Character)
	empty := CompletionList{Items: []CompletionItem{}}

	file, line, col, ok := s.positionInFile(params.TextDocument.URI, params.Position, logger)
	if !ok {
		return empty, nil
	}
	hit := s.navigator.ExtractPrefix(file.Doc, line, col)
	if !hit.Found() {
		return empty, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	entries := s.navigator.ListCompletions(reqCtx, file.Doc, hit.Text)
	if ctx.Err() != nil {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Completion request cancelled"}
	}
	items := make([]CompletionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, completionToLSP(e))
	}
	logger.Debug("Completion listed", "prefix", hit.Text, "items", len(items))
	return CompletionList{Items: items}, nil
}

func (s *Server) handleDocumentLink(ctx context.Context, params DocumentLinkParams, logger *slog.Logger) (any, error) {
	file, ok := s.openFile(params.TextDocument.URI)
	if !ok {
		logger.Warn("documentLink for a document that is not open", "uri", params.TextDocument.URI)
		return []LspDocumentLink{}, nil
	}
	links := s.navigator.DocumentLinks(file.Doc)
	result := make([]LspDocumentLink, 0, len(links))
	for _, link := range links {
		result = append(result, LspDocumentLink{
			Range:   rangeToLSP(file.Doc, link.Range),
			Target:  link.Target,
			Tooltip: "Open " + link.Target,
		})
	}
	return result, nil
}
