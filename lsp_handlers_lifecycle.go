// includenav/lsp_handlers_lifecycle.go
// Contains LSP method handlers related to the server lifecycle (initialize, shutdown, exit).
package includenav

import (
	"context"
	"log/slog"
)

// ============================================================================
// LSP Lifecycle Method Handlers
// ============================================================================

// handleInitialize registers the workspace roots and returns server capabilities.
func (s *Server) handleInitialize(ctx context.Context, params InitializeParams, logger *slog.Logger) (any, error) {
	clientName, clientVersion := "", ""
	if params.ClientInfo != nil {
		clientName, clientVersion = params.ClientInfo.Name, params.ClientInfo.Version
	}
	logger.Info("Handling initialize request", "client_name", clientName, "client_version", clientVersion)

	s.clientCaps = params.Capabilities

	if len(params.WorkspaceFolders) > 0 {
		for _, folder := range params.WorkspaceFolders {
			s.addRoot(folder.URI)
		}
	} else if params.RootURI != "" {
		s.addRoot(params.RootURI)
	}
	s.startWatcher()

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save:      &SaveOptions{},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: completionTriggerCharacters,
			},
			HoverProvider:        true,
			DefinitionProvider:   true,
			DocumentLinkProvider: &DocumentLinkOptions{},
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{navigateCommand},
			},
			Workspace: &WorkspaceServerCapabilities{
				WorkspaceFolders: &WorkspaceFoldersServerCapabilities{Supported: true, ChangeNotifications: true},
			},
		},
		ServerInfo: s.serverInfo,
	}

	logger.Info("Initialization successful", "roots", s.navigator.WorkspaceRoots())
	return result, nil
}

// handleShutdown stops background work; the process exits on "exit".
func (s *Server) handleShutdown(ctx context.Context, logger *slog.Logger) (any, error) {
	logger.Info("Handling shutdown request")
	s.stopWatcher()
	return nil, nil
}

// handleExit closes the connection, which ends Run.
func (s *Server) handleExit(ctx context.Context, logger *slog.Logger) (any, error) {
	logger.Info("Handling exit notification")
	if s.conn != nil {
		s.conn.Close()
	}
	return nil, nil
}
