// includenav/lsp_handlers_workspace.go
// Contains LSP method handlers related to workspace events and commands.
package includenav

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tidwall/gjson"
)

// ============================================================================
// LSP Workspace Method Handlers
// ============================================================================

// handleDidChangeConfiguration merges the client's "includenav" settings (or a
// flat settings object) over the current configuration.
func (s *Server) handleDidChangeConfiguration(ctx context.Context, params DidChangeConfigurationParams, logger *slog.Logger) (any, error) {
	logger.Info("Handling workspace/didChangeConfiguration")

	raw := []byte(params.Settings)
	if section := gjson.GetBytes(raw, settingsSection); section.Exists() && section.IsObject() {
		raw = []byte(section.Raw)
	}
	var fileCfg FileConfig
	if err := json.Unmarshal(raw, &fileCfg); err != nil {
		logger.Error("Failed to unmarshal settings", "error", err, "raw_settings", string(params.Settings))
		return nil, nil
	}

	newConfig := s.navigator.GetCurrentConfig()
	mergedFields := mergeFileConfig(&newConfig, fileCfg)
	if mergedFields == 0 {
		logger.Debug("No relevant configuration changes found in settings")
		return nil, nil
	}

	logger.Info("Applying configuration changes from client", "fields_merged", mergedFields)
	if err := s.navigator.UpdateConfig(newConfig); err != nil {
		logger.Error("Failed to apply updated configuration", "error", err)
		s.sendShowMessage(MessageTypeError, fmt.Sprintf("Failed to apply configuration update: %v", err))
		return nil, nil
	}

	applied := s.navigator.GetCurrentConfig()
	if s.logLevel != nil {
		if level, err := ParseLogLevel(applied.LogLevel); err == nil {
			s.logLevel.Set(level)
			logger.Info("Log level updated", "new_level", level)
		}
	}
	if applied.WatchConfigFiles {
		s.startWatcher()
	} else {
		s.stopWatcher()
	}
	return nil, nil
}

// handleDidChangeWorkspaceFolders keeps the navigator's roots in step with the client.
func (s *Server) handleDidChangeWorkspaceFolders(ctx context.Context, params DidChangeWorkspaceFoldersParams, logger *slog.Logger) (any, error) {
	logger.Info("Handling workspace/didChangeWorkspaceFolders", "added", len(params.Event.Added), "removed", len(params.Event.Removed))
	for _, folder := range params.Event.Removed {
		s.removeRoot(folder.URI)
	}
	for _, folder := range params.Event.Added {
		s.addRoot(folder.URI)
	}
	return nil, nil
}

// handleExecuteCommand runs navigateCommand with [TextDocumentPositionParams]
// and returns the locations of the include under that position.
func (s *Server) handleExecuteCommand(ctx context.Context, params ExecuteCommandParams, logger *slog.Logger) (any, error) {
	logger = logger.With("command", params.Command)
	if params.Command != navigateCommand {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Unknown command: %s", params.Command)}
	}
	if len(params.Arguments) == 0 {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: "navigate command needs a text document position"}
	}
	var pos TextDocumentPositionParams
	if err := json.Unmarshal(params.Arguments[0], &pos); err != nil {
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid command argument: %v", err)}
	}

	file, line, col, ok := s.positionInFile(pos.TextDocument.URI, pos.Position, logger)
	if !ok {
		return nil, nil
	}
	if !s.navigator.ExtractContext(file.Doc, line, col).Found() {
		s.sendShowMessage(MessageTypeInfo, "No include/import path detected at cursor.")
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	locations := s.locationsFor(reqCtx, file.Doc, line, col, logger)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}
