package lsp

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

type commandResult struct {
	Started bool   `json:"started"`
	Target  string `json:"target,omitempty"`
}

// handleExecuteCommand runs an explicit analysis immediately. A busy
// orchestrator drops the request silently, like an implicit trigger.
func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, -32602, "invalid params")
	}
	var target string
	switch params.Command {
	case commandAnalyseFile:
		target = commandTarget(params.Arguments)
		if target == "" {
			target = s.activePath()
		}
	case commandAnalyseFolder:
		target = commandTarget(params.Arguments)
		if target == "" {
			if active := s.activePath(); active != "" {
				target = filepath.Dir(active)
			}
		}
	default:
		return s.sendError(msg.ID, -32601, "unknown command "+params.Command)
	}

	result := commandResult{Target: target}
	if target == "" {
		hostUI{s}.HideStatus()
	} else {
		result.Started = s.orch.Start(target)
	}
	return s.sendResponse(msg.ID, result)
}

// commandTarget accepts a URI string, a plain path or an object carrying
// one of uri, fsPath or path.
func commandTarget(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var raw string
	if err := json.Unmarshal(args[0], &raw); err != nil {
		var obj struct {
			URI    string `json:"uri"`
			FSPath string `json:"fsPath"`
			Path   string `json:"path"`
		}
		if err := json.Unmarshal(args[0], &obj); err != nil {
			return ""
		}
		switch {
		case obj.FSPath != "":
			return obj.FSPath
		case obj.URI != "":
			raw = obj.URI
		default:
			raw = obj.Path
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		return uriToPath(raw)
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}
