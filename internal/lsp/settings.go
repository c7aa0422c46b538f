package lsp

import (
	"encoding/json"

	"stanwatch/internal/config"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

// applySettings replaces the editor overrides with raw, a nested object
// such as {"phpstan":{"level":5}}. Invalid settings keep the previous ones.
func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	values, err := config.FlattenJSON(raw)
	if err != nil {
		s.logf("settings: %v", err)
		return
	}
	s.mu.Lock()
	probe := s.base
	s.mu.Unlock()
	if err := probe.Apply(values); err != nil {
		s.logf("settings: %v", err)
		hostUI{s}.ShowError("stanwatch settings: " + err.Error())
		return
	}
	s.mu.Lock()
	s.overrides = values
	s.mu.Unlock()
}
