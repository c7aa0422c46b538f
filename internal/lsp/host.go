package lsp

import (
	"stanwatch/internal/diag"
	"stanwatch/internal/runner"
)

// hostUI renders orchestrator status through LSP notifications.
type hostUI struct{ s *Server }

var _ runner.UI = hostUI{}

func (h hostUI) ShowStatus(text string) {
	if err := h.s.sendNotification(methodStatus, statusParams{Text: text, Visible: true}); err != nil {
		h.s.logf("failed to send status: %v", err)
	}
}

func (h hostUI) HideStatus() {
	if err := h.s.sendNotification(methodStatus, statusParams{Visible: false}); err != nil {
		h.s.logf("failed to send status: %v", err)
	}
}

func (h hostUI) ShowError(message string) {
	params := showMessageParams{Type: messageTypeError, Message: message}
	if err := h.s.sendNotification("window/showMessage", params); err != nil {
		h.s.logf("failed to show message: %v", err)
	}
}

// Replace publishes the full diagnostic set of one file.
func (s *Server) Replace(file string, diags []diag.Diagnostic) {
	uri := pathToURI(file)
	if uri == "" {
		return
	}
	s.published.Replace(file, diags)
	if err := s.sendPublish(uri, toLSPDiagnostics(diags)); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: list,
	})
}

func (s *Server) clearPublishedDiagnostics() {
	files := s.published.Files()
	s.published.Clear()
	for _, file := range files {
		if err := s.sendPublish(pathToURI(file), nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

func toLSPDiagnostics(diags []diag.Diagnostic) []lspDiagnostic {
	if len(diags) == 0 {
		return nil
	}
	out := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		line := int(d.Range.Line)
		out = append(out, lspDiagnostic{
			Range: lspRange{
				Start: position{Line: line, Character: int(d.Range.StartCol)},
				End:   position{Line: line, Character: int(d.Range.EndCol)},
			},
			Severity: severityError,
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}
