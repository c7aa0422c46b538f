package runner

import (
	"errors"
	"testing"

	"stanwatch/internal/report"
)

func TestClassifyPrecedence(t *testing.T) {
	payload := []byte(`banner {"totals":{"errors":2,"files":1},"files":{"/a.php":{"errors":2,"messages":[]}},"errors":[]}`)
	cases := []struct {
		name   string
		exit   int
		stdout []byte
		stderr []byte
		want   Kind
	}{
		{"exit zero wins over output", 0, payload, []byte("warning"), Succeeded},
		{"stderr wins over report", 1, payload, []byte("boom"), Failed},
		{"report", 1, payload, nil, ErrorReported},
		{"no marker", 1, []byte("PHP Fatal error"), nil, Unknown},
		{"silent failure", 255, nil, nil, Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.exit, tc.stdout, tc.stderr)
			if got.Kind != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got.Kind)
			}
		})
	}
}

func TestClassifyMalformedReportIsUnknownWithError(t *testing.T) {
	got := Classify(1, []byte(`{"totals":{"errors":1,`), nil)
	if got.Kind != Unknown {
		t.Fatalf("expected Unknown, got %v", got.Kind)
	}
	var se *report.SyntaxError
	if !errors.As(got.Err, &se) {
		t.Fatalf("expected a syntax error, got %v", got.Err)
	}
	if got.Status() != "[phpstan] unknown" {
		t.Fatalf("unexpected status %q", got.Status())
	}
}

func TestClassifyMissingMarkerKeepsErrNoPayload(t *testing.T) {
	got := Classify(1, []byte("nothing useful"), nil)
	if !errors.Is(got.Err, report.ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", got.Err)
	}
}

func TestOutcomeStatus(t *testing.T) {
	cases := map[string]Outcome{
		"[phpstan] passed":  {Kind: Succeeded},
		"[phpstan] failed":  {Kind: Failed},
		"[phpstan] unknown": {Kind: Unknown},
		"[phpstan] error 0": {Kind: ErrorReported},
		"[phpstan] error 7": {Kind: ErrorReported, Report: &report.Output{Totals: report.Totals{Errors: 7, Files: 2}}},
	}
	for want, o := range cases {
		if got := o.Status(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestFailedMessagePrefersStderr(t *testing.T) {
	o := Outcome{Kind: Failed, Stderr: "  Memory exhausted\n", Err: errors.New("other")}
	if got := o.Message(); got != "Memory exhausted" {
		t.Fatalf("unexpected message %q", got)
	}
	o.Stderr = ""
	if got := o.Message(); got != "other" {
		t.Fatalf("unexpected message %q", got)
	}
	if (Outcome{Kind: Succeeded}).Message() != "" {
		t.Fatal("success has no message")
	}
}
