package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"stanwatch/internal/diag"
	"stanwatch/internal/report"
)

type staticLines map[string][]string

func (s staticLines) Line(path string, line int) (string, bool) {
	rows, ok := s[path]
	if !ok || line < 0 || line >= len(rows) {
		return "", false
	}
	return rows[line], true
}

func sampleSets() []diag.FileDiagnostics {
	return []diag.FileDiagnostics{{
		File: "/work/src/Foo.php",
		Diagnostics: []diag.Diagnostic{{
			File:    "/work/src/Foo.php",
			Range:   diag.Range{Line: 1, StartCol: 1, EndCol: 9},
			Message: diag.Prefix + "Undefined variable: $y",
			Code:    "variable.undefined",
			Source:  diag.Source,
			Tip:     "Learn more at https://phpstan.org",
		}},
	}}
}

func TestPrettyWithSourceAndTip(t *testing.T) {
	lines := staticLines{"/work/src/Foo.php": {"<?php", "\techo $y;"}}
	var buf bytes.Buffer
	err := Pretty(&buf, sampleSets(), lines, PrettyOpts{BaseDir: "/work", ShowSource: true, ShowTips: true})
	require.NoError(t, err)

	want := "src/Foo.php:2:2: error [variable.undefined] Undefined variable: $y\n" +
		"  |     echo $y;\n" +
		"  |     ^~~~~~~~\n" +
		"  tip: Learn more at https://phpstan.org\n"
	assert.Equal(t, want, buf.String())
}

func TestPrettySkipsSourceWhenUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Pretty(&buf, sampleSets(), nil, PrettyOpts{PathMode: PathModeBasename, ShowSource: true}))
	assert.Equal(t, "Foo.php:2:2: error [variable.undefined] Undefined variable: $y\n", buf.String())
}

func TestShort(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Short(&buf, sampleSets(), PrettyOpts{PathMode: PathModeAbsolute}))
	assert.Equal(t, "/work/src/Foo.php:2:2: Undefined variable: $y\n", buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, "[phpstan] error 1", 1, PrettyOpts{}))
	assert.Equal(t, "[phpstan] error 1 (1 diagnostic)\n", buf.String())
}

func TestByteOffsetCountsUTF16(t *testing.T) {
	text := "a😀b"
	assert.Equal(t, 0, byteOffset(text, 0))
	assert.Equal(t, 1, byteOffset(text, 1))
	assert.Equal(t, 5, byteOffset(text, 3))
	assert.Equal(t, len(text), byteOffset(text, 99))
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "src/a.php", formatPath("/w/src/a.php", PathModeAuto, "/w"))
	assert.Equal(t, "/other/a.php", formatPath("/other/a.php", PathModeAuto, "/w"))
	assert.Equal(t, "../other/a.php", formatPath("/other/a.php", PathModeRelative, "/w"))
	assert.Equal(t, "/w/a.php", formatPath("/w/a.php", PathModeAuto, ""))

	_, err := ParsePathMode("sideways")
	assert.Error(t, err)
}

func sampleDocument() Document {
	return NewDocument(DocumentInput{
		Target:   "/work/src",
		Outcome:  "error",
		Status:   "[phpstan] error 1",
		ExitCode: 1,
		Report: &report.Output{
			Totals: report.Totals{Errors: 1, Files: 1},
			Errors: []string{"Ignored error pattern was not matched"},
		},
		Sets: sampleSets(),
	}, JSONOpts{BaseDir: "/work"})
}

func TestJSONDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleDocument(), JSONOpts{}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "src", got["target"])
	assert.EqualValues(t, 1, got["count"])
	diags := got["diagnostics"].([]any)
	require.Len(t, diags, 1)
	loc := diags[0].(map[string]any)["location"].(map[string]any)
	assert.Equal(t, "src/Foo.php", loc["file"])
	assert.EqualValues(t, 9, loc["end_col"])
}

func TestJSONEmptyDiagnosticsIsArray(t *testing.T) {
	doc := NewDocument(DocumentInput{Target: "/w/a.php", Outcome: "passed"}, JSONOpts{})
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, doc, JSONOpts{}))
	assert.True(t, strings.Contains(buf.String(), `"diagnostics":[]`), buf.String())
}

func TestMsgpackDocument(t *testing.T) {
	want := sampleDocument()
	var buf bytes.Buffer
	require.NoError(t, Msgpack(&buf, want))

	var got Document
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, want, got)
}
