package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// uriToPath converts a file URI to an absolute OS path in NFC form, so
// macOS-decomposed names match PHPStan's report keys.
func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	// file:///C:/x parses to /C:/x
	if runtime.GOOS == "windows" && len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return norm.NFC.String(path)
}

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	slashed := filepath.ToSlash(norm.NFC.String(path))
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// canonicalURI round-trips uri through the path form so differently
// escaped spellings of one file share a key.
func canonicalURI(uri string) string {
	return pathToURI(uriToPath(uri))
}

// samePath compares two paths after cleaning and NFC normalisation.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a = norm.NFC.String(filepath.Clean(a))
	b = norm.NFC.String(filepath.Clean(b))
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
