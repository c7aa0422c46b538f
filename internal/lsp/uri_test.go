package lsp

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir with space", "Café.php")
	uri := pathToURI(path)
	if got := uriToPath(uri); got != path {
		t.Fatalf("round trip mismatch: %q -> %q -> %q", path, uri, got)
	}
}

func TestURIToPathNormalizesToNFC(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	// "e" + combining acute accent
	decomposed := "file:///srv/app/Cafe%CC%81.php"
	want := "/srv/app/Caf\u00e9.php"
	if got := uriToPath(decomposed); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !samePath(uriToPath(decomposed), "/srv/app/Cafe\u0301.php") {
		t.Fatal("decomposed and composed spellings must compare equal")
	}
}

func TestURIToPathRejectsOtherSchemes(t *testing.T) {
	if got := uriToPath("untitled:Untitled-1"); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestCanonicalURI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	if canonicalURI("file:///srv/app/%61.php") != canonicalURI("file:///srv/app/a.php") {
		t.Fatal("escaped and plain URIs must share a key")
	}
}
