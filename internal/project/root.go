package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker files looked up when locating a PHPStan project.
const (
	ConfigFile     = "phpstan.neon"
	DistConfigFile = "phpstan.neon.dist"
	AutoloadFile   = "vendor/autoload.php"
)

var (
	configNames   = []string{ConfigFile, DistConfigFile}
	workPathDirs  = []string{"src", "source", "sources"}
	workPathMarks = []string{ConfigFile, DistConfigFile, AutoloadFile}
)

// FindConfiguration walks up from base and returns the first phpstan.neon
// or phpstan.neon.dist. At each level phpstan.neon is preferred.
func FindConfiguration(base string) (path string, ok bool, err error) {
	return findUp(base, configNames)
}

// FindAutoloadFile walks up from base looking for vendor/autoload.php.
func FindAutoloadFile(base string) (path string, ok bool, err error) {
	return findUp(base, []string{AutoloadFile})
}

func findUp(base string, names []string) (string, bool, error) {
	if base == "" {
		base = "."
	}
	dir, err := filepath.Abs(base)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range names {
			candidate := filepath.Join(dir, filepath.FromSlash(name))
			if exists(candidate) {
				return candidate, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindRealWorkPath looks one level down from base for a source directory
// that carries its own PHPStan markers.
func FindRealWorkPath(base string) (string, error) {
	for _, sub := range workPathDirs {
		dir := filepath.Join(base, sub)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		for _, mark := range workPathMarks {
			if exists(filepath.Join(dir, filepath.FromSlash(mark))) {
				return dir, nil
			}
		}
	}
	return "", nil
}

// CurrentWorkPath picks the workspace root that contains base, preferring
// the longest (most specific) root.
func CurrentWorkPath(base string, roots []string) string {
	best := ""
	for _, root := range roots {
		if root == "" || len(root) <= len(best) {
			continue
		}
		if withinRoot(root, base) {
			best = root
		}
	}
	return best
}

func withinRoot(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// exists is a plain existence check: any stat failure, such as ENOTDIR
// under a file named vendor or EACCES on a parent, counts as absent.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
