package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stanwatch/internal/config"
)

// ErrUnsupportedTarget is returned for targets that are neither regular files nor directories.
var ErrUnsupportedTarget = errors.New("target is neither a file nor a directory")

// Resolution is the per-run outcome of the filesystem search.
// It is never cached: the active target changes between runs.
type Resolution struct {
	Target        string
	IsDir         bool
	Configuration string
	AutoloadFile  string
	// Cwd is the working directory for PHPStan; empty means inherit ours.
	Cwd string
}

// BaseDir is the directory searches start from.
func (r Resolution) BaseDir() string {
	if r.IsDir {
		return r.Target
	}
	return filepath.Dir(r.Target)
}

// Apply copies the resolved paths into a run configuration.
func (r Resolution) Apply(cfg config.Analysis) config.Analysis {
	cfg.Path = r.Target
	cfg.Configuration = r.Configuration
	cfg.AutoloadFile = r.AutoloadFile
	return cfg
}

// Resolve locates configuration, autoload file and working directory for target.
//
// When cfg pins a configuration or autoload file no search happens and the
// working directory is the deepest workspace root containing the target.
// Otherwise the nearest phpstan.neon decides the working directory, then the
// nearest vendor/autoload.php (its project root), then for directory targets
// a src/source/sources child carrying markers. Nothing found is not an error.
func Resolve(cfg config.Analysis, target string, roots []string) (Resolution, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to resolve target: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to stat target: %w", err)
	}
	res := Resolution{Target: abs}
	switch {
	case info.Mode().IsRegular():
	case info.IsDir():
		res.IsDir = true
	default:
		return Resolution{}, fmt.Errorf("%s: %w", abs, ErrUnsupportedTarget)
	}
	base := res.BaseDir()

	if cfg.Explicit() {
		res.Configuration = cfg.Configuration
		res.AutoloadFile = cfg.AutoloadFile
		res.Cwd = CurrentWorkPath(base, roots)
		return res, nil
	}

	configPath, ok, err := FindConfiguration(base)
	if err != nil {
		return Resolution{}, err
	}
	if ok {
		res.Configuration = configPath
		res.Cwd = filepath.Dir(configPath)
	} else {
		autoload, ok, err := FindAutoloadFile(base)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			res.AutoloadFile = autoload
			// vendor/autoload.php -> project root
			res.Cwd = filepath.Dir(filepath.Dir(autoload))
		}
	}
	if res.Cwd == "" && res.IsDir {
		work, err := FindRealWorkPath(base)
		if err != nil {
			return Resolution{}, err
		}
		res.Cwd = work
	}
	return res, nil
}
