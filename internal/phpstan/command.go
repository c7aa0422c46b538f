// Package phpstan builds PHPStan command lines.
package phpstan

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"stanwatch/internal/config"
	"stanwatch/internal/project"
)

// Invocation is a ready-to-spawn PHPStan command.
type Invocation struct {
	Path string
	Args []string
	// Dir is the working directory; empty inherits the caller's.
	Dir string
}

// String renders the command for logs and dry runs.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, quote(inv.Path))
	for _, arg := range inv.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// ToolName is the bare executable name used for PATH lookup.
func ToolName() string {
	if runtime.GOOS == "windows" {
		return "phpstan.bat"
	}
	return "phpstan"
}

// Args maps a resolved configuration onto PHPStan's analyse arguments.
func Args(cfg config.Analysis) []string {
	args := []string{"analyse", "--error-format=json"}
	switch cfg.Level {
	case config.LevelConfig:
		// level comes from the configuration file
	case config.LevelUnset:
		args = append(args, "--level="+string(config.LevelMax))
	default:
		args = append(args, "--level="+string(cfg.Level))
	}
	if cfg.NoProgress {
		args = append(args, "--no-progress")
	}
	if cfg.MemoryLimit != "" {
		args = append(args, "--memory-limit="+cfg.MemoryLimit)
	}
	if cfg.Configuration != "" {
		args = append(args, "--configuration="+cfg.Configuration)
	}
	if cfg.AutoloadFile != "" {
		args = append(args, "--autoload-file="+cfg.AutoloadFile)
	}
	if cfg.Path != "" {
		args = append(args, cfg.Path)
	}
	return args
}

// Executable prefers the project-local vendor/bin/phpstan under cwd and
// falls back to the bare tool name.
func Executable(cwd string) string {
	local, err := filepath.Abs(filepath.Join(cwd, "vendor", "bin", ToolName()))
	if err == nil && isExecutable(local) {
		return local
	}
	return ToolName()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// Build assembles the invocation for a resolved run. A non-empty binary
// overrides executable discovery.
func Build(cfg config.Analysis, res project.Resolution, binary string) Invocation {
	path := binary
	if path == "" {
		path = Executable(res.Cwd)
	}
	return Invocation{
		Path: path,
		Args: Args(res.Apply(cfg)),
		Dir:  res.Cwd,
	}
}
