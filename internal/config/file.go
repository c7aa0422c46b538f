package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the project-level settings file looked up from the working directory.
const FileName = "stanwatch.toml"

type fileConfig struct {
	PHPStan phpstanTable `toml:"phpstan"`
	Server  serverTable  `toml:"server"`
}

type phpstanTable struct {
	AutoloadFile  string `toml:"autoload_file"`
	Configuration string `toml:"configuration"`
	Level         Level  `toml:"level"`
	MemoryLimit   string `toml:"memory_limit"`
	NoProgress    bool   `toml:"no_progress"`
	Binary        string `toml:"binary"`
}

type serverTable struct {
	Debounce string `toml:"debounce"`
	Timeout  string `toml:"timeout"`
}

// FindFile walks up from startDir to locate stanwatch.toml.
func FindFile(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFile decodes stanwatch.toml into a Values layer holding only the keys
// the file defines. Relative paths are anchored at the file's directory.
func LoadFile(path string) (Values, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	base := filepath.Dir(path)
	values := make(Values)
	if meta.IsDefined("phpstan", "autoload_file") {
		values[KeyAutoloadFile] = anchor(base, cfg.PHPStan.AutoloadFile)
	}
	if meta.IsDefined("phpstan", "configuration") {
		values[KeyConfiguration] = anchor(base, cfg.PHPStan.Configuration)
	}
	if meta.IsDefined("phpstan", "level") {
		values[KeyLevel] = cfg.PHPStan.Level
	}
	if meta.IsDefined("phpstan", "memory_limit") {
		values[KeyMemoryLimit] = cfg.PHPStan.MemoryLimit
	}
	if meta.IsDefined("phpstan", "no_progress") {
		values[KeyNoProgress] = cfg.PHPStan.NoProgress
	}
	if meta.IsDefined("phpstan", "binary") {
		bin := cfg.PHPStan.Binary
		if strings.ContainsRune(bin, '/') || strings.ContainsRune(bin, filepath.Separator) {
			bin = anchor(base, bin)
		}
		values[KeyBinary] = bin
	}
	if meta.IsDefined("server", "debounce") {
		values[KeyDebounce] = cfg.Server.Debounce
	}
	if meta.IsDefined("server", "timeout") {
		values[KeyTimeout] = cfg.Server.Timeout
	}
	return values, nil
}

func anchor(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, filepath.FromSlash(path))
}

var envKeys = map[string]string{
	"STANWATCH_AUTOLOAD_FILE": KeyAutoloadFile,
	"STANWATCH_CONFIGURATION": KeyConfiguration,
	"STANWATCH_LEVEL":         KeyLevel,
	"STANWATCH_MEMORY_LIMIT":  KeyMemoryLimit,
	"STANWATCH_NO_PROGRESS":   KeyNoProgress,
	"STANWATCH_BINARY":        KeyBinary,
	"STANWATCH_DEBOUNCE":      KeyDebounce,
	"STANWATCH_TIMEOUT":       KeyTimeout,
}

// LoadEnv reads dir/.env (if present) into the process environment and
// returns the STANWATCH_* variables as a Values layer. Variables already
// set in the environment win over the .env file.
func LoadEnv(dir string) (Values, error) {
	if dir != "" {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}
	values := make(Values)
	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) != "" {
			values[key] = v
		}
	}
	return values, nil
}

// Load builds Settings from defaults, the nearest stanwatch.toml and the
// environment. It returns the settings file path, empty when none was found.
func Load(startDir string) (Settings, string, error) {
	settings := Defaults()
	path, ok, err := FindFile(startDir)
	if err != nil {
		return settings, "", err
	}
	envDir := startDir
	if ok {
		values, err := LoadFile(path)
		if err != nil {
			return settings, path, err
		}
		if err := settings.Apply(values); err != nil {
			return settings, path, fmt.Errorf("%s: %w", path, err)
		}
		envDir = filepath.Dir(path)
	}
	env, err := LoadEnv(envDir)
	if err != nil {
		return settings, path, err
	}
	if err := settings.Apply(env); err != nil {
		return settings, path, fmt.Errorf("environment: %w", err)
	}
	return settings, path, nil
}
