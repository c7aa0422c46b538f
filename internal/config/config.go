package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Level is the PHPStan rule level. It holds a number ("0".."9"), "max" or
// the sentinel LevelConfig which defers to the level inside phpstan.neon.
type Level string

const (
	// LevelUnset means no level was configured; the builder falls back to max.
	LevelUnset Level = ""
	// LevelMax is the strictest level.
	LevelMax Level = "max"
	// LevelConfig omits --level so the configuration file decides.
	LevelConfig Level = "config"
)

// ParseLevel converts an integer or string value into a Level.
func ParseLevel(v any) (Level, error) {
	switch val := v.(type) {
	case nil:
		return LevelUnset, nil
	case Level:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return LevelUnset, nil
		}
		switch strings.ToLower(s) {
		case string(LevelMax):
			return LevelMax, nil
		case string(LevelConfig):
			return LevelConfig, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return LevelUnset, fmt.Errorf("invalid level %q (expected a number, max or config)", val)
		}
		return Level(strconv.Itoa(n)), nil
	case int:
		return levelFromInt(int64(val))
	case int64:
		return levelFromInt(val)
	case float64:
		if val != float64(int64(val)) {
			return LevelUnset, fmt.Errorf("invalid level %v (expected an integer)", val)
		}
		return levelFromInt(int64(val))
	default:
		return LevelUnset, fmt.Errorf("invalid level type %T", v)
	}
}

func levelFromInt(n int64) (Level, error) {
	if n < 0 {
		return LevelUnset, fmt.Errorf("invalid level %d (must not be negative)", n)
	}
	return Level(strconv.FormatInt(n, 10)), nil
}

// UnmarshalTOML lets `level = 5` and `level = "max"` both decode.
func (l *Level) UnmarshalTOML(v any) error {
	parsed, err := ParseLevel(v)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalText is used for flags and environment values.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Analysis mirrors the options PHPStan understands for one run.
//
// AutoloadFile and Configuration are resolution inputs when set by the
// user: either one disables the filesystem search. After resolution both
// may be populated.
type Analysis struct {
	AutoloadFile  string
	Configuration string
	Level         Level
	MemoryLimit   string
	NoProgress    bool
	Path          string
}

// Explicit reports whether the user pinned a configuration or autoload file.
func (a Analysis) Explicit() bool {
	return a.Configuration != "" || a.AutoloadFile != ""
}

// Settings is the complete runtime configuration.
type Settings struct {
	Analysis Analysis
	// Binary overrides executable discovery when set.
	Binary   string
	Debounce time.Duration
	// Timeout kills a run that exceeds it; zero disables the limit.
	Timeout time.Duration
}

const (
	DefaultMemoryLimit = "256M"
	DefaultDebounce    = 2 * time.Second
	DefaultTimeout     = 5 * time.Minute
)

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Analysis: Analysis{
			Level:       LevelMax,
			MemoryLimit: DefaultMemoryLimit,
			NoProgress:  true,
		},
		Debounce: DefaultDebounce,
		Timeout:  DefaultTimeout,
	}
}
