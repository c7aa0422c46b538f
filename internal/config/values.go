package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Keys of the flat key-value view shared by every configuration layer.
const (
	KeyAutoloadFile  = "phpstan.autoloadFile"
	KeyConfiguration = "phpstan.configuration"
	KeyLevel         = "phpstan.level"
	KeyMemoryLimit   = "phpstan.memoryLimit"
	KeyNoProgress    = "phpstan.noProgress"
	KeyBinary        = "phpstan.binary"
	KeyDebounce      = "stanwatch.debounce"
	KeyTimeout       = "stanwatch.timeout"
)

// Values is a flat key-value configuration layer.
type Values map[string]any

// Apply overlays values on top of s. Unknown keys are ignored so editors
// can send their whole settings tree.
func (s *Settings) Apply(values Values) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := s.applyOne(key, values[key]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (s *Settings) applyOne(key string, v any) error {
	if v == nil {
		switch key {
		case KeyNoProgress, KeyDebounce, KeyTimeout:
			// editors send null for entries the user never set
			return nil
		}
	}
	switch key {
	case KeyAutoloadFile:
		str, err := asString(v)
		if err != nil {
			return err
		}
		s.Analysis.AutoloadFile = str
	case KeyConfiguration:
		str, err := asString(v)
		if err != nil {
			return err
		}
		s.Analysis.Configuration = str
	case KeyLevel:
		level, err := ParseLevel(v)
		if err != nil {
			return err
		}
		s.Analysis.Level = level
	case KeyMemoryLimit:
		str, err := asString(v)
		if err != nil {
			return err
		}
		s.Analysis.MemoryLimit = str
	case KeyNoProgress:
		b, err := asBool(v)
		if err != nil {
			return err
		}
		s.Analysis.NoProgress = b
	case KeyBinary:
		str, err := asString(v)
		if err != nil {
			return err
		}
		s.Binary = str
	case KeyDebounce:
		d, err := asDuration(v)
		if err != nil {
			return err
		}
		if d > 0 {
			s.Debounce = d
		}
	case KeyTimeout:
		d, err := asDuration(v)
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
		s.Timeout = d
	}
	return nil
}

// FlattenJSON turns a nested settings object such as
// {"phpstan":{"level":5}} into {"phpstan.level":5}.
func FlattenJSON(raw json.RawMessage) (Values, error) {
	if len(raw) == 0 {
		return Values{}, nil
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	out := make(Values)
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, tree map[string]any, out Values) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func asString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(val), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

func asBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", val)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
}

// asDuration accepts Go duration strings or a number of milliseconds.
func asDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case float64:
		return time.Duration(val * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("expected a duration, got %T", v)
	}
}
