package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Level is a level of detail: a non-negative integer or the native
// full-resolution surface, which is stored as NULL.
type Level struct {
	n      int
	native bool
}

// Native is the full-resolution level.
func Native() Level {
	return Level{native: true}
}

// LevelOf returns integer level n.
func LevelOf(n int) Level {
	return Level{n: n}
}

// IsNative reports whether l is the native level.
func (l Level) IsNative() bool {
	return l.native
}

// Int returns the integer level, and false for the native level.
func (l Level) Int() (int, bool) {
	return l.n, !l.native
}

func (l Level) String() string {
	if l.native {
		return "native"
	}
	return strconv.Itoa(l.n)
}

// ParseLevel accepts "native", an empty string, or a non-negative integer.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "native") {
		return Native(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Level{}, fmt.Errorf("invalid level of detail %q: want \"native\" or a non-negative integer", s)
	}
	return LevelOf(n), nil
}

// MarshalJSON encodes the native level as null.
func (l Level) MarshalJSON() ([]byte, error) {
	if l.native {
		return []byte("null"), nil
	}
	return json.Marshal(l.n)
}

// UnmarshalJSON decodes null as the native level.
func (l *Level) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Native()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid level of detail: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("invalid level of detail %d: must not be negative", n)
	}
	*l = LevelOf(n)
	return nil
}

// Scan implements sql.Scanner.
func (l *Level) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = Native()
	case int64:
		*l = LevelOf(int(v))
	case int32:
		*l = LevelOf(int(v))
	case int:
		*l = LevelOf(v)
	default:
		return fmt.Errorf("cannot scan %T into level", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (l Level) Value() (driver.Value, error) {
	if l.native {
		return nil, nil
	}
	return int64(l.n), nil
}

// SortLevels orders levels native first, then ascending.
func SortLevels(levels []Level) {
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].native != levels[j].native {
			return levels[i].native
		}
		return levels[i].n < levels[j].n
	})
}
