// Package transport adapts the player to named commands with loosely typed
// arguments and fans published state out to observers.
package transport

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/samber/mo"
)

// Args is the argument bag delivered with a command. Values arrive as decoded
// JSON, so numbers are usually float64.
type Args map[string]any

// String returns the string at key. ok is false when the key is absent, null
// or not a string.
func (a Args) String(key string) (string, bool) {
	v, present := a[key]
	if !present || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// OptionalString returns the string at key, None when the key is absent or
// null, and an error when the value has another type.
func (a Args) OptionalString(key string) (mo.Option[string], error) {
	v, present := a[key]
	if !present || v == nil {
		return mo.None[string](), nil
	}
	s, ok := v.(string)
	if !ok {
		return mo.None[string](), fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return mo.Some(s), nil
}

// Int64 returns the integer at key. Whole float64 values and json.Number are
// accepted.
func (a Args) Int64(key string) (int64, bool) {
	v, present := a[key]
	if !present || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n >= 1<<63 || n < -(1<<63) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// IntOr returns the integer at key, or def when it is absent or not an integer.
func (a Args) IntOr(key string, def int) int {
	if n, ok := a.Int64(key); ok {
		return int(n)
	}
	return def
}

// BoolOr returns the bool at key, or def when it is absent or not a bool.
func (a Args) BoolOr(key string, def bool) bool {
	if b, ok := a[key].(bool); ok {
		return b
	}
	return def
}
