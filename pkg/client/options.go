package client

import (
	"fmt"
	"os"
	"strconv"
)

// Options carries optional per-call parameters such as "mode", "flags",
// "start" or "recursive". Each protocol reads the keys it understands.
type Options map[string]interface{}

// WithMode normalizes a raw mode into options.
func WithMode(mode string) Options {
	return Options{"mode": mode}
}

// Without returns a copy of the options without the given keys.
// The receiver is never modified.
func (o Options) Without(keys ...string) Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the string value of key, or def.
func (o Options) String(key, def string) string {
	return GetStringSetting(o, key, def)
}

// Bool returns the boolean value of key, or false.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// Int64 returns the integer value of key, or def.
func (o Options) Int64(key string, def int64) int64 {
	switch v := o[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return def
}

// Mode returns the file mode stored under "mode". Strings are parsed as
// octal, numbers are taken as-is.
func (o Options) Mode() (os.FileMode, bool, error) {
	val, ok := o["mode"]
	if !ok || val == nil {
		return 0, false, nil
	}
	switch v := val.(type) {
	case os.FileMode:
		return v, true, nil
	case int:
		return os.FileMode(v), true, nil
	case uint32:
		return os.FileMode(v), true, nil
	case float64:
		return os.FileMode(int(v)), true, nil
	case string:
		m, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return 0, false, fmt.Errorf("invalid mode %q: %w", v, err)
		}
		return os.FileMode(m), true, nil
	default:
		return 0, false, fmt.Errorf("invalid mode %v", val)
	}
}
