package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings is the configuration block of one module, keyed by option name.
type Settings map[string]string

// String returns the value of key, or def when it is unset or blank.
func (s Settings) String(key, def string) string {
	if v := strings.TrimSpace(s[key]); v != "" {
		return v
	}
	return def
}

// Required returns the value of key or an error naming it.
func (s Settings) Required(key string) (string, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return "", fmt.Errorf("setting %q is required", key)
	}
	return v, nil
}

func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("setting %q: %w", key, err)
	}
	return d, nil
}

func (s Settings) Int(key string, def int) (int, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting %q: %w", key, err)
	}
	return n, nil
}

func (s Settings) Bool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %q: %w", key, err)
	}
	return b, nil
}

// List splits a comma separated value, dropping blanks.
func (s Settings) List(key string) []string {
	var out []string
	for _, part := range strings.Split(s[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Prefixed returns the entries whose key starts with prefix, with the
// prefix removed.
func (s Settings) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range s {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	return out
}
