package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// payload keeps request fields raw so handlers can tell an absent field from
// a zero value and accept numbers sent as strings.
type payload map[string]json.RawMessage

func (p payload) has(key string) bool {
	raw, ok := p[key]
	return ok && !isNull(raw)
}

// truthy mirrors loose form semantics: absent, null, "", 0 and false are all falsy.
func (p payload) truthy(key string) bool {
	raw, ok := p[key]
	if !ok || isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case float64:
		return t != 0
	case bool:
		return t
	default:
		return true
	}
}

// str returns the trimmed string value; ok is false when the field is not a JSON string.
func (p payload) str(key string) (string, bool) {
	var s string
	if err := json.Unmarshal(p[key], &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// float accepts a JSON number or a numeric string.
func (p payload) float(key string) (float64, bool) {
	raw := p[key]
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, isFinite(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, isFinite(f)
}

// timestamp reads epoch values (milliseconds when >= 1e12, otherwise seconds),
// numeric strings, or RFC 3339 strings.
func (p payload) timestamp(key string) (time.Time, bool) {
	if f, ok := p.float(key); ok {
		return fromEpoch(f), true
	}
	s, ok := p.str(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func fromEpoch(v float64) time.Time {
	if math.Abs(v) >= 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
