package http

import "strings"

// Headers maps lowercased header names to their values. Repeated headers aren't
// merged: the last occurrence wins.
type Headers map[string]string

// Value returns the value of the header, looked up case-insensitively.
func (h Headers) Value(key string) string {
	if value, ok := h[key]; ok {
		return value
	}

	return h[strings.ToLower(key)]
}

func (h Headers) Has(key string) bool {
	_, found := h[strings.ToLower(key)]
	return found
}

func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

func (h Headers) Clear() {
	clear(h)
}
