package utils

import (
	"net/http"
	"strconv"
)

// ParseIntParam reads an integer query parameter, falling back to a default
// when absent or malformed.
func ParseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// ParseBoolParam reads a boolean query parameter; absent or malformed values
// read as false.
func ParseBoolParam(r *http.Request, name string) bool {
	value, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && value
}
