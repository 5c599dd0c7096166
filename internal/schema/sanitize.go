package schema

import (
	"net/url"
	"strconv"
	"strings"
)

// Sanitizers maps the names usable from rule files to sanitizer functions.
var Sanitizers = map[string]SanitizeFunc{
	"trim":  TrimSanitizer,
	"lower": LowerSanitizer,
	"url":   URLSanitizer,
	"int":   IntSanitizer,
}

// TrimSanitizer strips surrounding whitespace and drops empty values.
func TrimSanitizer(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v != ""
}

// LowerSanitizer lowercases and trims the value.
func LowerSanitizer(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	return v, v != ""
}

var safeSchemes = map[string]bool{
	"":       true,
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
}

// URLSanitizer keeps relative URLs and http, https, mailto and tel links.
// Anything else, javascript: included, is dropped.
func URLSanitizer(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", false
	}
	if !safeSchemes[strings.ToLower(u.Scheme)] {
		return "", false
	}
	return v, true
}

// IntSanitizer keeps base-10 integers, normalized.
func IntSanitizer(v string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n), true
}
