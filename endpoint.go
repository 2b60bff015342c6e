package authclient

import (
	"fmt"
	"strings"
)

// Endpoint is a path pattern with zero or more {name} placeholders,
// e.g. "/api/Organizations/{id}/Tables".
type Endpoint string

// PathParams holds the values substituted into Endpoint placeholders.
type PathParams map[string]any

// URLResolver renders endpoints against one API origin. A resolver is
// immutable after construction and safe for concurrent use; backends with
// different origins get their own resolver.
type URLResolver struct {
	origin string
}

// NewURLResolver creates a resolver for origin. Trailing slashes are
// trimmed; an empty origin produces relative URLs.
func NewURLResolver(origin string) *URLResolver {
	return &URLResolver{origin: strings.TrimRight(strings.TrimSpace(origin), "/")}
}

// Origin returns the prefix prepended to every resolved URL.
func (r *URLResolver) Origin() string {
	if r == nil {
		return ""
	}
	return r.origin
}

// Resolve substitutes every {key} occurrence in endpoint with params[key]
// and prepends the origin. Placeholders without a matching parameter are
// left verbatim.
func (r *URLResolver) Resolve(endpoint Endpoint, params PathParams) string {
	return r.Origin() + expandPath(string(endpoint), params)
}

func expandPath(pattern string, params PathParams) string {
	if len(params) == 0 || !strings.Contains(pattern, "{") {
		return pattern
	}

	var builder strings.Builder
	builder.Grow(len(pattern))

	rest := pattern
	for {
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			builder.WriteString(rest)
			break
		}
		// The innermost '{' opens the placeholder; a stray one before it is literal.
		open := strings.LastIndexByte(rest[:end], '{')
		if open < 0 {
			builder.WriteString(rest[:end+1])
			rest = rest[end+1:]
			continue
		}

		builder.WriteString(rest[:open])
		name := rest[open+1 : end]
		if value, ok := params[name]; ok {
			builder.WriteString(formatPathValue(value))
		} else {
			builder.WriteString(rest[open : end+1])
		}
		rest = rest[end+1:]
	}

	return builder.String()
}

func formatPathValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
