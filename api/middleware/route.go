package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// unmatchedRoute labels requests that did not match any registered route, keeping
// metric cardinality bounded.
const unmatchedRoute = "unmatched"

// RouteTemplate returns the mux path template of the matched route, e.g.
// "/v1/brokers/{id}/ledger".
func RouteTemplate(r *http.Request) string {
	if r == nil {
		return unmatchedRoute
	}
	route := mux.CurrentRoute(r)
	if route == nil {
		return unmatchedRoute
	}
	template, err := route.GetPathTemplate()
	if err != nil || template == "" {
		return unmatchedRoute
	}
	if !strings.HasPrefix(template, "/") {
		template = "/" + template
	}
	return template
}

// Action derives a dotted action name such as "brokers.ledger.get" from the route
// template, with basePath stripped and path variables dropped.
func Action(r *http.Request, basePath string) string {
	template := RouteTemplate(r)
	if template == unmatchedRoute {
		return unmatchedRoute
	}
	segments := tokeniseSegments(trimBasePath(template, basePath))
	if len(segments) == 0 {
		segments = []string{"root"}
	}
	return strings.Join(segments, ".") + "." + strings.ToLower(r.Method)
}

func trimBasePath(path, base string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	base = strings.TrimSpace(base)
	if base == "" {
		return strings.TrimPrefix(path, "/")
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	base = strings.TrimRight(base, "/")

	if strings.HasPrefix(path, base) {
		path = strings.TrimPrefix(path, base)
	}

	return strings.Trim(path, "/")
}

func tokeniseSegments(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))

	for _, segment := range parts {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			continue
		}
		segment = strings.ReplaceAll(segment, "-", "_")
		segments = append(segments, segment)
	}

	return segments
}
