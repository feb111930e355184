// Package router implements the method/path dispatch table for the HTTP
// surface. Patterns are regular expressions matched against the whole
// request path; the first capture group, when present, is handed to the
// handler as the path parameter.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

var (
	// ErrNoMatch means the method is served somewhere but no pattern
	// matched the path: a 404.
	ErrNoMatch = errors.New("no route matches path")
	// ErrMethodNotAllowed means no registered rule carries the request
	// method at all: a 405. This check runs before the path scan, which
	// is what separates a 404 from a 405.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Response is the uniform handler result. The HTTP server writes it out
// verbatim; a zero Status means 200.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// Handler serves one matched route. param is the text captured by the
// pattern's first group, or "" when the pattern has no group.
type Handler func(r *http.Request, param string) Response

type route struct {
	method  string
	pattern *regexp.Regexp
	raw     string
	handler Handler
}

// Router dispatches by method and path. It holds no global state:
// construct one per server instance.
type Router struct {
	routes []route
}

func New() *Router {
	return &Router{}
}

// Add registers a rule. The pattern is anchored to match the entire
// path. Rules are tried in registration order and the first match wins;
// registration order is the only tie-break between overlapping
// patterns. Registering the same method and pattern twice panics, since
// the duplicate could never be reached.
func (rt *Router) Add(method, pattern string, handler Handler) {
	for _, existing := range rt.routes {
		if existing.method == method && existing.raw == pattern {
			panic(fmt.Sprintf("router: duplicate route %s %s", method, pattern))
		}
	}
	compiled := regexp.MustCompile(`\A(?:` + pattern + `)\z`)
	rt.routes = append(rt.routes, route{
		method:  method,
		pattern: compiled,
		raw:     pattern,
		handler: handler,
	})
}

// Dispatch resolves a method and path (query and fragment already
// stripped) to a handler and its captured path parameter. The method
// check runs over the whole table before any pattern is tried, so an
// unsupported method yields ErrMethodNotAllowed even when some pattern
// would have matched the path under another method.
func (rt *Router) Dispatch(method, path string) (Handler, string, error) {
	methodKnown := false
	for _, r := range rt.routes {
		if r.method == method {
			methodKnown = true
			break
		}
	}
	if !methodKnown {
		return nil, "", ErrMethodNotAllowed
	}

	for _, r := range rt.routes {
		if r.method != method {
			continue
		}
		match := r.pattern.FindStringSubmatch(path)
		if match == nil {
			continue
		}
		param := ""
		if len(match) > 1 {
			param = match[1]
		}
		return r.handler, param, nil
	}
	return nil, "", ErrNoMatch
}
