package router

import (
	"errors"
	"net/http"
	"testing"
)

func stub(result string) Handler {
	return func(_ *http.Request, param string) Response {
		return Response{Body: result + ":" + param}
	}
}

func TestDispatchMatchesAndCaptures(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records/(\d+)`, stub("get"))
	rt.Add(http.MethodPut, `/records/(\d+)`, stub("put"))

	handler, param, err := rt.Dispatch(http.MethodGet, "/records/42")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if param != "42" {
		t.Fatalf("expected capture 42, got %q", param)
	}
	if got := handler(nil, param).Body; got != "get:42" {
		t.Fatalf("wrong handler invoked: %q", got)
	}
}

func TestDispatchWholePathMatch(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records/(\d+)`, stub("get"))

	cases := []string{
		"/records/42/comments",
		"/prefix/records/42",
		"/records/notanumber",
		"/records/",
	}
	for _, path := range cases {
		if _, _, err := rt.Dispatch(http.MethodGet, path); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("path %q: expected ErrNoMatch, got %v", path, err)
		}
	}
}

func TestDispatchMethodNotAllowedBeforePathScan(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records/(\d+)`, stub("get"))
	rt.Add(http.MethodPut, `/records/(\d+)`, stub("put"))
	rt.Add(http.MethodDelete, `/records/(\d+)`, stub("delete"))
	rt.Add(http.MethodPost, `/records/(\d+)/comments`, stub("post"))

	// PATCH is not registered anywhere: 405 even though the path is
	// served under other methods.
	if _, _, err := rt.Dispatch(http.MethodPatch, "/records/1"); !errors.Is(err, ErrMethodNotAllowed) {
		t.Fatalf("expected ErrMethodNotAllowed, got %v", err)
	}

	// POST is registered (for comments), so a POST to a non-matching
	// path is a 404, not a 405.
	if _, _, err := rt.Dispatch(http.MethodPost, "/records/1"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDispatchRegistrationOrderWins(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records/(\w+)`, stub("first"))
	rt.Add(http.MethodGet, `/records/(\d+)`, stub("second"))

	handler, param, err := rt.Dispatch(http.MethodGet, "/records/7")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got := handler(nil, param).Body; got != "first:7" {
		t.Fatalf("expected first-registered rule to win, got %q", got)
	}
}

func TestAddDuplicatePanics(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records`, stub("a"))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	rt.Add(http.MethodGet, `/records`, stub("b"))
}

func TestDispatchNoCaptureGroup(t *testing.T) {
	rt := New()
	rt.Add(http.MethodGet, `/records`, stub("list"))

	handler, param, err := rt.Dispatch(http.MethodGet, "/records")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if param != "" {
		t.Fatalf("expected empty capture, got %q", param)
	}
	if got := handler(nil, param).Body; got != "list:" {
		t.Fatalf("wrong handler: %q", got)
	}
}
