package routing_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newInspectedContainer(t *testing.T) *container.Container {
	t.Helper()
	c := container.New()
	if err := c.SetParameter("paths", []any{"src"}); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	c.Register("ast_cache", "AstFileReferenceInMemoryCache")
	parser := c.Register("ast_parser", "NikicPhpParser").
		AddTag("ast.parser", map[string]any{"priority": 10}).
		AddMethodCall("setCache", container.Reference("ast_cache")).
		SetPublic(true)
	parser.Arguments = []any{container.Reference("ast_cache"), "%paths%"}
	if err := c.SetAlias("parser", "ast_parser"); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	c.AddResource("/wd/deptrac.yaml")
	if err := c.Compile(false); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return c
}

func getJSON(t *testing.T, router *routing.Router, path string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
	return rr.Code, m
}

// ── Endpoints ─────────────────────────────────────────────────────────────────

func TestInspector_Summary(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/")
	if code != http.StatusOK {
		t.Fatalf("status: got %d want 200", code)
	}
	want := map[string]any{
		"compiled":   true,
		"parameters": float64(1),
		"services":   float64(2),
		"aliases":    float64(1),
		"resources":  float64(1),
	}
	if !reflect.DeepEqual(m["data"], want) {
		t.Errorf("summary: got %v want %v", m["data"], want)
	}
}

func TestInspector_Parameters(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/parameters")
	if code != http.StatusOK {
		t.Fatalf("status: got %d want 200", code)
	}
	data := m["data"].(map[string]any)
	if !reflect.DeepEqual(data["paths"], []any{"src"}) {
		t.Errorf("paths: got %v", data["paths"])
	}

	code, m = getJSON(t, r, "/parameters/paths")
	if code != http.StatusOK {
		t.Fatalf("status: got %d want 200", code)
	}
	if got := m["data"].(map[string]any)["name"]; got != "paths" {
		t.Errorf("name: got %v want paths", got)
	}

	code, m = getJSON(t, r, "/parameters/cache_file")
	if code != http.StatusNotFound {
		t.Errorf("unknown parameter: got %d want 404", code)
	}
	if m["message"] != "Parameter cache_file is not defined." {
		t.Errorf("message: got %v", m["message"])
	}
}

func TestInspector_Services(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	tests := []struct {
		path string
		want []string
	}{
		{"/services", []string{"ast_cache", "ast_parser"}},
		{"/services?tag=ast.parser", []string{"ast_parser"}},
		{"/services?public=true", []string{"ast_parser"}},
		{"/services?public=false", []string{"ast_cache"}},
		{"/services?tag=missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, m := getJSON(t, r, tt.path)
			if code != http.StatusOK {
				t.Fatalf("status: got %d want 200", code)
			}
			got := []string{}
			for _, s := range m["data"].([]any) {
				got = append(got, s.(map[string]any)["id"].(string))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids: got %v want %v", got, tt.want)
			}
		})
	}
}

func TestInspector_Services_RejectsBadFilters(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	for _, path := range []string{"/services?public=maybe", "/services?sort=id"} {
		code, m := getJSON(t, r, path)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("GET %s: got %d want 422", path, code)
		}
		if _, ok := m["errors"].(map[string]any); !ok {
			t.Errorf("GET %s: expected errors bag, got %v", path, m)
		}
	}
}

func TestInspector_Service(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/services/ast_parser")
	if code != http.StatusOK {
		t.Fatalf("status: got %d want 200", code)
	}
	data := m["data"].(map[string]any)
	if data["class"] != "NikicPhpParser" {
		t.Errorf("class: got %v", data["class"])
	}
	if want := []any{"@ast_cache", []any{"src"}}; !reflect.DeepEqual(data["arguments"], want) {
		t.Errorf("arguments: got %v want %v", data["arguments"], want)
	}
	wantCalls := []any{map[string]any{"method": "setCache", "arguments": []any{"@ast_cache"}}}
	if !reflect.DeepEqual(data["calls"], wantCalls) {
		t.Errorf("calls: got %v want %v", data["calls"], wantCalls)
	}
	wantTags := []any{map[string]any{"name": "ast.parser", "attributes": map[string]any{"priority": float64(10)}}}
	if !reflect.DeepEqual(data["tags"], wantTags) {
		t.Errorf("tags: got %v want %v", data["tags"], wantTags)
	}
	if data["public"] != true || data["shared"] != true {
		t.Errorf("flags: public=%v shared=%v", data["public"], data["shared"])
	}
	if _, ok := data["alias_of"]; ok {
		t.Errorf("alias_of set on a plain service: %v", data["alias_of"])
	}
}

func TestInspector_Service_FollowsAlias(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/services/parser")
	if code != http.StatusOK {
		t.Fatalf("status: got %d want 200", code)
	}
	data := m["data"].(map[string]any)
	if data["id"] != "parser" || data["alias_of"] != "ast_parser" {
		t.Errorf("alias: got id=%v alias_of=%v", data["id"], data["alias_of"])
	}
	if data["class"] != "NikicPhpParser" {
		t.Errorf("class: got %v", data["class"])
	}
}

func TestInspector_Service_NotFound(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/services/nope")
	if code != http.StatusNotFound {
		t.Errorf("status: got %d want 404", code)
	}
	if m["message"] != "Service nope is not defined." {
		t.Errorf("message: got %v", m["message"])
	}
}

func TestInspector_AliasesAndResources(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	_, m := getJSON(t, r, "/aliases")
	if !reflect.DeepEqual(m["data"], map[string]any{"parser": "ast_parser"}) {
		t.Errorf("aliases: got %v", m["data"])
	}
	_, m = getJSON(t, r, "/resources")
	if !reflect.DeepEqual(m["data"], []any{"/wd/deptrac.yaml"}) {
		t.Errorf("resources: got %v", m["data"])
	}
}

func TestInspector_UnknownRoute(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	code, m := getJSON(t, r, "/nowhere")
	if code != http.StatusNotFound || m["message"] != "Not found." {
		t.Errorf("GET /nowhere: got %d %v", code, m)
	}
}

// ── Middleware ────────────────────────────────────────────────────────────────

func TestInspector_DisablesCaching(t *testing.T) {
	r := routing.NewInspector(newInspectedContainer(t), nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services", nil))
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control: got %q, want no-store", cc)
	}
}

func TestInspector_PanicAnswersJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := routing.NewInspector(newInspectedContainer(t), logger)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	code, m := getJSON(t, r, "/boom")
	if code != http.StatusInternalServerError {
		t.Errorf("status: got %d want 500", code)
	}
	if m["message"] != "Server Error." {
		t.Errorf("message: got %v", m["message"])
	}
	if line := buf.String(); !strings.Contains(line, "inspector handler panicked") || !strings.Contains(line, "panic=boom") {
		t.Errorf("log: got %q", line)
	}
}
