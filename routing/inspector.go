package routing

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/validation"
	gohttp "github.com/km-arc/go-deptrac/http"
)

// serviceQueryRules constrains the GET /services filters.
var serviceQueryRules = validation.Rules{
	"tag":    "nullable|string",
	"public": "nullable|in:true,false",
}

type serviceSummary struct {
	ID     string   `json:"id"`
	Class  string   `json:"class"`
	Public bool     `json:"public"`
	Shared bool     `json:"shared"`
	Tags   []string `json:"tags"`
}

type tagView struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

type callView struct {
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
}

type serviceView struct {
	ID        string     `json:"id"`
	AliasOf   string     `json:"alias_of,omitempty"`
	Class     string     `json:"class"`
	Arguments []any      `json:"arguments"`
	Calls     []callView `json:"calls"`
	Tags      []tagView  `json:"tags"`
	Public    bool       `json:"public"`
	Shared    bool       `json:"shared"`
}

// inspector serves read-only JSON views of one container.
type inspector struct {
	c *container.Container
}

// NewInspector returns a router exposing c's parameters, services, aliases
// and resources:
//
//	GET /                    summary
//	GET /parameters          every parameter
//	GET /parameters/{name}   one parameter
//	GET /services            service summaries, filtered by ?tag= and ?public=
//	GET /services/{id}       one definition; aliases are followed
//	GET /aliases             alias table
//	GET /resources           files the container was built from
//
// Responses are never cached, and a panicking handler answers with a JSON 500.
func NewInspector(c *container.Container, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	in := &inspector{c: c}
	r := New(logger)
	r.Middleware(middleware.NoCache, recoverJSON(logger))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { gohttp.NewResponse(w).NotFound() })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Error(http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Get("/", in.summary)
	r.Prefix("/parameters", func(r *Router) {
		r.Get("/", in.parameters)
		r.Get("/{name}", in.parameter)
	})
	r.Prefix("/services", func(r *Router) {
		r.Get("/", in.services)
		r.Get("/{id}", in.service)
	})
	r.Get("/aliases", in.aliases)
	r.Get("/resources", in.resources)
	return r
}

func (in *inspector) summary(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(map[string]any{
		"compiled":   in.c.IsCompiled(),
		"parameters": len(in.c.Parameters()),
		"services":   len(in.c.ServiceIDs()),
		"aliases":    len(in.c.Aliases()),
		"resources":  len(in.c.Resources()),
	})
}

func (in *inspector) parameters(w http.ResponseWriter, _ *http.Request) {
	params := in.c.Parameters()
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = present(v)
	}
	gohttp.NewResponse(w).Success(out)
}

func (in *inspector) parameter(w http.ResponseWriter, r *http.Request) {
	name := gohttp.NewRequest(r).RouteParam("name")
	v, err := in.c.GetParameter(name)
	if err != nil {
		gohttp.NewResponse(w).NotFound("Parameter " + name + " is not defined.")
		return
	}
	gohttp.NewResponse(w).Success(map[string]any{"name": name, "value": present(v)})
}

func (in *inspector) services(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)
	if errs := validation.Validate(req.QueryAll(), serviceQueryRules, true); errs.Has() {
		res.ValidationError(errs)
		return
	}
	tag, public := req.Query("tag"), req.Query("public")

	out := []serviceSummary{}
	for _, id := range in.c.ServiceIDs() {
		def, err := in.c.GetDefinition(id)
		if err != nil {
			continue
		}
		if tag != "" && !def.HasTag(tag) {
			continue
		}
		if public != "" && def.Public != (public == "true") {
			continue
		}
		out = append(out, serviceSummary{
			ID:     id,
			Class:  def.Class,
			Public: def.Public,
			Shared: def.Shared,
			Tags:   tagNames(def),
		})
	}
	res.Success(out)
}

func (in *inspector) service(w http.ResponseWriter, r *http.Request) {
	id := gohttp.NewRequest(r).RouteParam("id")
	def, err := in.c.GetDefinition(id)
	if err != nil {
		gohttp.NewResponse(w).NotFound("Service " + id + " is not defined.")
		return
	}

	view := serviceView{
		ID:        id,
		AliasOf:   in.aliasTarget(id),
		Class:     def.Class,
		Arguments: presentList(def.Arguments),
		Calls:     []callView{},
		Tags:      []tagView{},
		Public:    def.Public,
		Shared:    def.Shared,
	}
	for _, call := range def.Calls {
		view.Calls = append(view.Calls, callView{Method: call.Method, Arguments: presentList(call.Arguments)})
	}
	for _, tag := range def.Tags {
		attrs, _ := present(tag.Attributes).(map[string]any)
		view.Tags = append(view.Tags, tagView{Name: tag.Name, Attributes: attrs})
	}
	gohttp.NewResponse(w).Success(view)
}

func (in *inspector) aliases(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(in.c.Aliases())
}

func (in *inspector) resources(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(in.c.Resources())
}

// aliasTarget follows id through the alias table and returns the service it
// lands on, or "" when id is not an alias.
func (in *inspector) aliasTarget(id string) string {
	aliases := in.c.Aliases()
	seen := map[string]bool{}
	target := id
	for {
		next, ok := aliases[target]
		if !ok || seen[target] {
			break
		}
		seen[target] = true
		target = next
	}
	if target == id {
		return ""
	}
	return target
}

func tagNames(def *container.Definition) []string {
	names := []string{}
	seen := map[string]bool{}
	for _, t := range def.Tags {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}

// present rewrites values for JSON: references keep their "@" spelling.
func present(v any) any {
	switch x := v.(type) {
	case container.Reference:
		return x.String()
	case []any:
		return presentList(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = present(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = present(e)
		}
		return out
	default:
		return v
	}
}

func presentList(list []any) []any {
	out := make([]any, len(list))
	for i, e := range list {
		out[i] = present(e)
	}
	return out
}

// recoverJSON turns a handler panic into a JSON 500. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func recoverJSON(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint
					panic(rec)
				}
				logger.Error("inspector handler panicked", "method", req.Method, "path", req.URL.Path, "panic", rec)
				gohttp.NewResponse(w).ServerError()
			}()
			next.ServeHTTP(w, req)
		})
	}
}
