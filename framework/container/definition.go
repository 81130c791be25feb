package container

import "strings"

// Reference points at another service by id. Loaders produce it from "@id".
type Reference string

// String renders the reference the way configuration files spell it.
func (r Reference) String() string { return "@" + string(r) }

// Tag is a named marker with free-form attributes, collected by compiler passes.
type Tag struct {
	Name       string
	Attributes map[string]any
}

// MethodCall is a setter invocation recorded on a definition.
type MethodCall struct {
	Method    string
	Arguments []any
}

// Definition describes how to build one service.
//
// Go cannot construct a type from its name, so Class is only a key: the
// concrete value comes from Factory, or from the factory bound to Class with
// Container.BindClass.
type Definition struct {
	Class     string
	Arguments []any
	Calls     []MethodCall
	Tags      []Tag
	Public    bool
	Shared    bool
	Factory   Factory
}

// NewDefinition returns a shared, private definition for class.
func NewDefinition(class string, args ...any) *Definition {
	return &Definition{Class: class, Arguments: args, Shared: true}
}

// AddTag appends a tag and returns d for chaining.
//
//	c.Register("analyse", "AnalyseCommand").AddTag("console.command", map[string]any{"command": "analyse"})
func (d *Definition) AddTag(name string, attributes map[string]any) *Definition {
	if attributes == nil {
		attributes = map[string]any{}
	}
	d.Tags = append(d.Tags, Tag{Name: name, Attributes: attributes})
	return d
}

// HasTag reports whether the definition carries the named tag at least once.
func (d *Definition) HasTag(name string) bool {
	for _, t := range d.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// TagAttributes returns the attributes of every occurrence of the named tag.
func (d *Definition) TagAttributes(name string) []map[string]any {
	var out []map[string]any
	for _, t := range d.Tags {
		if t.Name == name {
			out = append(out, t.Attributes)
		}
	}
	return out
}

// AddMethodCall records a setter call and returns d for chaining.
func (d *Definition) AddMethodCall(method string, args ...any) *Definition {
	d.Calls = append(d.Calls, MethodCall{Method: method, Arguments: args})
	return d
}

// SetPublic marks the definition as visible to Make callers outside the graph.
func (d *Definition) SetPublic(public bool) *Definition {
	d.Public = public
	return d
}

func (d *Definition) clone() *Definition {
	cp := *d
	cp.Arguments = append([]any(nil), d.Arguments...)
	cp.Calls = append([]MethodCall(nil), d.Calls...)
	cp.Tags = append([]Tag(nil), d.Tags...)
	return &cp
}

// references returns every service id the definition points at.
func (d *Definition) references() []Reference {
	var refs []Reference
	collect := func(v any) {
		walkValue(v, func(x any) {
			if r, ok := x.(Reference); ok {
				refs = append(refs, r)
			}
		})
	}
	for _, a := range d.Arguments {
		collect(a)
	}
	for _, call := range d.Calls {
		for _, a := range call.Arguments {
			collect(a)
		}
	}
	return refs
}

func walkValue(v any, fn func(any)) {
	switch val := v.(type) {
	case []any:
		for _, x := range val {
			walkValue(x, fn)
		}
	case map[string]any:
		for _, x := range val {
			walkValue(x, fn)
		}
	default:
		fn(v)
	}
}

// ParseReference converts a configuration string into a Reference when it
// starts with a single "@". "@@" escapes a literal "@".
func ParseReference(s string) (any, bool) {
	switch {
	case strings.HasPrefix(s, "@@"):
		return s[1:], false
	case strings.HasPrefix(s, "@") && len(s) > 1:
		return Reference(s[1:]), true
	default:
		return s, false
	}
}
