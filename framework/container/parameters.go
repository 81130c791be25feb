package container

import (
	"fmt"
	"os"
	"strings"
)

// parameterResolver expands "%name%" placeholders against a parameter set.
// A string that is exactly one placeholder takes the parameter's value with
// its original type; placeholders embedded in longer strings must resolve to
// scalars. "%%" is a literal percent sign.
type parameterResolver struct {
	params     map[string]any
	resolveEnv bool
	resolved   map[string]any
	resolving  map[string]bool
}

func newParameterResolver(params map[string]any, resolveEnv bool) *parameterResolver {
	return &parameterResolver{
		params:     params,
		resolveEnv: resolveEnv,
		resolved:   make(map[string]any),
		resolving:  make(map[string]bool),
	}
}

// EscapeValue returns s with every percent sign doubled, so a literal string
// such as a filesystem path survives placeholder expansion unchanged.
func EscapeValue(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// resolveAll returns a fully expanded copy of every parameter.
func (r *parameterResolver) resolveAll() (map[string]any, error) {
	out := make(map[string]any, len(r.params))
	for name := range r.params {
		v, err := r.parameter(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (r *parameterResolver) resolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.resolveString(val)
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			res, err := r.resolveValue(x)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case []string:
		out := make([]string, len(val))
		for i, x := range val {
			res, err := r.resolveString(x)
			if err != nil {
				return nil, err
			}
			s, ok := res.(string)
			if !ok {
				return nil, fmt.Errorf("container: %q resolved to %T inside a string list", x, res)
			}
			out[i] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			res, err := r.resolveValue(x)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *parameterResolver) resolveString(s string) (any, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	if name, ok := wholePlaceholder(s); ok {
		return r.placeholder(name)
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '%' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}
		end := strings.IndexByte(s[i+1:], '%')
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		name := s[i+1 : i+1+end]
		if !validPlaceholderName(name) {
			b.WriteByte('%')
			i++
			continue
		}
		v, err := r.placeholder(name)
		if err != nil {
			return nil, err
		}
		switch v.(type) {
		case string, bool, int, int64, float64:
			fmt.Fprint(&b, v)
		case nil:
		default:
			return nil, fmt.Errorf("container: parameter %q of type %T cannot be embedded in string %q", name, v, s)
		}
		i += end + 2
	}
	return b.String(), nil
}

func (r *parameterResolver) placeholder(name string) (any, error) {
	if env, ok := strings.CutPrefix(name, "env("); ok && strings.HasSuffix(env, ")") {
		if !r.resolveEnv {
			return "%" + name + "%", nil
		}
		return os.Getenv(strings.TrimSuffix(env, ")")), nil
	}
	return r.parameter(name)
}

func (r *parameterResolver) parameter(name string) (any, error) {
	if v, ok := r.resolved[name]; ok {
		return v, nil
	}
	raw, ok := r.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParameterNotFound, name)
	}
	if r.resolving[name] {
		return nil, fmt.Errorf("%w: parameter %q", ErrCircularReference, name)
	}
	r.resolving[name] = true
	defer delete(r.resolving, name)

	v, err := r.resolveValue(raw)
	if err != nil {
		return nil, err
	}
	r.resolved[name] = v
	return v, nil
}

func wholePlaceholder(s string) (string, bool) {
	if len(s) < 3 || s[0] != '%' || s[len(s)-1] != '%' {
		return "", false
	}
	name := s[1 : len(s)-1]
	if strings.Contains(name, "%") || !validPlaceholderName(name) {
		return "", false
	}
	return name, true
}

func validPlaceholderName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n")
}
