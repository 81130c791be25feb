package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/km-arc/go-deptrac/framework/container"
)

// Decoder turns raw file content into the generic document tree.
type Decoder func(data []byte, file string) (map[string]any, error)

// FileLoader loads one file format. Every format shares the same document
// model: imports, parameters, services and extension sections.
type FileLoader struct {
	format     string
	extensions []string
	decode     Decoder
	locator    *FileLocator
	logger     *slog.Logger

	parent *DelegatingLoader
	stack  *loadStack
}

// NewFileLoader returns a loader for files ending in one of extensions.
func NewFileLoader(format string, extensions []string, decode Decoder, locator *FileLocator, logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileLoader{
		format:     format,
		extensions: extensions,
		decode:     decode,
		locator:    locator,
		logger:     logger,
		stack:      &loadStack{},
	}
}

// Supports reports whether resource carries one of the loader's extensions.
func (l *FileLoader) Supports(resource string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(resource)), ".")
	for _, e := range l.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads resource and applies it to c.
func (l *FileLoader) Load(c *container.Container, resource string) error {
	file, err := l.locator.Locate(resource, "")
	if err != nil {
		return err
	}
	return l.loadFile(c, file)
}

func (l *FileLoader) loadFile(c *container.Container, file string) error {
	if err := l.stack.push(file); err != nil {
		return err
	}
	defer l.stack.pop()

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	raw, err := l.decode(data, file)
	if err != nil {
		return fmt.Errorf("unable to parse %s file %q: %w", l.format, file, err)
	}
	doc, _ := normalize(raw).(map[string]any)

	c.AddResource(file)
	l.logger.Debug("loading configuration file", "file", file, "format", l.format)

	if err := l.applyImports(c, doc["imports"], file); err != nil {
		return err
	}
	return apply(c, doc, file)
}

func (l *FileLoader) applyImports(c *container.Container, value any, file string) error {
	if value == nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("the \"imports\" key should contain a list in %q", file)
	}

	dir := filepath.Dir(file)
	for i, item := range list {
		resource, ignoreMissing := "", false
		switch v := item.(type) {
		case string:
			resource = v
		case map[string]any:
			resource, _ = v["resource"].(string)
			ignoreMissing = v["ignore_errors"] == "not_found" || v["ignore_errors"] == true
		}
		if resource == "" {
			return fmt.Errorf("the import %d in %q has no resource", i, file)
		}

		if err := l.importResource(c, resource, dir); err != nil {
			if ignoreMissing && errors.Is(err, fs.ErrNotExist) {
				l.logger.Debug("skipping missing import", "resource", resource, "file", file)
				continue
			}
			return fmt.Errorf("importing %q from %q: %w", resource, filepath.Base(file), err)
		}
	}
	return nil
}

func (l *FileLoader) importResource(c *container.Container, resource, dir string) error {
	if l.Supports(resource) {
		located, err := l.locator.Locate(resource, dir)
		if err != nil {
			return err
		}
		return l.loadFile(c, located)
	}

	if l.parent == nil {
		return fmt.Errorf("%w for %q", ErrNoLoader, resource)
	}
	if target, ok := l.parent.resolver.Resolve(resource); ok {
		if fl, ok := target.(*FileLoader); ok {
			located, err := fl.locator.Locate(resource, dir)
			if err != nil {
				return err
			}
			return fl.loadFile(c, located)
		}
	}
	return l.parent.Load(c, resource)
}

// ── document model ───────────────────────────────────────────────────────────

var reservedKeys = map[string]bool{"imports": true, "parameters": true, "services": true}

func apply(c *container.Container, doc map[string]any, file string) error {
	if err := applyParameters(c, doc["parameters"], file); err != nil {
		return err
	}
	if err := applyServices(c, doc["services"], file); err != nil {
		return err
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, ns := range keys {
		section := doc[ns]
		var values map[string]any
		switch v := section.(type) {
		case nil:
		case map[string]any:
			values = v
		default:
			return fmt.Errorf("the %q section in %q must be a map", ns, file)
		}
		if !c.HasExtension(ns) {
			return fmt.Errorf("%w: there is no extension able to load the configuration for %q (in %s)", container.ErrExtensionNotFound, ns, file)
		}
		if err := c.LoadFromExtension(ns, values); err != nil {
			return err
		}
	}
	return nil
}

func applyParameters(c *container.Container, value any, file string) error {
	if value == nil {
		return nil
	}
	params, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("the \"parameters\" key should contain a map in %q", file)
	}
	for name, v := range params {
		if err := c.SetParameter(name, v); err != nil {
			return err
		}
	}
	return nil
}

func applyServices(c *container.Container, value any, file string) error {
	if value == nil {
		return nil
	}
	services, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("the \"services\" key should contain a map in %q", file)
	}

	for _, id := range sortedKeys(services) {
		if err := applyService(c, id, services[id], file); err != nil {
			return err
		}
	}
	return nil
}

func applyService(c *container.Container, id string, value any, file string) error {
	switch v := value.(type) {
	case nil:
		return c.SetDefinition(id, container.NewDefinition(id))
	case string:
		ref, isRef := container.ParseReference(v)
		if !isRef {
			return fmt.Errorf("a service definition must be a map or an \"@id\" alias, %q given for %q in %q", v, id, file)
		}
		return c.SetAlias(id, string(ref.(container.Reference)))
	case map[string]any:
		if target, ok := v["alias"].(string); ok {
			return c.SetAlias(id, target)
		}
		def, err := parseDefinition(id, v)
		if err != nil {
			return fmt.Errorf("invalid definition for service %q in %q: %w", id, file, err)
		}
		return c.SetDefinition(id, def)
	default:
		return fmt.Errorf("a service definition must be a map, got %T for %q in %q", value, id, file)
	}
}

var definitionKeys = map[string]bool{
	"class": true, "arguments": true, "tags": true, "calls": true,
	"public": true, "shared": true, "alias": true,
}

func parseDefinition(id string, m map[string]any) (*container.Definition, error) {
	for k := range m {
		if !definitionKeys[k] {
			return nil, fmt.Errorf("unsupported key %q", k)
		}
	}

	class := id
	if v, ok := m["class"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("class must be a string")
		}
		class = s
	}
	def := container.NewDefinition(class)

	if v, ok := m["arguments"]; ok && v != nil {
		args, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("arguments must be a list")
		}
		def.Arguments = references(args).([]any)
	}

	if v, ok := m["public"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("public must be a boolean")
		}
		def.Public = b
	}
	if v, ok := m["shared"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("shared must be a boolean")
		}
		def.Shared = b
	}

	if v, ok := m["tags"]; ok && v != nil {
		tags, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("tags must be a list")
		}
		for _, t := range tags {
			switch tag := t.(type) {
			case string:
				def.AddTag(tag, nil)
			case map[string]any:
				name, _ := tag["name"].(string)
				if name == "" {
					return nil, fmt.Errorf("a tag map needs a \"name\"")
				}
				attrs := map[string]any{}
				for k, a := range tag {
					if k != "name" {
						attrs[k] = a
					}
				}
				def.AddTag(name, attrs)
			default:
				return nil, fmt.Errorf("a tag must be a string or a map, got %T", t)
			}
		}
	}

	if v, ok := m["calls"]; ok && v != nil {
		calls, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("calls must be a list")
		}
		for _, call := range calls {
			method, args, err := parseCall(call)
			if err != nil {
				return nil, err
			}
			def.AddMethodCall(method, references(args).([]any)...)
		}
	}
	return def, nil
}

// parseCall accepts [method, [args...]] and {method: m, arguments: [...]}.
func parseCall(call any) (string, []any, error) {
	switch v := call.(type) {
	case []any:
		if len(v) == 0 {
			return "", nil, fmt.Errorf("a call needs a method name")
		}
		method, ok := v[0].(string)
		if !ok {
			return "", nil, fmt.Errorf("a call method must be a string")
		}
		if len(v) == 1 {
			return method, []any{}, nil
		}
		args, ok := v[1].([]any)
		if !ok {
			return "", nil, fmt.Errorf("call arguments for %q must be a list", method)
		}
		return method, args, nil
	case map[string]any:
		method, _ := v["method"].(string)
		if method == "" {
			return "", nil, fmt.Errorf("a call needs a method name")
		}
		args, _ := v["arguments"].([]any)
		if args == nil {
			args = []any{}
		}
		return method, args, nil
	}
	return "", nil, fmt.Errorf("a call must be a list or a map, got %T", call)
}

// references turns "@id" strings inside v into container references.
func references(v any) any {
	switch val := v.(type) {
	case string:
		out, _ := container.ParseReference(val)
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = references(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = references(x)
		}
		return out
	}
	return v
}

// normalize converts decoder-specific shapes into map[string]any / []any.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = normalize(x)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[fmt.Sprint(k)] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = normalize(x)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = normalize(x)
		}
		return out
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
