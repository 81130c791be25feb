package container

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ── Types ─────────────────────────────────────────────────────────────────────

// Factory builds the concrete value for a definition. Arguments have not been
// resolved yet; call c.ResolveArguments(def.Arguments) to turn references and
// nested lists into live values.
type Factory func(c *Container, def *Definition) (any, error)

// Container is the service registry assembled by the bootstrap pipeline.
//
// It has two phases:
//   - building: parameters, definitions, extension sections and compiler
//     passes are registered, typically by loaders and providers;
//   - compiled: Compile merged extension sections, ran passes, expanded
//     "%param%" placeholders and froze the container. From here on it is
//     read-only apart from instantiating services with Make.
type Container struct {
	mu sync.RWMutex

	parameters  map[string]any
	definitions map[string]*Definition

	// alias → service id
	aliases map[string]string

	// class → factory, consulted when a definition carries no Factory
	classes map[string]Factory

	// id → resolved shared instance
	instances map[string]any

	extensions       map[string]Extension
	extensionOrder   []string
	extensionConfigs map[string][]map[string]any

	passes    []CompilerPass
	resources []string

	afterResolving []func(id string, instance any)

	// ids currently being built, for cycle detection
	buildStack []string

	compiled bool
}

// New creates an empty, mutable container.
func New() *Container {
	return &Container{
		parameters:       make(map[string]any),
		definitions:      make(map[string]*Definition),
		aliases:          make(map[string]string),
		classes:          make(map[string]Factory),
		instances:        make(map[string]any),
		extensions:       make(map[string]Extension),
		extensionConfigs: make(map[string][]map[string]any),
	}
}

// ── Parameters ────────────────────────────────────────────────────────────────

// SetParameter stores a raw parameter value. Strings may contain "%other%"
// placeholders; they are expanded at compile time.
func (c *Container) SetParameter(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled {
		return ErrFrozen
	}
	c.parameters[name] = value
	return nil
}

// GetParameter returns a parameter value. After Compile the value is fully
// resolved.
func (c *Container) GetParameter(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.parameters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParameterNotFound, name)
	}
	return v, nil
}

// HasParameter reports whether name was set.
func (c *Container) HasParameter(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.parameters[name]
	return ok
}

// Parameters returns a shallow copy of every parameter.
func (c *Container) Parameters() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.parameters))
	for k, v := range c.parameters {
		out[k] = v
	}
	return out
}

// ResolveValue expands the placeholders in v against the parameters set so
// far, without compiling. "%env(NAME)%" reads the environment when resolveEnv
// is set. Use it before Compile; compiled parameters are already expanded.
func (c *Container) ResolveValue(v any, resolveEnv bool) (any, error) {
	return newParameterResolver(c.Parameters(), resolveEnv).resolveValue(v)
}

// ── Definitions ───────────────────────────────────────────────────────────────

// Register creates a shared definition for id and returns it for further
// configuration. An existing definition for id is replaced.
//
// Register is the fluent form of SetDefinition and cannot report ErrFrozen:
// on a compiled container the returned definition is detached and never
// stored. ProviderRegistry.Load refuses compiled containers, so providers may
// use Register freely.
//
//	c.Register("ast_parser", "NikicPhpParser").AddTag("ast.parser", nil)
func (c *Container) Register(id, class string) *Definition {
	def := NewDefinition(class)
	_ = c.SetDefinition(id, def)
	return def
}

// SetDefinition stores def under id, replacing an existing definition or alias.
func (c *Container) SetDefinition(id string, def *Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled {
		return ErrFrozen
	}
	delete(c.aliases, id)
	delete(c.instances, id)
	c.definitions[id] = def
	return nil
}

// GetDefinition returns the definition behind id, following aliases.
func (c *Container) GetDefinition(id string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[c.canonical(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, id)
	}
	return def, nil
}

// HasDefinition reports whether id (or an alias named id) is registered.
func (c *Container) HasDefinition(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.definitions[c.canonical(id)]
	return ok
}

// RemoveDefinition drops id and any cached instance.
func (c *Container) RemoveDefinition(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled {
		return ErrFrozen
	}
	delete(c.definitions, id)
	delete(c.instances, id)
	return nil
}

// SetAlias makes alias resolve to id.
func (c *Container) SetAlias(alias, id string) error {
	if alias == id {
		return fmt.Errorf("container: [%s] is aliased to itself", alias)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled {
		return ErrFrozen
	}
	delete(c.definitions, alias)
	c.aliases[alias] = id
	return nil
}

// ServiceIDs returns every definition id, sorted.
func (c *Container) ServiceIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases returns a copy of the alias table.
func (c *Container) Aliases() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// TaggedService is one occurrence of a tag on a definition.
type TaggedService struct {
	ID         string
	Attributes map[string]any
}

// FindTaggedServiceIDs returns every occurrence of tag, ordered by service id.
func (c *Container) FindTaggedServiceIDs(tag string) []TaggedService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []TaggedService
	for id, def := range c.definitions {
		for _, attrs := range def.TagAttributes(tag) {
			out = append(out, TaggedService{ID: id, Attributes: attrs})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// canonical resolves an alias chain to its service id (must hold mu).
func (c *Container) canonical(id string) string {
	seen := map[string]bool{}
	for {
		target, ok := c.aliases[id]
		if !ok || seen[id] {
			return id
		}
		seen[id] = true
		id = target
	}
}

// ── Extensions & passes ──────────────────────────────────────────────────────

// RegisterExtension makes ext available to LoadFromExtension under its alias.
func (c *Container) RegisterExtension(ext Extension) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alias := ext.Alias()
	if _, exists := c.extensions[alias]; !exists {
		c.extensionOrder = append(c.extensionOrder, alias)
	}
	c.extensions[alias] = ext
}

// HasExtension reports whether an extension answers to alias.
func (c *Container) HasExtension(alias string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.extensions[alias]
	return ok
}

// LoadFromExtension queues a raw configuration section for the extension
// called alias. Sections are handed to the extension at compile time.
func (c *Container) LoadFromExtension(alias string, values map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled {
		return ErrFrozen
	}
	if _, ok := c.extensions[alias]; !ok {
		return fmt.Errorf("%w: there is no extension able to load the configuration for %q", ErrExtensionNotFound, alias)
	}
	if values == nil {
		values = map[string]any{}
	}
	c.extensionConfigs[alias] = append(c.extensionConfigs[alias], values)
	return nil
}

// GetExtensionConfig returns the raw sections queued for alias, in load order.
func (c *Container) GetExtensionConfig(alias string) []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.extensionConfigs[alias])
}

// AddCompilerPass appends a pass; passes run in registration order.
func (c *Container) AddCompilerPass(pass CompilerPass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = append(c.passes, pass)
}

// AddResource records a file that contributed to the container.
func (c *Container) AddResource(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.resources, path) {
		c.resources = append(c.resources, path)
	}
}

// Resources returns the contributing files in load order.
func (c *Container) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.resources)
}

// ── Compile ───────────────────────────────────────────────────────────────────

// Compile finalises the container:
//
//  1. every registered extension loads its queued sections;
//  2. compiler passes run in order;
//  3. "%param%" placeholders in parameters, classes, arguments, method calls
//     and tag attributes are expanded ("%env(NAME)%" too when resolveEnv);
//  4. service references are checked;
//  5. the container is frozen.
//
// On error the container is left unfrozen and must be discarded.
func (c *Container) Compile(resolveEnv bool) error {
	c.mu.RLock()
	if c.compiled {
		c.mu.RUnlock()
		return ErrFrozen
	}
	order := slices.Clone(c.extensionOrder)
	c.mu.RUnlock()

	for _, alias := range order {
		c.mu.RLock()
		ext := c.extensions[alias]
		configs := slices.Clone(c.extensionConfigs[alias])
		c.mu.RUnlock()
		if err := ext.Load(configs, c); err != nil {
			return fmt.Errorf("container: loading extension %q: %w", alias, err)
		}
	}

	// Passes may register further passes; walk by index.
	for i := 0; ; i++ {
		c.mu.RLock()
		if i >= len(c.passes) {
			c.mu.RUnlock()
			break
		}
		pass := c.passes[i]
		c.mu.RUnlock()
		if err := pass.Process(c); err != nil {
			return fmt.Errorf("container: compiler pass %T: %w", pass, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resolver := newParameterResolver(c.parameters, resolveEnv)
	params, err := resolver.resolveAll()
	if err != nil {
		return err
	}

	defs := make(map[string]*Definition, len(c.definitions))
	for id, def := range c.definitions {
		resolved, err := resolveDefinition(resolver, def)
		if err != nil {
			return fmt.Errorf("container: service %q: %w", id, err)
		}
		defs[id] = resolved
	}

	var errs *multierror.Error
	for alias, target := range c.aliases {
		if _, ok := defs[c.canonical(target)]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("%w: alias %q points at %q", ErrServiceNotFound, alias, target))
		}
	}
	for _, id := range sortedKeys(defs) {
		for _, ref := range defs[id].references() {
			if _, ok := defs[c.canonical(string(ref))]; !ok {
				errs = multierror.Append(errs, fmt.Errorf("%w: %q referenced by %q", ErrServiceNotFound, string(ref), id))
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	c.parameters = params
	c.definitions = defs
	c.compiled = true
	return nil
}

// IsCompiled reports whether Compile succeeded.
func (c *Container) IsCompiled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiled
}

func resolveDefinition(r *parameterResolver, def *Definition) (*Definition, error) {
	out := def.clone()

	class, err := r.resolveString(def.Class)
	if err != nil {
		return nil, err
	}
	s, ok := class.(string)
	if !ok {
		return nil, fmt.Errorf("class resolved to %T, want string", class)
	}
	out.Class = s

	for i, a := range def.Arguments {
		if out.Arguments[i], err = r.resolveValue(a); err != nil {
			return nil, err
		}
	}
	for i, call := range def.Calls {
		args := make([]any, len(call.Arguments))
		for j, a := range call.Arguments {
			if args[j], err = r.resolveValue(a); err != nil {
				return nil, err
			}
		}
		out.Calls[i] = MethodCall{Method: call.Method, Arguments: args}
	}
	for i, tag := range def.Tags {
		attrs, err := r.resolveValue(tag.Attributes)
		if err != nil {
			return nil, err
		}
		out.Tags[i] = Tag{Name: tag.Name, Attributes: attrs.(map[string]any)}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ── Resolution ────────────────────────────────────────────────────────────────

// BindClass registers the factory used for definitions whose Class is class
// and that carry no Factory of their own.
//
//	c.BindClass("AstFileReferenceFileCache", func(c *container.Container, d *container.Definition) (any, error) {
//	    args, err := c.ResolveArguments(d.Arguments)
//	    ...
//	})
func (c *Container) BindClass(class string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class] = factory
}

// Make builds (or returns the cached shared instance of) the service id.
// Method calls recorded on the definition are invoked on the new instance
// by reflection.
func (c *Container) Make(id string) (any, error) {
	c.mu.RLock()
	key := c.canonical(id)
	if inst, ok := c.instances[key]; ok {
		c.mu.RUnlock()
		return inst, nil
	}
	def, ok := c.definitions[key]
	var factory Factory
	if ok {
		factory = def.Factory
		if factory == nil {
			factory = c.classes[def.Class]
		}
	}
	inStack := slices.Contains(c.buildStack, key)
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, id)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: %q (service %q)", ErrNoFactory, def.Class, key)
	}
	if inStack {
		return nil, fmt.Errorf("%w: service %q", ErrCircularReference, key)
	}

	c.mu.Lock()
	c.buildStack = append(c.buildStack, key)
	c.mu.Unlock()

	instance, err := factory(c, def)
	if err == nil {
		err = c.applyCalls(instance, def.Calls)
	}

	c.mu.Lock()
	c.buildStack = c.buildStack[:len(c.buildStack)-1]
	if err == nil && def.Shared {
		c.instances[key] = instance
	}
	cbs := slices.Clone(c.afterResolving)
	c.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("container: building %q: %w", key, err)
	}
	for _, cb := range cbs {
		cb(key, instance)
	}
	return instance, nil
}

// ResolveArguments turns references into instances, recursively.
func (c *Container) ResolveArguments(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := c.resolveArgument(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *Container) resolveArgument(a any) (any, error) {
	switch val := a.(type) {
	case Reference:
		return c.Make(string(val))
	case []any:
		return c.ResolveArguments(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			v, err := c.resolveArgument(x)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return a, nil
	}
}

func (c *Container) applyCalls(instance any, calls []MethodCall) error {
	if len(calls) == 0 {
		return nil
	}
	rv := reflect.ValueOf(instance)
	for _, call := range calls {
		m := rv.MethodByName(call.Method)
		if !m.IsValid() {
			return fmt.Errorf("%T has no method %s", instance, call.Method)
		}
		args, err := c.ResolveArguments(call.Arguments)
		if err != nil {
			return err
		}
		in, err := callArguments(m.Type(), args)
		if err != nil {
			return fmt.Errorf("%T.%s: %w", instance, call.Method, err)
		}
		out := m.Call(in)
		if n := len(out); n > 0 {
			if e, ok := out[n-1].Interface().(error); ok && e != nil {
				return fmt.Errorf("%T.%s: %w", instance, call.Method, e)
			}
		}
	}
	return nil
}

func callArguments(t reflect.Type, args []any) ([]reflect.Value, error) {
	if t.IsVariadic() || t.NumIn() != len(args) {
		return nil, fmt.Errorf("want %d arguments, got %d", t.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want := t.In(i)
		if a == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		v := reflect.ValueOf(a)
		switch {
		case v.Type().AssignableTo(want):
			in[i] = v
		case v.Type().ConvertibleTo(want):
			in[i] = v.Convert(want)
		default:
			return nil, fmt.Errorf("argument %d: cannot use %T as %s", i, a, want)
		}
	}
	return in, nil
}

// AfterResolving registers a callback fired after Make builds a service.
func (c *Container) AfterResolving(cb func(id string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve calls Make and type-asserts the result.
//
//	cache, err := container.Resolve[*providers.FileCache](c, "ast_cache")
func Resolve[T any](c *Container, id string) (T, error) {
	var zero T
	instance, err := c.Make(id)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("container: Resolve[%T]: [%s] resolved to %T", zero, id, instance)
	}
	return typed, nil
}

// MustResolve is Resolve for bootstrap code where a missing service is a bug.
func MustResolve[T any](c *Container, id string) T {
	v, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return v
}

// Parameter returns a typed parameter value.
//
//	paths, err := container.Parameter[[]string](c, "paths")
func Parameter[T any](c *Container, name string) (T, error) {
	var zero T
	v, err := c.GetParameter(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: parameter %q is %T, not %T", name, v, zero)
	}
	return typed, nil
}
