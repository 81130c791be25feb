package providers

import (
	"fmt"
	"os"
	"sort"

	"github.com/km-arc/go-deptrac/framework/container"
)

// Component stands in for a collaborator whose behaviour lives outside this
// module (parsers, analysers, commands). It records what it was built with.
type Component struct {
	Class     string
	Arguments []any
}

// ComponentFactory builds a Component from a definition, resolving references.
func ComponentFactory(c *container.Container, def *container.Definition) (any, error) {
	args, err := c.ResolveArguments(def.Arguments)
	if err != nil {
		return nil, err
	}
	return &Component{Class: def.Class, Arguments: args}, nil
}

// ── Events ───────────────────────────────────────────────────────────────────

// Listener is a subscriber service registered for one event.
type Listener struct {
	Event     string
	ServiceID string
	Priority  int
}

// EventDispatcher keeps listener registrations; higher priority runs first.
type EventDispatcher struct {
	listeners map[string][]Listener
}

// NewEventDispatcher returns an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{listeners: make(map[string][]Listener)}
}

// AddListener registers serviceID for event.
func (d *EventDispatcher) AddListener(event, serviceID string, priority int) {
	d.listeners[event] = append(d.listeners[event], Listener{Event: event, ServiceID: serviceID, Priority: priority})
	sort.SliceStable(d.listeners[event], func(i, j int) bool {
		return d.listeners[event][i].Priority > d.listeners[event][j].Priority
	})
}

// Listeners returns the listeners for event in call order.
func (d *EventDispatcher) Listeners(event string) []Listener {
	return append([]Listener(nil), d.listeners[event]...)
}

// Events returns every event with at least one listener, sorted.
func (d *EventDispatcher) Events() []string {
	events := make([]string, 0, len(d.listeners))
	for e := range d.listeners {
		events = append(events, e)
	}
	sort.Strings(events)
	return events
}

// ── Console ──────────────────────────────────────────────────────────────────

// CommandLoader resolves console commands lazily by name.
type CommandLoader struct {
	container *container.Container
	commands  map[string]string // command name → service id
}

// Names returns the registered command names, sorted.
func (l *CommandLoader) Names() []string {
	names := make([]string, 0, len(l.commands))
	for n := range l.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a command called name exists.
func (l *CommandLoader) Has(name string) bool {
	_, ok := l.commands[name]
	return ok
}

// Get builds the command service called name.
func (l *CommandLoader) Get(name string) (any, error) {
	id, ok := l.commands[name]
	if !ok {
		return nil, fmt.Errorf("command %q does not exist", name)
	}
	return l.container.Make(id)
}

func commandLoaderFactory(c *container.Container, def *container.Definition) (any, error) {
	l := &CommandLoader{container: c, commands: map[string]string{}}
	if len(def.Arguments) == 0 {
		return l, nil
	}
	m, ok := def.Arguments[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("command map is %T", def.Arguments[0])
	}
	for name, id := range m {
		s, ok := id.(string)
		if !ok {
			return nil, fmt.Errorf("command %q maps to %T, want a service id", name, id)
		}
		l.commands[name] = s
	}
	return l, nil
}

// ── AST cache ────────────────────────────────────────────────────────────────

// MemoryCache is the AST cache used when no cache file is configured.
type MemoryCache struct{}

// FileCache is the AST cache persisted at Path.
type FileCache struct {
	Path string
}

// Exists reports whether the cache file is present on disk.
func (f *FileCache) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

func fileCacheFactory(_ *container.Container, def *container.Definition) (any, error) {
	if len(def.Arguments) != 1 {
		return nil, fmt.Errorf("want the cache file path as the only argument, got %d arguments", len(def.Arguments))
	}
	path, ok := def.Arguments[0].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("cache file path must be a non-empty string, got %v", def.Arguments[0])
	}
	return &FileCache{Path: path}, nil
}
