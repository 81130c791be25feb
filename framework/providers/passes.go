package providers

import (
	"fmt"
	"sort"

	"github.com/km-arc/go-deptrac/framework/container"
	"github.com/km-arc/go-deptrac/framework/validation"
)

// AddConsoleCommandPass collects services tagged console.command into the
// console.command_loader service and the console.command.ids parameter.
type AddConsoleCommandPass struct{}

// Process implements container.CompilerPass.
func (AddConsoleCommandPass) Process(c *container.Container) error {
	tagged := c.FindTaggedServiceIDs(ConsoleCommandTag)

	commands := make(map[string]any, len(tagged))
	ids := make([]string, 0, len(tagged))
	for _, svc := range tagged {
		name, _ := svc.Attributes["command"].(string)
		if name == "" {
			return fmt.Errorf("the %q tag on service %q needs a \"command\" attribute", ConsoleCommandTag, svc.ID)
		}
		if prev, dup := commands[name]; dup {
			return fmt.Errorf("command %q is provided by both %q and %q", name, prev, svc.ID)
		}
		commands[name] = svc.ID
		if len(ids) == 0 || ids[len(ids)-1] != svc.ID {
			ids = append(ids, svc.ID)
		}
	}

	if err := c.SetParameter("console.command.ids", ids); err != nil {
		return err
	}
	def := container.NewDefinition(CommandLoaderClass, commands)
	def.Public = true
	return c.SetDefinition("console.command_loader", def)
}

// RegisterListenersPass adds an AddListener call to the dispatcher service for
// every kernel.event_subscriber tag, highest priority first. Without a
// dispatcher definition it does nothing.
type RegisterListenersPass struct {
	// DispatcherID defaults to "event_dispatcher".
	DispatcherID string
}

type listenerTag struct {
	id       string
	event    string
	priority int
}

// Process implements container.CompilerPass.
func (p RegisterListenersPass) Process(c *container.Container) error {
	dispatcherID := p.DispatcherID
	if dispatcherID == "" {
		dispatcherID = "event_dispatcher"
	}
	if !c.HasDefinition(dispatcherID) {
		return nil
	}
	dispatcher, err := c.GetDefinition(dispatcherID)
	if err != nil {
		return err
	}

	var listeners []listenerTag
	for _, svc := range c.FindTaggedServiceIDs(EventSubscriberTag) {
		event, _ := svc.Attributes["event"].(string)
		if event == "" {
			return fmt.Errorf("the %q tag on service %q needs an \"event\" attribute", EventSubscriberTag, svc.ID)
		}
		priority := 0
		if raw, ok := svc.Attributes["priority"]; ok && raw != nil {
			n, ok := validation.AsInt(raw)
			if !ok {
				return fmt.Errorf("the priority of %q on service %q must be an integer", event, svc.ID)
			}
			priority = n
		}
		listeners = append(listeners, listenerTag{id: svc.ID, event: event, priority: priority})
	}

	sort.SliceStable(listeners, func(i, j int) bool {
		return listeners[i].priority > listeners[j].priority
	})
	for _, l := range listeners {
		dispatcher.AddMethodCall("AddListener", l.event, l.id, l.priority)
	}
	return nil
}
