package eventbus

import (
	"encoding/json"
	"sync"
)

type (
	// Bus fans out instance and activity events to stream subscribers keyed by instance id.
	Bus interface {
		Register(identifier string) chan Event
		Unregister(identifier string, ch chan Event)
		Broadcast(identifier string, evType Type, message string)
		BroadcastWithData(identifier string, evType Type, message string, data interface{})
	}

	Event struct {
		Type    Type            `json:"type"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	}

	Type string
)

const (
	Error          Type = "error"
	Info           Type = "info"
	Success        Type = "success"
	InstanceStatus Type = "instance_status"
	ActivityStatus Type = "activity_status"
)

const bufferSize = 100

type eventPublisher struct {
	events map[string][]chan Event
	lock   sync.Mutex
}

func New() Bus {
	return &eventPublisher{
		events: make(map[string][]chan Event),
	}
}

func (e *eventPublisher) Register(identifier string) chan Event {
	e.lock.Lock()
	defer e.lock.Unlock()

	ch := make(chan Event, bufferSize)
	e.events[identifier] = append(e.events[identifier], ch)
	return ch
}

func (e *eventPublisher) Unregister(identifier string, ch chan Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	clients := e.events[identifier]
	for i, c := range clients {
		if c == ch {
			clients = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(clients) == 0 {
		delete(e.events, identifier)
		return
	}
	e.events[identifier] = clients
}

func (e *eventPublisher) Broadcast(identifier string, evType Type, message string) {
	e.publish(identifier, Event{Type: evType, Message: message})
}

func (e *eventPublisher) BroadcastWithData(identifier string, evType Type, message string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	e.publish(identifier, Event{Type: evType, Message: message, Data: raw})
}

// publish never blocks; a subscriber that is not draining misses events.
func (e *eventPublisher) publish(identifier string, ev Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, ch := range e.events[identifier] {
		select {
		case ch <- ev:
		default:
		}
	}
}
