package formwork

import "sort"

// FieldEvent is a custom signal scoped to one field, such as upload progress
// or a geolocation request. The core routes events and never interprets them.
type FieldEvent struct {
	Field  string `json:"field"`
	Name   string `json:"name"`
	Detail any    `json:"detail,omitempty"`
}

// FieldListener receives dispatched field events.
type FieldListener func(FieldEvent)

type listenerKey struct {
	field string
	name  string
}

// eventBus routes field events to listeners in registration order.
type eventBus struct {
	listeners map[listenerKey]map[int]FieldListener
	owner     map[int]listenerKey
	nextID    int
}

func newEventBus() *eventBus {
	return &eventBus{
		listeners: make(map[listenerKey]map[int]FieldListener),
		owner:     make(map[int]listenerKey),
	}
}

func (b *eventBus) add(field, name string, fn FieldListener) int {
	key := listenerKey{field, name}
	b.nextID++
	id := b.nextID
	if b.listeners[key] == nil {
		b.listeners[key] = make(map[int]FieldListener)
	}
	b.listeners[key][id] = fn
	b.owner[id] = key
	return id
}

func (b *eventBus) remove(id int) bool {
	key, ok := b.owner[id]
	if !ok {
		return false
	}
	delete(b.owner, id)
	delete(b.listeners[key], id)
	if len(b.listeners[key]) == 0 {
		delete(b.listeners, key)
	}
	return true
}

// dispatch delivers ev and returns the number of listeners reached.
func (b *eventBus) dispatch(ev FieldEvent) int {
	set := b.listeners[listenerKey{ev.Field, ev.Name}]
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	n := 0
	for _, id := range ids {
		// A listener may remove later listeners while we iterate.
		if fn, ok := set[id]; ok {
			fn(ev)
			n++
		}
	}
	return n
}
