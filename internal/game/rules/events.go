package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of an engine event.
type EventType string

const (
	// Game lifecycle events
	EventGameStarted EventType = "GAME_STARTED"
	EventGameEnded   EventType = "GAME_ENDED"
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
	EventPhaseChange EventType = "PHASE_CHANGE"

	// Movement events. Pre/post move pacing markers give subscribers an
	// ordered view of a move even when the pacing delay is zero.
	EventPreMove     EventType = "PRE_MOVE"
	EventPlayerMoved EventType = "PLAYER_MOVED"
	EventPostMove    EventType = "POST_MOVE"
	EventSpaceEntry  EventType = "SPACE_ENTRY"

	// Dice events
	EventDiceRolled EventType = "DICE_ROLLED"

	// Card events
	EventCardsDrawn      EventType = "CARDS_DRAWN"
	EventCardPlayed      EventType = "CARD_PLAYED"
	EventCardDiscarded   EventType = "CARD_DISCARDED"
	EventCardActivated   EventType = "CARD_ACTIVATED"
	EventCardExpired     EventType = "CARD_EXPIRED"
	EventCardTransferred EventType = "CARD_TRANSFERRED"
	EventDeckReshuffled  EventType = "DECK_RESHUFFLED"

	// Choice events
	EventChoiceCreated  EventType = "CHOICE_CREATED"
	EventChoiceResolved EventType = "CHOICE_RESOLVED"

	// Snapshot events
	EventSnapshotCaptured EventType = "SNAPSHOT_CAPTURED"
	EventTurnReverted     EventType = "TURN_REVERTED"
)

// Event is a single engine event with its payload.
type Event struct {
	Type      EventType
	PlayerID  string
	Space     string
	CardID    string
	Amount    int
	Data      map[string]any
	Timestamp time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType) Event {
	return Event{
		Type:      eventType,
		Data:      make(map[string]any),
		Timestamp: time.Now(),
	}
}

// Listener receives all events published on the bus.
type Listener func(Event)

// TypedListener receives events of a single type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with
// type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, ok := bus.listeners[handle]; ok {
		delete(bus.listeners, handle)
		return
	}
	for eventType, listeners := range bus.typedListeners {
		for i, l := range listeners {
			if l.Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event synchronously to every matching listener.
// Listeners registered earlier are notified first.
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	handles := make([]int, 0, len(bus.listeners))
	for handle := range bus.listeners {
		handles = append(handles, handle)
	}
	// Stable order by handle.
	for i := 1; i < len(handles); i++ {
		for j := i; j > 0 && handles[j-1] > handles[j]; j-- {
			handles[j-1], handles[j] = handles[j], handles[j-1]
		}
	}
	all := make([]Listener, 0, len(handles))
	for _, h := range handles {
		all = append(all, bus.listeners[h])
	}
	typed := append([]TypedListener(nil), bus.typedListeners[event.Type]...)
	bus.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
	for _, l := range typed {
		l.Callback(event)
	}
}
