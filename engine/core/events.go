package core

import "sync"

type EventCode uint16

// System internal event codes. Application should use codes beyond 255.
const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Mouse wheel. Data: *MouseEvent
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Resized/resolution changed from the OS. Data: *WindowResizedEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// A watched asset changed on disk. Data: *AssetChangedEvent
	EVENT_CODE_ASSET_CHANGED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

type WindowResizedEvent struct {
	Width  uint32
	Height uint32
}

type AssetChangedEvent struct {
	Name string
	Path string
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the calling goroutine. It is
// owned by the engine and passed to whoever needs to listen or fire.
type EventBus struct {
	mu         sync.RWMutex
	registered map[EventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]*registeredEvent),
	}
}

// Register listens for events with the given code. A listener can only be
// registered once per code; duplicates return false.
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends the event to listeners in registration order. If a handler
// returns true the event is considered handled and is not passed on.
func (b *EventBus) Fire(ctx EventContext) bool {
	b.mu.RLock()
	events := append([]*registeredEvent(nil), b.registered[ctx.Type]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(ctx) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	b.registered = make(map[EventCode][]*registeredEvent)
	b.mu.Unlock()
}
