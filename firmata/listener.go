package firmata

import "github.com/arloliu/go-firmata/codec"

// Event is an unsolicited value change of a pin.
type Event struct {
	// Kind tells whether the value came from a digital bank or an analog
	// channel report.
	Kind codec.PortKind
	// Pin is the pin index. Analog reports are mapped from their channel to
	// the pin through the analog mapping.
	Pin   int
	Value int
	// EpochMillis is the wall clock time of reception in Unix milliseconds.
	EpochMillis int64
	// MonoNanos is a monotonic timestamp in nanoseconds since the engine was
	// created, suitable for computing intervals between events.
	MonoNanos int64
}

// EventListener receives value notifications.
//
// OnEvent runs on the engine's reader goroutine, in wire order. It must not
// block for long and must not issue synchronous engine requests, which
// would wait for a response only the reader goroutine can deliver.
type EventListener interface {
	OnEvent(Event)
}

// EventListenerFunc adapts a function to an EventListener.
type EventListenerFunc func(Event)

func (f EventListenerFunc) OnEvent(e Event) { f(e) }

// listenerBox lets an interface value live in an atomic.Pointer.
type listenerBox struct {
	l EventListener
}
