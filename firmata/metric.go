package firmata

import "sync/atomic"

// EngineMetrics contains atomic metrics of a protocol engine.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type EngineMetrics struct {
	// FramesSent indicates the number of frames written to the transport.
	FramesSent atomic.Uint64
	// FramesRecv indicates the number of complete frames read by the reader loop.
	FramesRecv atomic.Uint64
	// Notifications indicates the number of digital bank and analog channel
	// value reports and continuous I2C replies.
	Notifications atomic.Uint64
	// ListenerEvents indicates the number of events delivered to the listener.
	ListenerEvents atomic.Uint64
	// Diagnostics indicates the number of string diagnostics received.
	Diagnostics atomic.Uint64
	// DiscardedResponses indicates the number of queued responses dropped
	// because no request was waiting for them.
	DiscardedResponses atomic.Uint64
	// DecodeErrors indicates the number of malformed frames.
	DecodeErrors atomic.Uint64
	// UnknownSysex indicates the number of sysex frames with an unknown id.
	UnknownSysex atomic.Uint64
	// RequestsInflight indicates the number of synchronous requests in
	// progress, including those waiting for the request lock.
	RequestsInflight atomic.Int64
	// ForcedShutdowns indicates the number of closes that did not get the
	// device's shutdown acknowledgement in time.
	ForcedShutdowns atomic.Uint64
}

func (m *EngineMetrics) incFramesSent() {
	m.FramesSent.Add(1)
}

func (m *EngineMetrics) incFramesRecv() {
	m.FramesRecv.Add(1)
}

func (m *EngineMetrics) incNotifications() {
	m.Notifications.Add(1)
}

func (m *EngineMetrics) incListenerEvents() {
	m.ListenerEvents.Add(1)
}

func (m *EngineMetrics) incDiagnostics() {
	m.Diagnostics.Add(1)
}

func (m *EngineMetrics) incDiscardedResponses() {
	m.DiscardedResponses.Add(1)
}

func (m *EngineMetrics) incDecodeErrors() {
	m.DecodeErrors.Add(1)
}

func (m *EngineMetrics) incUnknownSysex() {
	m.UnknownSysex.Add(1)
}

func (m *EngineMetrics) incRequestsInflight() {
	m.RequestsInflight.Add(1)
}

func (m *EngineMetrics) decRequestsInflight() {
	m.RequestsInflight.Add(-1)
}

func (m *EngineMetrics) incForcedShutdowns() {
	m.ForcedShutdowns.Add(1)
}
