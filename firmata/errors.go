package firmata

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-firmata/codec"
)

// Sentinel errors of the protocol engine.
var (
	ErrConfigNil       = errors.New("firmata: engine config is nil")
	ErrTransportNil    = errors.New("firmata: transport is nil")
	ErrAlreadyStarted  = errors.New("firmata: engine already started")
	ErrNotStarted      = errors.New("firmata: engine not started")
	ErrEngineClosed    = errors.New("firmata: engine closed")
	ErrNotRunning      = errors.New("firmata: reader loop not running")
	ErrResponseTimeout = errors.New("firmata: response timeout")
	ErrCloseTimeout    = errors.New("firmata: close timeout")

	ErrUnknownPin       = errors.New("firmata: unknown pin")
	ErrUnknownChannel   = errors.New("firmata: unknown analog channel")
	ErrUnsupportedMode  = errors.New("firmata: pin does not support mode")
	ErrTaskIDsExhausted = errors.New("firmata: no free scheduler task id")
	ErrContinuousRead   = errors.New("firmata: continuous i2c read needs a reply handler")
)

// ProtocolError reports that the device rejected a request, typically with
// its "unhandled sysex" diagnostic.
type ProtocolError struct {
	Request string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("firmata: device rejected %s: %s", e.Request, e.Message)
}

// SchedulerError reports a scheduler error reply. Task carries what the
// device knew about the failing task.
type SchedulerError struct {
	Task codec.SchedulerTaskDetail
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("firmata: scheduler error on task %d (time=%d length=%d position=%d)",
		e.Task.TaskID, e.Task.Time, e.Task.Length, e.Task.Position)
}
