package firmata

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/pool"
)

// Close shuts the engine down and closes the transport. It is safe to call
// more than once; later calls return the result of the first.
//
// The reader loop is blocked in a read that cannot be canceled, so Close
// first asks the device to end it: it sends a sysex command the device does
// not implement and waits for the "unhandled" diagnostic, on which the
// reader loop exits by itself. If no acknowledgement arrives within the
// close timeout, the reader task is canceled and the transport closed under
// it.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.close()
	})

	return e.closeErr
}

func (e *Engine) close() error {
	prev, ok := e.state.ToShuttingDown()
	if !ok {
		// never started
		e.state.ToClosed()
		e.taskMgr.Stop()

		return e.closeTransport()
	}

	e.logger.Debug("firmata: start to close engine", "state", prev.String())
	e.shuttingDown.Store(true)

	// release a request blocked on the queue
	e.responses.Push(codec.Poison{})

	if e.running.Load() && !e.shutdownHandshake() {
		e.metrics.incForcedShutdowns()
		e.logger.Warn("firmata: device did not acknowledge shutdown, forcing reader loop down",
			"timeout", e.cfg.closeTimeout)
	}

	e.taskMgr.Stop()
	closeErr := e.closeTransport()

	if !e.taskMgr.Wait(e.cfg.closeTimeout) {
		e.logger.Error("firmata: reader loop did not exit", "timeout", e.cfg.closeTimeout)
		closeErr = errors.Join(closeErr, ErrCloseTimeout)
	}

	e.state.ToClosed()
	e.logger.Debug("firmata: engine closed")

	return closeErr
}

// shutdownHandshake sends the shutdown probe and reports whether the reader
// loop exited on the device's acknowledgement within the close timeout.
func (e *Engine) shutdownHandshake() bool {
	if err := e.write(codec.Sysex(e.cfg.shutdownProbe)); err != nil {
		e.logger.Debug("firmata: send shutdown probe failed", "error", err)
		return false
	}

	return pool.WaitClosed(e.readerDone, e.cfg.closeTimeout)
}

func (e *Engine) closeTransport() error {
	if err := e.transport.Close(); err != nil && !isClosedError(err) {
		return fmt.Errorf("firmata: close transport: %w", err)
	}

	return nil
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF)
}
