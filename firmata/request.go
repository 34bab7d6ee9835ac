package firmata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/queue"
)

// expectation describes the response that answers a request: its kind and,
// optionally, a check of its content.
type expectation struct {
	kind   codec.Kind
	accept func(codec.Response) bool
}

func kindIs(kind codec.Kind) expectation {
	return expectation{kind: kind}
}

func (x expectation) matches(r codec.Response) bool {
	if r.Kind() != x.kind {
		return false
	}

	return x.accept == nil || x.accept(r)
}

func (x expectation) isScheduler() bool {
	return x.kind == codec.KindSchedulerAllTasks || x.kind == codec.KindSchedulerTaskDetail
}

// request writes frame and waits for the first queued response that meets
// want.
//
// Diagnostic strings received meanwhile are logged and skipped, except the
// device's unsupported request diagnostic, which fails the request with a
// *ProtocolError. A scheduler error reply fails scheduler queries with a
// *SchedulerError. Poison, queued by Close, yields ErrEngineClosed.
func (e *Engine) request(ctx context.Context, name string, frame []byte, want expectation) (codec.Response, error) {
	if err := e.checkUsable(); err != nil {
		return nil, err
	}

	e.metrics.incRequestsInflight()
	defer e.metrics.decRequestsInflight()

	e.requestMu.Lock()
	defer e.requestMu.Unlock()

	// the lock may have been held by a request that ended with Close
	if err := e.checkUsable(); err != nil {
		return nil, err
	}

	e.discardStaleResponses(name)

	if err := e.write(frame); err != nil {
		return nil, err
	}

	return e.awaitResponse(ctx, name, want)
}

func (e *Engine) awaitResponse(ctx context.Context, name string, want expectation) (codec.Response, error) {
	for {
		resp, err := e.responses.Pop(ctx, e.readerDone, e.cfg.responseTimeout)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrProducerDone):
				if e.shuttingDown.Load() {
					return nil, ErrEngineClosed
				}

				return nil, fmt.Errorf("%w: %s aborted", ErrNotRunning, name)
			case errors.Is(err, queue.ErrTimeout):
				return nil, fmt.Errorf("%w: %s after %v", ErrResponseTimeout, name, e.cfg.responseTimeout)
			default:
				return nil, err
			}
		}

		switch r := resp.(type) {
		case codec.Poison:
			return nil, ErrEngineClosed

		case codec.StringDiagnostic:
			if e.isUnsupported(r.Text) {
				return nil, &ProtocolError{Request: name, Message: r.Text}
			}
			e.logger.Info("firmata: device message", "request", name, "text", r.Text)

			continue

		case codec.SchedulerTaskDetail:
			if r.Error && want.isScheduler() {
				return nil, &SchedulerError{Task: r}
			}
		}

		if want.matches(resp) {
			return resp, nil
		}

		e.metrics.incDiscardedResponses()
		e.logger.Warn("firmata: discarded unexpected response", "request", name, "kind", resp.Kind().String())
	}
}

// discardStaleResponses drops responses that arrived while no request was
// waiting, for example the late reply to a canceled request.
func (e *Engine) discardStaleResponses(name string) {
	for _, resp := range e.responses.Drain() {
		switch r := resp.(type) {
		case codec.StringDiagnostic:
			e.logger.Info("firmata: device message", "text", r.Text)
		case codec.Poison:
			// Close queues one for every waiter; none is waiting now
		case codec.SchedulerTaskDetail:
			if r.Error {
				e.logger.Warn("firmata: scheduler error reply", "taskID", r.TaskID,
					"time", r.Time, "length", r.Length, "position", r.Position)
			}
		default:
			e.metrics.incDiscardedResponses()
			e.logger.Warn("firmata: discarded stale response", "request", name, "kind", resp.Kind().String())
		}
	}
}

func (e *Engine) isUnsupported(text string) bool {
	return strings.HasPrefix(text, e.cfg.unsupportedText)
}
