package firmata

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/arloliu/go-firmata/codec"
)

// CreateTask reserves a task buffer of length bytes under id on the device.
func (e *Engine) CreateTask(id, length int) error {
	frame, err := codec.CreateTask(id, length)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	e.tasks.Store(id, struct{}{})

	return nil
}

// AddToTask appends payload to the buffer of task id.
func (e *Engine) AddToTask(id int, payload []byte) error {
	frame, err := codec.AddToTask(id, payload)
	if err != nil {
		return err
	}

	return e.send(frame)
}

// CreateTaskWithPayload creates a task holding the concatenation of chunks
// and returns its id.
//
// It refreshes the id cache from the device, takes the lowest id not in use
// and sends one create frame followed by one add frame per chunk. Another
// host talking to the same device can claim the id between the query and
// the create; the protocol offers no way to close that window.
func (e *Engine) CreateTaskWithPayload(ctx context.Context, chunks ...[]byte) (int, error) {
	if _, err := e.QueryAllTasks(ctx); err != nil {
		return 0, err
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total > codec.MaxValue14 {
		return 0, fmt.Errorf("%w: task length %d", codec.ErrValueOutOfRange, total)
	}

	id, err := e.leaseTaskID()
	if err != nil {
		return 0, err
	}

	if err := e.CreateTask(id, total); err != nil {
		e.tasks.Delete(id)
		return 0, err
	}
	for _, c := range chunks {
		if err := e.AddToTask(id, c); err != nil {
			return id, err
		}
	}

	e.logger.Debug("firmata: task created", "taskID", id, "length", total, "chunks", len(chunks))

	return id, nil
}

// leaseTaskID marks the lowest free id as in use and returns it.
func (e *Engine) leaseTaskID() (int, error) {
	for id := 0; id <= codec.MaxTaskID; id++ {
		if _, loaded := e.tasks.LoadOrStore(id, struct{}{}); !loaded {
			return id, nil
		}
	}

	return 0, ErrTaskIDsExhausted
}

// ScheduleTask runs task id after delay, with millisecond resolution.
func (e *Engine) ScheduleTask(id int, delay time.Duration) error {
	ms, err := taskMillis(delay)
	if err != nil {
		return err
	}

	frame, err := codec.ScheduleTask(id, ms)
	if err != nil {
		return err
	}

	return e.send(frame)
}

// DelayTask sends a delay instruction. The device applies it to the task
// that is currently running, so it is mostly useful inside task payloads
// built with [codec.DelayTask].
func (e *Engine) DelayTask(delay time.Duration) error {
	ms, err := taskMillis(delay)
	if err != nil {
		return err
	}

	return e.send(codec.DelayTask(ms))
}

// DeleteTask removes task id from the device and releases the id.
func (e *Engine) DeleteTask(id int) error {
	frame, err := codec.DeleteTask(id)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	e.tasks.Delete(id)

	return nil
}

// QueryAllTasks asks the device for the ids of its tasks and replaces the
// id cache with the answer.
func (e *Engine) QueryAllTasks(ctx context.Context) ([]int, error) {
	resp, err := e.request(ctx, "query all tasks", codec.QueryAllTasks(), kindIs(codec.KindSchedulerAllTasks))
	if err != nil {
		return nil, err
	}

	ids := resp.(codec.SchedulerAllTasks).TaskIDs
	e.tasks.Clear()
	for _, id := range ids {
		e.tasks.Store(id, struct{}{})
	}

	return ids, nil
}

// QueryTask asks the device for the details of task id. A task the device
// does not know is returned with Exists unset and its id released.
func (e *Engine) QueryTask(ctx context.Context, id int) (codec.SchedulerTaskDetail, error) {
	frame, err := codec.QueryTask(id)
	if err != nil {
		return codec.SchedulerTaskDetail{}, err
	}

	want := expectation{
		kind:   codec.KindSchedulerTaskDetail,
		accept: func(r codec.Response) bool { return r.(codec.SchedulerTaskDetail).TaskID == id },
	}
	resp, err := e.request(ctx, "query task", frame, want)
	if err != nil {
		return codec.SchedulerTaskDetail{}, err
	}

	detail := resp.(codec.SchedulerTaskDetail)
	if detail.Exists {
		e.tasks.Store(id, struct{}{})
	} else {
		e.tasks.Delete(id)
	}

	return detail, nil
}

// ResetScheduler deletes every task on the device.
func (e *Engine) ResetScheduler() error {
	if err := e.send(codec.ResetScheduler()); err != nil {
		return err
	}
	e.tasks.Clear()

	return nil
}

func taskMillis(d time.Duration) (uint32, error) {
	ms := d.Milliseconds()
	if ms < 0 || ms > math.MaxUint32 {
		return 0, fmt.Errorf("%w: task delay %v", codec.ErrValueOutOfRange, d)
	}

	return uint32(ms), nil
}
