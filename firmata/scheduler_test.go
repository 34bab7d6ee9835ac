package firmata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/firmatatest"
)

func TestEngine_CreateTaskWithPayload(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	first := []byte{0xF4, 0x0D, 0x01}
	second := []byte{0xF5, 0x0D, 0x01}

	id, err := e.CreateTaskWithPayload(testContext(t), first, second)
	require.NoError(err)
	require.Equal(0, id)
	require.Equal([]int{0}, e.TaskIDsInUse())

	create, err := codec.CreateTask(0, len(first)+len(second))
	require.NoError(err)
	addFirst, err := codec.AddToTask(0, first)
	require.NoError(err)
	addSecond, err := codec.AddToTask(0, second)
	require.NoError(err)

	require.Eventually(func() bool {
		payload, ok := board.TaskPayload(0)
		return ok && len(payload) == len(first)+len(second)
	}, testTimeout, 5*time.Millisecond)

	frames := board.SysexFrames(codec.SysexScheduler)
	require.Equal([][]byte{codec.QueryAllTasks(), create, addFirst, addSecond}, frames)

	payload, _ := board.TaskPayload(0)
	require.Equal(append(append([]byte{}, first...), second...), payload)

	detail, err := e.QueryTask(testContext(t), 0)
	require.NoError(err)
	require.True(detail.Exists)
	require.Equal(0, detail.TaskID)
	require.Equal(len(payload), detail.Length)
	require.Equal(payload, detail.Payload)
}

func TestEngine_CreateTaskSkipsDeviceIDs(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	board.AddTask(0, []byte{0x01})
	board.AddTask(1, []byte{0x02})
	e := startTestEngine(t, board.Device)

	id, err := e.CreateTaskWithPayload(testContext(t), []byte{0x03})
	require.NoError(err)
	require.Equal(2, id)
	require.Equal([]int{0, 1, 2}, e.TaskIDsInUse())
}

func TestEngine_CreateTaskIDsExhausted(t *testing.T) {
	board := firmatatest.NewBoard(t)
	for id := 0; id <= codec.MaxTaskID; id++ {
		board.AddTask(id, nil)
	}
	e := startTestEngine(t, board.Device)

	_, err := e.CreateTaskWithPayload(testContext(t), []byte{0x01})
	require.ErrorIs(t, err, ErrTaskIDsExhausted)
}

func TestEngine_CreateTaskTooLong(t *testing.T) {
	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	_, err := e.CreateTaskWithPayload(testContext(t), make([]byte, codec.MaxValue14+1))
	require.ErrorIs(t, err, codec.ErrValueOutOfRange)
	require.Empty(t, e.TaskIDsInUse())
}

func TestEngine_QueryTaskUnknown(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.CreateTask(7, 4))
	require.Equal([]int{7}, e.TaskIDsInUse())
	require.NoError(e.DeleteTask(7))
	require.Empty(e.TaskIDsInUse())

	detail, err := e.QueryTask(testContext(t), 7)
	require.NoError(err)
	require.False(detail.Exists)
	require.Equal(7, detail.TaskID)
}

func TestEngine_QueryAllTasksReplacesCache(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.CreateTask(5, 1))
	board.AddTask(9, nil)

	require.Eventually(func() bool {
		return len(board.Tasks()) == 2
	}, testTimeout, 5*time.Millisecond)
	require.NoError(e.DeleteTask(5))
	require.Eventually(func() bool {
		return len(board.Tasks()) == 1
	}, testTimeout, 5*time.Millisecond)

	ids, err := e.QueryAllTasks(testContext(t))
	require.NoError(err)
	require.Equal([]int{9}, ids)
	require.Equal([]int{9}, e.TaskIDsInUse())

	require.NoError(e.ResetScheduler())
	require.Empty(e.TaskIDsInUse())
	require.Eventually(func() bool { return len(board.Tasks()) == 0 }, testTimeout, 5*time.Millisecond)
}

func TestEngine_SchedulerError(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	board.OnSysex(codec.SysexScheduler, func(d *firmatatest.Device, _ []byte) {
		_ = d.SendSysex(codec.SysexScheduler,
			firmatatest.TaskReply(codec.SchedulerErrorReply, 3, 1000, 10, 4, []byte{0x01})...)
	})

	_, err := e.QueryAllTasks(testContext(t))

	var serr *SchedulerError
	require.ErrorAs(err, &serr)
	require.Equal(3, serr.Task.TaskID)
	require.Equal(uint32(1000), serr.Task.Time)
	require.Equal(10, serr.Task.Length)
	require.Equal(4, serr.Task.Position)

	_, err = e.CreateTaskWithPayload(testContext(t), []byte{0x01})
	require.ErrorAs(err, &serr)
}

func TestEngine_ScheduleTask(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.ScheduleTask(2, 1500*time.Millisecond))
	frame, err := codec.ScheduleTask(2, 1500)
	require.NoError(err)

	require.NoError(e.DelayTask(time.Second))
	require.Eventually(func() bool {
		return board.HasFrame(frame) && board.HasFrame(codec.DelayTask(1000))
	}, testTimeout, 5*time.Millisecond)

	require.ErrorIs(e.ScheduleTask(2, -time.Second), codec.ErrValueOutOfRange)
	require.ErrorIs(e.ScheduleTask(codec.MaxTaskID+1, time.Second), codec.ErrValueOutOfRange)
}
