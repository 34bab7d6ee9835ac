package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTimer(t *testing.T) {
	t.Run("fires after duration", func(t *testing.T) {
		begin := time.Now()
		timer := GetTimer(50 * time.Millisecond)
		<-timer.C
		assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
		PutTimer(timer)
	})

	t.Run("reused timer does not fire early", func(t *testing.T) {
		// an active timer goes back to the pool
		timer1 := GetTimer(10 * time.Millisecond)
		PutTimer(timer1)
		time.Sleep(20 * time.Millisecond)

		begin := time.Now()
		timer2 := GetTimer(100 * time.Millisecond)
		<-timer2.C
		assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)
		PutTimer(timer2)
	})

	t.Run("expired timer is drained", func(t *testing.T) {
		timer1 := GetTimer(time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		PutTimer(timer1)

		timer2 := GetTimer(200 * time.Millisecond)
		defer PutTimer(timer2)

		select {
		case <-timer2.C:
			t.Error("timer fired with a stale tick")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestWaitClosed(t *testing.T) {
	require := require.New(t)

	ch := make(chan struct{})
	require.False(WaitClosed(ch, 20*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(ch)
	}()
	require.True(WaitClosed(ch, time.Second))
	require.True(WaitClosed(ch, 0))
}
