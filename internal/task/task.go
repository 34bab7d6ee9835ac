// Package task runs the engine's background goroutines with cancellation,
// panic recovery and termination tracking.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-firmata/internal/pool"
	"github.com/arloliu/go-firmata/logger"
)

// ErrStopped is returned when starting a task on a stopped manager.
var ErrStopped = errors.New("task: manager already stopped")

// LoopFunc is one iteration of a task loop. It returns false to end the loop.
type LoopFunc func(ctx context.Context) bool

// ExitFunc is called once when a task goroutine exits, whether by returning
// false, by cancellation or by panic.
type ExitFunc func()

// Manager manages the lifecycle of background goroutines.
//
// Stop cancels the context passed to every LoopFunc; loops blocked outside of
// the context (for example in a read without deadline) must be released by
// other means, such as closing the underlying stream.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("reader", func(ctx context.Context) bool {
//	    return readOne(ctx) == nil
//	}, nil)
//
//	mgr.Stop()
//	mgr.Wait(time.Second)
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.Mutex // serializes Start against Wait
}

// NewManager creates a manager whose tasks are canceled with ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Start runs loop repeatedly in a new goroutine until it returns false or the
// manager is stopped. onExit, if not nil, runs when the goroutine exits.
// Start returns once the goroutine is running.
func (mgr *Manager) Start(name string, loop LoopFunc, onExit ExitFunc) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		return fmt.Errorf("start %s: %w", name, ErrStopped)
	}

	mgr.logger.Debug("firmata: start task", "name", name)

	started := make(chan struct{})
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer mgr.wg.Done()
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("firmata: task terminated", "name", name, "taskCount", mgr.Count())
		}()
		if onExit != nil {
			defer mgr.CallWithRecover(name+" exit", onExit)
		}

		close(started)
		mgr.runLoop(name, loop)
	}()

	<-started

	return nil
}

// runLoop runs loop with context cancellation and panic recovery.
func (mgr *Manager) runLoop(name string, loop LoopFunc) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("firmata: panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-mgr.ctx.Done():
			return
		default:
			if !loop(mgr.ctx) {
				return
			}
		}
	}
}

// CallWithRecover calls fn, logging instead of propagating a panic.
// It reports whether fn returned normally.
func (mgr *Manager) CallWithRecover(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("firmata: panic recovered", "name", name, "panic", r)
			ok = false
		}
	}()

	fn()

	return true
}

// Stop cancels the context of every running task.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Stopped reports whether Stop has been called or the parent context is done.
func (mgr *Manager) Stopped() bool {
	return mgr.ctx.Err() != nil
}

// Wait waits for every task goroutine to exit. A non-positive timeout waits
// forever. It reports whether all tasks exited in time.
func (mgr *Manager) Wait(timeout time.Duration) bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()

	return pool.WaitClosed(done, timeout)
}

// Count returns the number of running task goroutines.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
