// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"context"
	"fmt"

	"zombiezen.com/go/log"
)

// coroutineStatus mirrors the four states `coroutine.status` reports,
// per §3.6.1 of the Lua manual: a coroutine is suspended before its
// first resume and after every yield, running while it holds the
// processor, normal while it has resumed another coroutine and is
// waiting on it, and dead once its body returns or errors.
type coroutineStatus int

const (
	coroutineSuspended coroutineStatus = iota
	coroutineRunning
	coroutineNormal
	coroutineDead
)

func (st coroutineStatus) String() string {
	switch st {
	case coroutineSuspended:
		return "suspended"
	case coroutineRunning:
		return "running"
	case coroutineNormal:
		return "normal"
	case coroutineDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Coroutine is a Lua thread. Go has no first-class continuations, so
// each Coroutine is backed by its own goroutine; resumeCh/yieldCh hand
// control back and forth so that exactly one of the coroutine's
// goroutine and its resumer ever runs at a time, keeping Lua's
// single-threaded cooperative semantics despite the OS-thread
// parallelism goroutines nominally allow.
type Coroutine struct {
	status coroutineStatus
	state  *State
	fn     *Function

	resumeCh chan []Value
	yieldCh  chan coroutineMessage

	started bool
	resumer *Coroutine
}

type coroutineMessage struct {
	values []Value
	err    error
	done   bool
}

// NewCoroutine wraps fn as a new suspended coroutine, per
// `coroutine.create`.
func (s *State) NewCoroutine(fn *Function) *Coroutine {
	return &Coroutine{
		status:   coroutineSuspended,
		state:    s,
		fn:       fn,
		resumeCh: make(chan []Value),
		yieldCh:  make(chan coroutineMessage),
	}
}

// Status reports co's current status as last recorded by [State.Resume].
func (co *Coroutine) Status() coroutineStatus {
	return co.status
}

// Resume transfers control to co, passing it args (as the results of
// its pending `coroutine.yield` call, or as its arguments on first
// resume) and blocking until co yields, returns, or errors.
func (s *State) Resume(co *Coroutine, args []Value) (results []Value, yielded bool, err error) {
	if co.status == coroutineDead {
		return nil, false, newRuntimeError("cannot resume dead coroutine")
	}
	if co.status != coroutineSuspended {
		return nil, false, newRuntimeError("cannot resume non-suspended coroutine")
	}

	co.resumer = s.current
	co.resumer.status = coroutineNormal
	co.status = coroutineRunning
	s.current = co

	if !co.started {
		co.started = true
		go co.run(s, args)
	} else {
		co.resumeCh <- args
	}

	msg := <-co.yieldCh
	s.current = co.resumer
	s.current.status = coroutineRunning
	if msg.done {
		co.status = coroutineDead
	} else {
		co.status = coroutineSuspended
	}
	if msg.err != nil {
		return nil, false, msg.err
	}
	return msg.values, !msg.done, nil
}

// run is the coroutine's goroutine body: it executes fn to completion
// on a State scoped to this coroutine, then reports its outcome on
// yieldCh exactly once.
//
// It acquires s.runGate before touching shared state (the global
// table, metatables) and holds it for its entire run, since the
// resumeCh/yieldCh handoff already serializes execution one coroutine
// at a time — the semaphore makes that invariant explicit and would
// catch a future bug that let two coroutines race past the channel
// handshake.
func (co *Coroutine) run(s *State, args []Value) {
	ctx := context.Background()
	if err := s.runGate.Acquire(ctx, 1); err != nil {
		co.yieldCh <- coroutineMessage{err: err, done: true}
		return
	}
	defer s.runGate.Release(1)

	coState := &State{
		Globals:    s.Globals,
		stringMeta: s.stringMeta,
		current:    co,
		main:       s.main,
		runGate:    s.runGate,
	}
	results, err := coState.Call(co.fn, args)
	if err != nil {
		log.Debugf(ctx, "coroutine %p exited with error: %v", co, err)
	}
	co.yieldCh <- coroutineMessage{values: results, err: err, done: true}
}

// Yield suspends the currently-running coroutine on s, handing values
// back to its resumer, and blocks until the next Resume call supplies
// fresh arguments.
func (s *State) Yield(values []Value) ([]Value, error) {
	co := s.current
	if co == nil || co == s.main {
		return nil, newRuntimeError("attempt to yield from outside a coroutine")
	}
	co.yieldCh <- coroutineMessage{values: values}
	return <-co.resumeCh, nil
}

// IsYieldable reports whether s is currently executing inside a
// coroutine (as opposed to the main thread), per `coroutine.isyieldable`.
func (s *State) IsYieldable() bool {
	return s.current != nil && s.current != s.main
}

// Running returns the coroutine currently executing on s, and whether
// it is the main thread.
func (s *State) Running() (*Coroutine, bool) {
	return s.current, s.current == s.main
}

func (co *Coroutine) String() string {
	return fmt.Sprintf("thread: %p", co)
}
