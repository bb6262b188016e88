// Package sched implements cooperative FIFO multitasking with one global
// ready queue, plus a round-robin variant driven by an end-of-quantum timer.
//
// Threads are goroutine-backed coroutines with strict handoff, so the model
// stays single-CPU: a dispatch wakes the target and parks the caller. The
// boot context (whatever called sched.New) is itself a thread; when the last
// ready thread retires, control falls back to it, which is what lets tests
// and the CLI drive a workload to completion.
package sched

import (
	"github.com/kernkit/kernkit/kern/machine"
)

// DiskHook is the scheduler's view of the non-blocking disk: every yield
// drains at most one ready I/O waiter back into the ready queue before
// selecting. Satisfied by disk.NonBlockingDisk.
type DiskHook interface {
	// IsThreadReady reports device-ready and a non-empty I/O queue.
	IsThreadReady() bool

	// ScheduleBlockedThread pops one parked thread from the I/O queue.
	ScheduleBlockedThread() *Thread
}

// Yielder is the scheduler surface the end-of-quantum timer needs.
type Yielder interface {
	Resume(t *Thread)
	Yield()
	Current() *Thread
}

// Scheduler owns the ready queue and the running thread.
type Scheduler struct {
	m     *machine.Machine
	ready *Queue

	// boot stands for the context that created the scheduler; it regains
	// the CPU when the ready queue drains.
	boot    *Thread
	current *Thread

	disk DiskHook
}

// New creates a scheduler whose boot context is the calling goroutine.
func New(m *machine.Machine) *Scheduler {
	boot := &Thread{id: 0, resume: make(chan struct{})}
	s := &Scheduler{
		m:       m,
		ready:   NewQueue(),
		boot:    boot,
		current: boot,
	}
	m.Logger().Info("constructed scheduler")
	return s
}

// Current returns the running thread.
func (s *Scheduler) Current() *Thread { return s.current }

// ReadyCount returns the length of the ready queue.
func (s *Scheduler) ReadyCount() int { return s.ready.Size() }

// SetDiskHook wires the non-blocking disk into yield's readiness check.
func (s *Scheduler) SetDiskHook(d DiskHook) { s.disk = d }

// Yield gives up the CPU. With interrupts off it first moves one ready I/O
// waiter (if any) onto the ready queue, then dispatches to the head of the
// ready queue. When nothing is ready the caller simply keeps the CPU.
func (s *Scheduler) Yield() {
	if s.m.InterruptsEnabled() {
		s.m.DisableInterrupts()
	}

	if s.disk != nil && s.disk.IsThreadReady() {
		if t := s.disk.ScheduleBlockedThread(); t != nil {
			s.ready.Enqueue(t)
		}
	}

	next := s.ready.Dequeue()
	if next == nil {
		s.m.EnableInterrupts()
		return
	}

	s.m.EnableInterrupts()
	s.dispatchTo(next)
}

// Resume makes t runnable again, at the tail.
func (s *Scheduler) Resume(t *Thread) {
	s.Add(t)
}

// Add appends t to the ready queue with interrupts off.
func (s *Scheduler) Add(t *Thread) {
	if s.m.InterruptsEnabled() {
		s.m.DisableInterrupts()
	}
	s.ready.Enqueue(t)
	s.m.EnableInterrupts()
}

// Terminate removes every queued occurrence of t by thread id. The thread
// itself retires when its function returns.
func (s *Scheduler) Terminate(t *Thread) {
	if s.m.InterruptsEnabled() {
		s.m.DisableInterrupts()
	}
	s.ready.RemoveByID(t.id)
	s.m.EnableInterrupts()
}
