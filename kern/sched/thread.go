package sched

// Thread is a cooperatively scheduled kernel thread. Each thread runs on
// its own goroutine but strict handoff guarantees exactly one runs at a
// time: dispatching wakes the target and parks the caller.
type Thread struct {
	id int

	// resume carries the single-CPU baton. A thread parks by receiving
	// on its own channel and runs again when someone sends to it.
	resume chan struct{}

	exited bool
}

// ThreadID returns the thread's identifier.
func (t *Thread) ThreadID() int { return t.id }

// NewThread creates a thread that will execute fn when first dispatched to.
// When fn returns, the scheduler moves on: the next ready thread runs, or
// control falls back to the boot context when nothing is ready.
func (s *Scheduler) NewThread(id int, fn func()) *Thread {
	t := &Thread{id: id, resume: make(chan struct{})}
	go func() {
		<-t.resume
		fn()
		s.exit(t)
	}()
	return t
}

// dispatchTo hands the CPU from the current thread to next and parks the
// caller until the baton comes back. Dispatching to the running thread is a
// no-op.
func (s *Scheduler) dispatchTo(next *Thread) {
	prev := s.current
	if prev == next {
		return
	}
	s.current = next
	next.resume <- struct{}{}
	<-prev.resume
}

// exit retires the current thread: it is dropped from the ready queue, the
// next ready thread (or the boot context) takes over, and the goroutine
// returns without ever parking again.
func (s *Scheduler) exit(t *Thread) {
	s.m.DisableInterrupts()
	t.exited = true
	s.ready.RemoveByID(t.id)

	if s.disk != nil && s.disk.IsThreadReady() {
		if w := s.disk.ScheduleBlockedThread(); w != nil {
			s.ready.Enqueue(w)
		}
	}

	next := s.ready.Dequeue()
	if next == nil {
		next = s.boot
	}
	s.current = next
	s.m.EnableInterrupts()
	next.resume <- struct{}{}
}
