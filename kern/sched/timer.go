package sched

import "github.com/kernkit/kernkit/kern/machine"

// eoiPort is the master PIC command port; writing eoiCommand acknowledges
// the interrupt before the quantum is handed on.
const (
	eoiPort    uint16 = 0x20
	eoiCommand uint8  = 0x20
)

// RoundRobin preempts at end of quantum: the timer handler puts the running
// thread back on the tail and yields. Its Yield additionally acknowledges
// the timer interrupt at the master PIC before delegating.
type RoundRobin struct {
	*Scheduler
}

// NewRoundRobin wraps a scheduler with the preemption-aware yield.
func NewRoundRobin(s *Scheduler) *RoundRobin {
	return &RoundRobin{Scheduler: s}
}

// Yield signals EOI to the master interrupt controller, then performs the
// base yield.
func (r *RoundRobin) Yield() {
	r.m.OutPortB(eoiPort, eoiCommand)
	r.Scheduler.Yield()
}

// EOQTimer is the end-of-quantum timer: its interrupt handler resumes the
// running thread at the tail of the ready queue and yields, producing
// round-robin preemption at the configured tick rate.
type EOQTimer struct {
	hz int
	s  Yielder
}

// NewEOQTimer returns a timer ticking hz times per simulated second on
// behalf of scheduler s.
func NewEOQTimer(hz int, s Yielder) *EOQTimer {
	return &EOQTimer{hz: hz, s: s}
}

// HZ returns the configured tick rate.
func (t *EOQTimer) HZ() int { return t.hz }

// HandleInterrupt is the tick ISR: the time quantum has passed, so the
// current thread goes back to the tail and the next one runs.
func (t *EOQTimer) HandleInterrupt(_ *machine.Regs) {
	t.s.Resume(t.s.Current())
	t.s.Yield()
}
