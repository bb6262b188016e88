package disk

import (
	"runtime"
	"sync/atomic"
)

// maxFilterThreads is the thread-id space the disk's filter lock is sized
// for.
const maxFilterThreads = 1000

// FilterLock is Peterson's N-thread filter lock. To acquire, a thread
// climbs levels 0..N-2: at each level it volunteers as the victim and waits
// until either no other thread sits at that level or above, or a newer
// victim replaces it. Mutual exclusion holds with overtaking bounded by
// N-1. Single CPU only; the spin relies on the other threads being
// scheduled onto the same processor.
type FilterLock struct {
	// level[tid] is the level thread tid currently occupies, -1 when
	// idle. victim[l] is the last thread to enter level l.
	level  []int32
	victim []int32
}

// NewFilterLock returns a filter lock for thread ids in [0, n).
func NewFilterLock(n int) *FilterLock {
	l := &FilterLock{
		level:  make([]int32, n),
		victim: make([]int32, n-1),
	}
	for i := range l.level {
		l.level[i] = -1
	}
	for i := range l.victim {
		l.victim[i] = -1
	}
	return l
}

// Acquire enters the critical section on behalf of thread tid.
func (l *FilterLock) Acquire(tid int) {
	for i := 0; i < len(l.victim); i++ {
		atomic.StoreInt32(&l.level[tid], int32(i))
		atomic.StoreInt32(&l.victim[i], int32(tid))

		for l.contendedAt(tid, int32(i)) &&
			atomic.LoadInt32(&l.victim[i]) == int32(tid) {
			runtime.Gosched()
		}
	}
}

// contendedAt reports whether some other thread occupies level i or above.
func (l *FilterLock) contendedAt(tid int, i int32) bool {
	for j := range l.level {
		if j == tid {
			continue
		}
		if atomic.LoadInt32(&l.level[j]) >= i {
			return true
		}
	}
	return false
}

// Release leaves the critical section.
func (l *FilterLock) Release(tid int) {
	atomic.StoreInt32(&l.level[tid], -1)
}
