package disk

import "github.com/kernkit/kernkit/kern/sched"

// NonBlockingDisk waits for device readiness by parking the calling thread
// on an I/O-blocked queue and yielding, instead of spinning on status. The
// scheduler moves parked threads back to the ready queue as the device
// becomes ready, one per yield.
type NonBlockingDisk struct {
	*SimpleDisk

	s         *sched.Scheduler
	ioBlocked *sched.Queue
	lock      *FilterLock
}

// NewNonBlockingDisk wraps a controller and hooks the disk into the
// scheduler's yield path.
func NewNonBlockingDisk(ctl *IDEController, size uint32, s *sched.Scheduler) *NonBlockingDisk {
	d := &NonBlockingDisk{
		SimpleDisk: NewSimpleDisk(ctl, size),
		s:          s,
		ioBlocked:  sched.NewQueue(),
		lock:       NewFilterLock(maxFilterThreads),
	}
	s.SetDiskHook(d)
	return d
}

// IsThreadReady reports that the device has data to move and a thread is
// parked waiting for it. The scheduler checks this on every yield.
func (d *NonBlockingDisk) IsThreadReady() bool {
	return d.ioBlocked.Size() > 0 && d.ctl.IsReady()
}

// ScheduleBlockedThread pops one thread off the I/O-blocked queue.
func (d *NonBlockingDisk) ScheduleBlockedThread() *sched.Thread {
	return d.ioBlocked.Dequeue()
}

// BlockedCount returns how many threads are parked on the I/O queue.
func (d *NonBlockingDisk) BlockedCount() int {
	return d.ioBlocked.Size()
}

// waitUntilReady parks the calling thread until the scheduler has observed
// disk readiness and moved it back to the ready queue. When the thread is
// alone, yield returns immediately and the loop degrades to polling.
func (d *NonBlockingDisk) waitUntilReady() {
	cur := d.s.Current()
	d.ioBlocked.Enqueue(cur)
	for d.ioBlocked.Contains(cur.ThreadID()) {
		d.s.Yield()
	}
}

// Read issues the read, parks until the block is ready, then performs the
// 256 data transfers. The command and data port phases are serialized
// across threads by the filter lock.
func (d *NonBlockingDisk) Read(blockNo uint32, buf []byte) {
	tid := d.s.Current().ThreadID()

	d.lock.Acquire(tid)
	d.ctl.IssueCommand(OpRead, blockNo)
	d.lock.Release(tid)

	d.waitUntilReady()

	d.lock.Acquire(tid)
	d.ctl.TransferIn(buf)
	d.lock.Release(tid)
}

// Write issues the write, parks until the device accepts data, then streams
// the block and flushes the device cache.
func (d *NonBlockingDisk) Write(blockNo uint32, buf []byte) {
	tid := d.s.Current().ThreadID()

	d.lock.Acquire(tid)
	d.ctl.IssueCommand(OpWrite, blockNo)
	d.lock.Release(tid)

	d.waitUntilReady()

	d.lock.Acquire(tid)
	d.ctl.TransferOut(buf)
	d.ctl.FlushCache()
	d.ctl.Poll(false)
	d.lock.Release(tid)
}
