package system

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernkit/kernkit/kern/fs"
	"github.com/kernkit/kernkit/kern/vm"
)

func TestBootLayout(t *testing.T) {
	s := Boot(Config{})

	kernelFree, processFree := s.FreeFrames()
	// Kernel pool: 512 frames minus its bitmap minus the page directory.
	assert.Equal(t, uint32(510), kernelFree)
	// Process pool: 1024 frames minus its bitmap minus the first page
	// table.
	assert.Equal(t, uint32(1022), processFree)
	assert.True(t, s.Paging.Enabled())
}

// TestVirtualMemoryWorkload exercises the whole memory stack: a vm pool on
// top of paging on top of the frame pools, with lazy backing and release.
func TestVirtualMemoryWorkload(t *testing.T) {
	s := Boot(Config{})
	pool := vm.NewPool(s.M, 0x40000000, 1<<20, s.ProcessPool, s.PageTable)

	region := pool.Allocate(128 * 1024)
	require.NotZero(t, region)

	// Touch every page, then verify contents.
	for off := uint32(0); off < 128*1024; off += PageSize() {
		s.M.WriteWord(region+off, off)
	}
	for off := uint32(0); off < 128*1024; off += PageSize() {
		require.Equal(t, off, s.M.ReadWord(region+off))
	}

	_, before := s.FreeFrames()
	pool.Release(region)
	_, after := s.FreeFrames()
	assert.Equal(t, before+32, after, "all 32 backing frames returned")
}

// TestThreadedFileWorkload runs the canonical boot demo: several threads
// each create a file over the non-blocking disk and write and verify their
// own data, cooperating through the scheduler.
func TestThreadedFileWorkload(t *testing.T) {
	s := Boot(Config{})
	require.NoError(t, fs.Format(s.Disk, "SYSTEM"))
	vol, err := fs.Mount(s.Disk)
	require.NoError(t, err)

	results := make(map[int32]string)
	for i := int32(1); i <= 3; i++ {
		id := i
		s.Scheduler.Add(s.Scheduler.NewThread(int(id), func() {
			// assert, not require: a FailNow inside a thread goroutine
			// would kill the coroutine mid-handoff.
			if !assert.NoError(t, vol.CreateFile(id, fmt.Sprintf("worker-%d", id))) {
				return
			}
			f, err := fs.Open(vol, id)
			if !assert.NoError(t, err) {
				return
			}

			payload := fmt.Sprintf("thread %d was here", id)
			f.Write([]byte(payload))

			f.Reset()
			buf := make([]byte, len(payload))
			f.Read(buf)
			results[id] = string(buf)
		}))
	}
	s.Run()

	for i := int32(1); i <= 3; i++ {
		assert.Equal(t, fmt.Sprintf("thread %d was here", i), results[i])
	}
	assert.Equal(t, "SYSTEM", vol.Label())
}
