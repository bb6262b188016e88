// Package system assembles a complete simulated kernel: machine, frame
// pools, paging, scheduler and disk. The boot layout is a 4 MiB shared
// kernel region served by a kernel pool at frames [512, 1024), with a
// process pool above it for page tables and user pages.
package system

import (
	"log/slog"

	"github.com/kernkit/kernkit/internal/layout"
	"github.com/kernkit/kernkit/kern/disk"
	"github.com/kernkit/kernkit/kern/frame"
	"github.com/kernkit/kernkit/kern/machine"
	"github.com/kernkit/kernkit/kern/paging"
	"github.com/kernkit/kernkit/kern/sched"
)

// Defaults for the boot layout.
const (
	// DefaultFrames gives the machine 8 MiB of physical memory.
	DefaultFrames = 2048

	// kernelPoolBase / kernelPoolFrames cover the upper half of the
	// shared 4 MiB region.
	kernelPoolBase   = 512
	kernelPoolFrames = 512

	// SharedSize is the kernel region mapped into every address space.
	SharedSize = 4 * 1024 * 1024

	// DefaultDiskBlocks sizes the simulated disk (254 usable blocks keeps
	// every block addressable by the file system's byte-wide indices).
	DefaultDiskBlocks = 254

	// DefaultDiskLatency is how many status polls an operation stays busy.
	DefaultDiskLatency = 2
)

// Config tunes the assembled system. Zero values pick the defaults above.
type Config struct {
	Frames      int
	DiskBlocks  int
	DiskLatency int
	DiskImage   []byte // optional pre-existing block image
	Logger      *slog.Logger
}

// System is one booted instance.
type System struct {
	M        *machine.Machine
	Registry *frame.Registry

	KernelPool  *frame.Pool
	ProcessPool *frame.Pool

	Paging    *paging.Context
	PageTable *paging.PageTable

	Scheduler *sched.Scheduler
	Device    *disk.Device
	Disk      *disk.NonBlockingDisk
}

// Boot builds the machine, carves the frame pools, turns paging on, and
// attaches the scheduler and disk.
func Boot(cfg Config) *System {
	if cfg.Frames == 0 {
		cfg.Frames = DefaultFrames
	}
	if cfg.DiskBlocks == 0 {
		cfg.DiskBlocks = DefaultDiskBlocks
	}
	if cfg.DiskLatency == 0 {
		cfg.DiskLatency = DefaultDiskLatency
	}
	if cfg.Frames <= kernelPoolBase+kernelPoolFrames {
		machine.Halt("boot needs more than %d frames, got %d",
			kernelPoolBase+kernelPoolFrames, cfg.Frames)
	}

	s := &System{
		M:        machine.New(cfg.Frames, cfg.Logger),
		Registry: frame.NewRegistry(),
	}

	s.KernelPool = frame.NewPool(s.M, s.Registry, kernelPoolBase, kernelPoolFrames, 0)
	processFrames := uint32(cfg.Frames) - (kernelPoolBase + kernelPoolFrames)
	s.ProcessPool = frame.NewPool(s.M, s.Registry,
		kernelPoolBase+kernelPoolFrames, processFrames, 0)

	s.Paging = paging.Init(s.M, s.Registry, s.KernelPool, s.ProcessPool, SharedSize)
	s.PageTable = s.Paging.NewPageTable()
	s.PageTable.Load()
	s.Paging.EnablePaging()

	s.Scheduler = sched.New(s.M)

	if cfg.DiskImage != nil {
		s.Device = disk.NewDeviceFromImage(cfg.DiskImage, cfg.DiskLatency)
	} else {
		s.Device = disk.NewDevice(cfg.DiskBlocks, cfg.DiskLatency)
	}
	s.Device.Attach(s.M)
	s.Disk = disk.NewNonBlockingDisk(disk.NewIDEController(s.M),
		s.Device.Blocks(), s.Scheduler)

	return s
}

// Run drives the scheduler from the boot context until every thread has
// retired and no I/O waiter remains parked.
func (s *System) Run() {
	for s.Scheduler.ReadyCount() > 0 || s.Disk.BlockedCount() > 0 {
		s.Scheduler.Yield()
	}
}

// FreeFrames reports the free counts of both pools.
func (s *System) FreeFrames() (kernel, process uint32) {
	return s.KernelPool.FreeCount(), s.ProcessPool.FreeCount()
}

// PageSize returns the machine's page size in bytes.
func PageSize() uint32 { return layout.FrameSize }
