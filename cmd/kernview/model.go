package main

import (
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kernkit/kernkit/kern/disk"
	"github.com/kernkit/kernkit/kern/system"
	"github.com/kernkit/kernkit/kern/vm"
)

// state is the mutable heart of the TUI, held behind a pointer so worker
// closures and successive Update copies see the same data.
type state struct {
	log *slog.Logger

	sys  *system.System
	pool *vm.Pool

	nextWorker int
	yields     int

	showDetail bool

	events []string
}

// model drives one booted system from the boot context. Every keypress runs
// inside Update, so the TUI is always the boot thread and stepping the
// scheduler is safe.
type model struct {
	keys KeyMap
	st   *state
}

func newModel(log *slog.Logger) model {
	// The machine traces through the same logger, so kernel and UI events
	// interleave in one file.
	sys := system.Boot(system.Config{Logger: log})
	pool := vm.NewPool(sys.M, 0x40000000, 8<<20, sys.ProcessPool, sys.PageTable)
	st := &state{
		log:        log,
		sys:        sys,
		pool:       pool,
		nextWorker: 1,
	}
	st.record("booted: paging on, disk attached")
	return model{keys: DefaultKeyMap(), st: st}
}

func (m model) Init() tea.Cmd { return nil }

// record pushes an event onto the pane and mirrors it to the trace.
func (st *state) record(ev string, args ...any) {
	st.log.Info(ev, args...)
	st.events = append(st.events, ev)
	if len(st.events) > 8 {
		st.events = st.events[len(st.events)-8:]
	}
}

// spawnWorker adds a thread that touches a fresh virtual region and then
// stores and verifies a block on the non-blocking disk.
func (st *state) spawnWorker() {
	id := st.nextWorker
	st.nextWorker++
	s := st.sys

	s.Scheduler.Add(s.Scheduler.NewThread(id, func() {
		region := st.pool.Allocate(4 * system.PageSize())
		if region == 0 {
			st.record(fmt.Sprintf("worker %d: vm pool exhausted", id), "worker", id)
			return
		}
		for off := uint32(0); off < 4*system.PageSize(); off += system.PageSize() {
			s.M.WriteWord(region+off, uint32(id))
		}

		block := uint32(2 + id%int(s.Device.Blocks()-2))
		buf := make([]byte, disk.BlockSize)
		for i := range buf {
			buf[i] = byte(id)
		}
		s.Disk.Write(block, buf)

		got := make([]byte, disk.BlockSize)
		s.Disk.Read(block, got)

		ok := true
		for i := range got {
			if got[i] != byte(id) {
				ok = false
				break
			}
		}
		st.pool.Release(region)
		st.record(fmt.Sprintf("worker %d: block %d verified=%v", id, block, ok),
			"worker", id, "block", block, "region", region, "verified", ok)
	}))
	st.record(fmt.Sprintf("worker %d spawned", id), "worker", id)
}

// copyLastEvent puts the newest event line on the system clipboard.
func (st *state) copyLastEvent() {
	if len(st.events) == 0 {
		return
	}
	last := st.events[len(st.events)-1]
	if err := clipboard.WriteAll(last); err != nil {
		st.record(fmt.Sprintf("clipboard: %v", err))
		return
	}
	st.record("copied last event to clipboard")
}

// yieldOnce steps the scheduler one yield from the boot context.
func (st *state) yieldOnce() {
	st.sys.Scheduler.Yield()
	st.yields++
	st.log.Debug("yield",
		"total", st.yields,
		"ready", st.sys.Scheduler.ReadyCount(),
		"blocked", st.sys.Disk.BlockedCount())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.st.log.Info("quit", "yields", m.st.yields, "workers", m.st.nextWorker-1)
			return m, tea.Quit
		case key.Matches(msg, m.keys.Detail):
			m.st.showDetail = !m.st.showDetail
		case key.Matches(msg, m.keys.Esc):
			m.st.showDetail = false
		case key.Matches(msg, m.keys.Copy):
			m.st.copyLastEvent()
		case key.Matches(msg, m.keys.Spawn):
			m.st.spawnWorker()
		case key.Matches(msg, m.keys.Step):
			m.st.yieldOnce()
		case key.Matches(msg, m.keys.Run):
			for m.st.sys.Scheduler.ReadyCount() > 0 || m.st.sys.Disk.BlockedCount() > 0 {
				m.st.yieldOnce()
			}
		}
	}
	return m, nil
}
