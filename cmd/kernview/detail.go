package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kernkit/kernkit/kern/frame"
)

// detailModel is the foreground of the detail overlay: per-pool frame-state
// tallies and scheduler/disk counters, for when the bitmap glyphs are too
// coarse.
type detailModel struct {
	st *state
}

func newDetailModel(st *state) detailModel {
	return detailModel{st: st}
}

func (d detailModel) Init() tea.Cmd { return nil }

func (d detailModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return d, nil }

// countStates tallies a pool's bitmap by state.
func countStates(p *frame.Pool) (free, used, heads uint32) {
	for i := uint32(0); i < p.NFrames(); i++ {
		switch p.StateOf(p.BaseFrame() + i) {
		case frame.Free:
			free++
		case frame.HeadOfSequence:
			heads++
		default:
			used++
		}
	}
	return free, used, heads
}

func poolLine(name string, p *frame.Pool) string {
	free, used, heads := countStates(p)
	return fmt.Sprintf("%-8s [%d,%d)  free %-5d used %-5d runs %d",
		name, p.BaseFrame(), p.BaseFrame()+p.NFrames(), free, used, heads)
}

func (d detailModel) View() string {
	st := d.st
	var b strings.Builder

	b.WriteString(statStyle.Render("detail") + "\n\n")
	b.WriteString(poolLine("kernel", st.sys.KernelPool) + "\n")
	b.WriteString(poolLine("process", st.sys.ProcessPool) + "\n\n")
	b.WriteString(fmt.Sprintf("vm pool    base %#x  available %d KiB\n",
		st.pool.BaseAddress(), st.pool.Available()/1024))
	b.WriteString(fmt.Sprintf("scheduler  ready %d  io-blocked %d  yields %d\n",
		st.sys.Scheduler.ReadyCount(), st.sys.Disk.BlockedCount(), st.yields))
	b.WriteString(fmt.Sprintf("disk       %d blocks, %d words moved\n",
		st.sys.Device.Blocks(), len(st.sys.Device.TransferLog())))
	b.WriteString(fmt.Sprintf("workers    %d spawned\n\n", st.nextWorker-1))
	b.WriteString(helpStyle.Render("esc to close"))

	return overlayStyle.Render(b.String())
}

// staticModel wraps an already-rendered view so it can serve as the overlay
// background.
type staticModel struct {
	content string
}

func (s staticModel) Init() tea.Cmd                       { return nil }
func (s staticModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return s, nil }
func (s staticModel) View() string                        { return s.content }
