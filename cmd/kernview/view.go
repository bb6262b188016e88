package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/kernkit/kernkit/kern/frame"
)

const bitmapColumns = 64

// renderBitmap draws a pool's frame states as one glyph per frame.
func renderBitmap(p *frame.Pool, maxRows int) string {
	var b strings.Builder
	rows := 0
	for i := uint32(0); i < p.NFrames(); i++ {
		if i%bitmapColumns == 0 {
			if rows == maxRows {
				b.WriteString(helpStyle.Render("…"))
				break
			}
			if i != 0 {
				b.WriteByte('\n')
			}
			rows++
		}
		switch p.StateOf(p.BaseFrame() + i) {
		case frame.Free:
			b.WriteString(freeCell.Render("·"))
		case frame.HeadOfSequence:
			b.WriteString(headCell.Render("◆"))
		default:
			b.WriteString(usedCell.Render("■"))
		}
	}
	return b.String()
}

func (m model) View() string {
	st := m.st
	kernelFree, processFree := st.sys.FreeFrames()

	header := headerStyle.Render("kernview - simulated kernel core")

	stats := paneStyle.Render(fmt.Sprintf(
		"%s\nready queue  %d\nio blocked   %d\nyields       %d\nkernel free  %d\nprocess free %d\nvm available %s",
		statStyle.Render("scheduler / memory"),
		st.sys.Scheduler.ReadyCount(),
		st.sys.Disk.BlockedCount(),
		st.yields,
		kernelFree,
		processFree,
		statStyle.Render(fmt.Sprintf("%d KiB", st.pool.Available()/1024)),
	))

	kernelPane := paneStyle.Render(
		statStyle.Render("kernel pool [512,1024)") + "\n" +
			renderBitmap(st.sys.KernelPool, 8))
	processPane := paneStyle.Render(
		statStyle.Render("process pool [1024,2048)") + "\n" +
			renderBitmap(st.sys.ProcessPool, 8))

	events := paneStyle.Render(
		statStyle.Render("events") + "\n" + strings.Join(st.events, "\n"))

	help := helpStyle.Render("w spawn | s yield | r run to idle | enter detail | c copy | q quit")

	left := lipgloss.JoinVertical(lipgloss.Left, stats, events)
	right := lipgloss.JoinVertical(lipgloss.Left, kernelPane, processPane)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	main := lipgloss.JoinVertical(lipgloss.Left, header, body, help)

	// With the detail view open, render it centered over the main view.
	// The overlay is recreated each render so it always shows live state.
	if st.showDetail {
		detail := overlay.New(
			newDetailModel(st),
			staticModel{content: main},
			overlay.Center, // horizontal position
			overlay.Center, // vertical position
			0,
			0,
		)
		return detail.View()
	}

	return main
}
