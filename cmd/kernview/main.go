package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kernkit/kernkit/cmd/kernview/logger"
)

var (
	version = "dev"
)

func main() {
	debugMode := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--debug", "-d":
			debugMode = true
		case "--help", "-h":
			printUsage()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("kernview %s\n", version)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "unknown argument: %s\n", arg)
			printUsage()
			os.Exit(1)
		}
	}

	log, closeLog, err := logger.Setup(debugMode, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open trace: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	p := tea.NewProgram(newModel(log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("program error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kernview - live monitor for the simulated teaching kernel

Usage:
  kernview [--debug]

With --debug, kernel and UI events trace to ~/.kernview/trace.jsonl.

Keys:
  w       spawn a worker thread (vm touch + disk write/read)
  s/space single scheduler yield from the boot context
  r       run until all threads retire
  enter   toggle the detail overlay
  c       copy the last event to the clipboard
  q       quit`)
}
