package main

import (
	"github.com/spf13/cobra"

	"github.com/kernkit/kernkit/kern/fs"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Show volume label and files of a disk image",
		Long: `The info command mounts a formatted disk image and lists its label and
files.

Example:
  kernctl info scratch.img
  kernctl info scratch.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(path string) error {
	d, cleanup, err := imageDisk(path)
	if err != nil {
		return err
	}
	defer cleanup()

	vol, err := fs.Mount(d)
	if err != nil {
		return err
	}

	type fileInfo struct {
		ID   int32  `json:"id"`
		Name string `json:"name"`
		Size uint32 `json:"size"`
	}
	var files []fileInfo
	for _, ino := range vol.Files() {
		files = append(files, fileInfo{ID: ino.ID, Name: ino.Name, Size: ino.Size})
	}

	if jsonOut {
		return printJSON(struct {
			Label string     `json:"label"`
			Files []fileInfo `json:"files"`
		}{vol.Label(), files})
	}

	printInfo("label: %s\n", vol.Label())
	printInfo("files: %d\n", len(files))
	for _, f := range files {
		printInfo("  %4d  %-20s %6d bytes\n", f.ID, f.Name, f.Size)
	}
	return nil
}
