package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kernkit/kernkit/internal/mmfile"
	"github.com/kernkit/kernkit/kern/disk"
	"github.com/kernkit/kernkit/kern/fs"
	"github.com/kernkit/kernkit/kern/machine"
	"github.com/kernkit/kernkit/kern/system"
)

var (
	formatBlocks int
	formatLabel  string
)

func init() {
	cmd := newFormatCmd()
	cmd.Flags().IntVar(&formatBlocks, "blocks", system.DefaultDiskBlocks, "Disk size in 512-byte blocks")
	cmd.Flags().StringVar(&formatLabel, "label", "KERNKIT", "Volume label")
	rootCmd.AddCommand(cmd)
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <image>",
		Short: "Create and format a disk image file",
		Long: `The format command creates a disk image of the requested size and lays
an empty file system onto it: inode list in block 0, free-block map and
volume label in block 1.

Example:
  kernctl format scratch.img
  kernctl format scratch.img --blocks 128 --label SCRATCH`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(args[0])
		},
	}
}

// imageDisk opens an image file as a blocking disk on a throwaway machine.
func imageDisk(path string) (*disk.SimpleDisk, func() error, error) {
	data, cleanup, err := mmfile.MapRW(path)
	if err != nil {
		return nil, nil, err
	}
	m := machine.New(1, bootLogger())
	dev := disk.NewDeviceFromImage(data, 0)
	dev.Attach(m)
	return disk.NewSimpleDisk(disk.NewIDEController(m), dev.Blocks()), cleanup, nil
}

func runFormat(path string) error {
	if err := os.WriteFile(path, make([]byte, formatBlocks*disk.BlockSize), 0o644); err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	d, cleanup, err := imageDisk(path)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := fs.Format(d, formatLabel); err != nil {
		return err
	}
	printInfo("formatted %s: %d blocks, label %q\n", path, formatBlocks, formatLabel)
	return nil
}
