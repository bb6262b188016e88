package machine

import "fmt"

// HaltError carries the reason the kernel stopped. It is delivered by
// panicking, mirroring an assert-and-stop on real hardware.
type HaltError struct {
	Reason string
}

func (e *HaltError) Error() string {
	return "machine: halted: " + e.Reason
}

// Halt stops the kernel with the given reason.
func Halt(format string, args ...any) {
	panic(&HaltError{Reason: fmt.Sprintf(format, args...)})
}
