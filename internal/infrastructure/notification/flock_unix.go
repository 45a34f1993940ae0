//go:build !windows

package notification

import (
	"os"
	"syscall"
)

// flockExclusive blocks until the process holds an exclusive lock on f
func flockExclusive(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
}

func flockUnlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
