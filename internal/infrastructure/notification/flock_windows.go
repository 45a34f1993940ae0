//go:build windows

package notification

import "os"

// TODO: use LockFileEx so concurrent processes cannot interleave journal lines on Windows
func flockExclusive(f *os.File) error { return nil }

func flockUnlock(f *os.File) error { return nil }
