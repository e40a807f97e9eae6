//go:build darwin

package writer

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes file data. With full set, F_FULLFSYNC pushes it past the
// drive cache.
func syncFile(f *os.File, full bool) error {
	if full {
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(int(f.Fd()))
}
