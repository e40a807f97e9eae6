//go:build !linux && !freebsd && !darwin && !windows

package writer

import "os"

func syncFile(f *os.File, _ bool) error {
	return f.Sync()
}
