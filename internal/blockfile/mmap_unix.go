//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package blockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps the file read-only. A failed map is not an error, the caller
// falls back to an aligned heap read.
func mapFile(file *os.File, size int) ([]byte, bool) {
	if size <= 0 {
		return nil, false
	}
	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false
	}
	return data, true
}

func unmapFile(data []byte) {
	if data != nil {
		_ = unix.Munmap(data)
	}
}
