//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix)

package blockfile

import "os"

// No mmap on this platform; Open reads the file into aligned heap memory.

func mapFile(_ *os.File, _ int) ([]byte, bool) {
	return nil, false
}

func unmapFile(_ []byte) {
}
