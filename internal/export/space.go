package export

import (
	"golang.org/x/sys/unix"
)

// freeBytes reports the space available to unprivileged users on the
// filesystem holding path.
var freeBytes = func(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// SetFreeSpaceForTests overrides the free-space probe and returns a restore func.
func SetFreeSpaceForTests(fn func(string) (uint64, error)) func() {
	prev := freeBytes
	freeBytes = fn
	return func() { freeBytes = prev }
}

// FreeBytes reports the available bytes at path.
func FreeBytes(path string) (uint64, error) {
	return freeBytes(path)
}
