//go:build unix

package media

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeBytes reports the bytes available to unprivileged users in the
// file system holding dir.
func FreeBytes(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
