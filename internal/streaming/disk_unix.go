//go:build !windows

package streaming

import (
	"fmt"
	"syscall"
)

// getAvailableSpace returns bytes available to unprivileged users on path's filesystem
func getAvailableSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
