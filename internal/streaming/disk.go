package streaming

import (
	"fmt"
	"os"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

const bytesPerMB = 1024 * 1024

// checkDiskSpace fails when path has less than minMB megabytes available.
// The warning threshold is twice the minimum.
func checkDiskSpace(path string, minMB int) error {
	if minMB <= 0 {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create segment root: %w", err)
	}

	available, err := getAvailableSpace(path)
	if err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	required := uint64(minMB) * bytesPerMB
	if available < required {
		return fmt.Errorf("insufficient disk space: %d bytes available, %d bytes required", available, required)
	}

	if available < 2*required {
		logger.Log.Warn().
			Uint64("available_bytes", available).
			Uint64("required_bytes", required).
			Str("path", path).
			Msg("Disk space below warning threshold")
	}
	return nil
}
