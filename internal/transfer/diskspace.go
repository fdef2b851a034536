package transfer

import (
	"errors"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

var ErrInsufficientSpace = errors.New("insufficient disk space")

// freeSpace reports the bytes available on the filesystem that will hold path.
func freeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return 0, err
	}

	return usage.Free, nil
}
