//go:build unix

package ann

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const mmapSupported = true

// mapFile maps path read-only. The mapping outlives the file descriptor.
func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // wrapped by Load
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat: %w", err)
	}
	if st.Size() < headerSize {
		return nil, nil, fmt.Errorf("%w: file shorter than header (%d bytes)", ErrCorrupt, st.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
