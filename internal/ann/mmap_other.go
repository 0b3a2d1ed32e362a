//go:build !unix

package ann

import "errors"

const mmapSupported = false

func mapFile(string) ([]byte, func() error, error) {
	return nil, nil, errors.New("mmap not supported on this platform")
}
