//go:build !(windows && amd64)

package guide

import "fmt"

// NewDLLDriver はWindows/amd64以外では常にErrUnsupportedを返す
func NewDLLDriver(path string) (Driver, error) {
	if path == "" {
		path = DefaultLibrary
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}
