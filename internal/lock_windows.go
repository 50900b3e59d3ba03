//go:build windows

package internal

// dirLock is a no-op on Windows: directory handles can not be locked there.
type dirLock struct{}

func lockDir(path string) (*dirLock, error) {
	return &dirLock{}, nil
}

func (l *dirLock) release() error {
	return nil
}

// syncDir is a no-op on Windows: directories can not be opened for sync there.
func syncDir(path string) error {
	return nil
}
