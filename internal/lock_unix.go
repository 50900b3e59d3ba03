//go:build !windows

package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/hasssanezzz/logcache/shared"
	"golang.org/x/sys/unix"
)

// dirLock holds an exclusive flock on the store directory itself, so no
// lock file is added next to the segments.
type dirLock struct {
	file *os.File
}

func lockDir(path string) (*dirLock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can not open store directory %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, &shared.ErrStoreLocked{Path: path}
		}
		return nil, fmt.Errorf("can not lock store directory %q: %w", path, err)
	}
	return &dirLock{file: f}, nil
}

func (l *dirLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

// syncDir makes file creations and removals in path durable.
func syncDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("can not open directory %q: %w", path, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("can not sync directory %q: %w", path, err)
	}
	return nil
}
