package changes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

var (
	// ErrLocked is returned when another live process holds the lock
	ErrLocked = errors.New("another keepup watch is already running")

	findProcessFunc = ps.FindProcess
	currentPID      = os.Getpid
)

// Lock is a PID lockfile ensuring a single watch process per user
type Lock struct {
	path string
}

// AcquireLock creates the lockfile at path. A lockfile left behind by a
// process that is no longer running is taken over.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(currentPID()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("failed to write lockfile: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		pid, alive := lockOwner(path)
		if alive {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	}
	return nil, ErrLocked
}

// lockOwner reads the PID in the lockfile and reports whether it is running
func lockOwner(path string) (int, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == currentPID() {
		return pid, false
	}
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return pid, false
	}
	return pid, true
}

// Release removes the lockfile
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
