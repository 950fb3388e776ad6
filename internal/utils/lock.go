package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a waiting process polls the workspace lock.
const lockRetryDelay = 200 * time.Millisecond

// WorkspaceLock keeps two leadscope processes from loading and saving the same
// lead database at once. It is an advisory lock on "<db>.lock".
type WorkspaceLock struct {
	file   *flock.Flock
	dbPath string
}

// NewWorkspaceLock prepares, but does not take, the lock for dbPath.
func NewWorkspaceLock(dbPath string) (*WorkspaceLock, error) {
	abs, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	return &WorkspaceLock{file: flock.New(abs + ".lock"), dbPath: abs}, nil
}

// Acquire takes the lock. While another process holds it Acquire waits, until
// ctx ends.
func (l *WorkspaceLock) Acquire(ctx context.Context) error {
	ok, err := l.file.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.file.Path(), err)
	}
	if ok {
		return nil
	}

	Log.Warnf("%s is open in another leadscope process, waiting for it to exit", filepath.Base(l.dbPath))
	start := time.Now()
	ok, err = l.file.TryLockContext(ctx, lockRetryDelay)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s is still in use after %s: %w", l.dbPath, time.Since(start).Round(time.Millisecond), err)
	case err != nil:
		return fmt.Errorf("locking %s: %w", l.file.Path(), err)
	case !ok:
		return fmt.Errorf("%s is still in use", l.dbPath)
	}
	Log.Debugf("Acquired %s after %s", l.file.Path(), time.Since(start).Round(time.Millisecond))
	return nil
}

// Release gives the lock up. Releasing a lock that is not held is a no-op.
func (l *WorkspaceLock) Release() error {
	if !l.file.Locked() {
		return nil
	}
	if err := l.file.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlocking %s: %w", l.file.Path(), err)
	}
	return nil
}

// DefaultDBPath is used when no db.path is configured.
const DefaultDBPath = "~/.config/leadscope/leads.sqlite"

// GetAbsDBPath resolves the database path. An empty path means the default
// location under the user's home, whose directory is created on demand.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir := filepath.Join(home, ".config", "leadscope")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(dir, "leads.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
