package spreadsheet

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// acquireLock takes the advisory lock that serialises sessions on one workbook.
// The lock lives next to the workbook as "<path>.lock".
func (s *Session) acquireLock(ctx context.Context, path string) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.lockTimeout)
	defer cancel()

	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return &WorkbookError{Operation: "lock", Path: path, Cause: fmt.Errorf("%w: failed to acquire workbook lock: %v", ErrIOFailure, err)}
	}
	if !locked {
		return &WorkbookError{Operation: "lock", Path: path, Cause: fmt.Errorf("%w: workbook is locked by another operation", ErrIOFailure)}
	}

	s.lock = fileLock
	return nil
}

// releaseLock releases the workbook lock if one is held.
func (s *Session) releaseLock() bool {
	if s.lock == nil {
		return true
	}
	defer func() { s.lock = nil }()

	if err := s.lock.Unlock(); err != nil {
		s.log().WithError(err).Warn("Failed to release workbook lock")
		return false
	}
	return true
}
