package sqlite

import (
	"errors"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/banshee-data/crtreco/internal/monitoring"
	"github.com/banshee-data/crtreco/internal/timeutil"
)

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func isBusy(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy runs fn, retrying with linear backoff while the database
// reports it is busy. Any other error is returned immediately.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		monitoring.Debugf("sqlite busy (attempt %d/%d): %v", attempt+1, busyRetries+1, err)
		if attempt == busyRetries {
			break
		}
		clock.Sleep(time.Duration(attempt+1) * busyBaseDelay)
	}
	return err
}
