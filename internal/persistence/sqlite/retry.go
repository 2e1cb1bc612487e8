package sqlite

import (
	"database/sql"
	"math/rand"
	"strings"
	"time"
)

// Grounded on internal/database/sqlite_retry.go's busy-retry loop: SQLite
// serializes writers, so a concurrently-held lock surfaces as an error
// string rather than a typed error from mattn/go-sqlite3.
const (
	maxRetries = 100
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "locked")
}

func retryExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err = db.Exec(query, args...)
		if !isRetryableError(err) {
			return result, err
		}
		delay := time.Duration(attempt+1) * baseDelay
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
		time.Sleep(delay + jitter)
	}
	return result, err
}
