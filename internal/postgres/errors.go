package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	// class 08 covers connection exceptions, 57P0x covers admin/crash shutdown
	pqConnectionClass = "08"
	pqAdminShutdown   = "57P01"
	pqCrashShutdown   = "57P02"
	pqCannotConnect   = "57P03"
)

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

// IsConnectionError reports whether err means the database could not be reached
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if ierr.Is(err, driver.ErrBadConn) || ierr.Is(err, sql.ErrConnDone) || ierr.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if ierr.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, pqConnectionClass) ||
			code == pqAdminShutdown || code == pqCrashShutdown || code == pqCannotConnect
	}

	var netErr net.Error
	if ierr.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return ierr.As(err, &opErr)
}

// WrapError marks a driver error with the kind callers act on: connection failures
// become ErrStorageUnavailable, everything else ErrDatabase
func WrapError(err error, op string) error {
	if IsConnectionError(err) {
		return ierr.WithError(err).
			WithMessage(op).
			WithHint("The loyalty store is temporarily unavailable, please retry").
			Mark(ierr.ErrStorageUnavailable)
	}
	return ierr.WithError(err).
		WithMessage(op).
		WithHint("A database error occurred").
		Mark(ierr.ErrDatabase)
}
