package router

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
)

// ShouldRetry reports whether a failed message is worth redelivering. Only
// infrastructure failures are, a business rule rejection fails the same way every time.
func ShouldRetry(logger *logger.Logger, err error) bool {
	if err == nil {
		return false
	}

	if ierr.IsStorageUnavailable(err) {
		logger.Debugw("retrying due to unavailable storage", "error", err)
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Debugw("retrying due to deadline", "error", err)
		return true
	}

	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsAlreadyExists(err) ||
		ierr.IsBusinessRule(err) {
		return false
	}

	// Unknown errors are retried, the poison queue catches the ones that never recover
	return true
}
