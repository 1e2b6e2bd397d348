package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Error kinds signaled to callers. Every error returned by a service is marked
// with exactly one of these so the transport layer can map it to a status code.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	ErrMemberNotFound = new(ErrCodeMemberNotFound, "membership not found")
	ErrRewardNotFound = new(ErrCodeRewardNotFound, "reward not found")
	ErrRuleNotFound   = new(ErrCodeRuleNotFound, "rule not found")

	ErrMemberInactive = new(ErrCodeMemberInactive, "membership is inactive")
	ErrRewardInactive = new(ErrCodeRewardInactive, "reward is inactive")

	ErrInsufficientBalance    = new(ErrCodeInsufficientBalance, "insufficient points balance")
	ErrOutOfStock             = new(ErrCodeOutOfStock, "reward out of stock")
	ErrTierNotEligible        = new(ErrCodeTierNotEligible, "tier not eligible")
	ErrRedemptionLimitReached = new(ErrCodeRedemptionLimitReached, "redemption limit reached")
	ErrStorageUnavailable     = new(ErrCodeStorageUnavailable, "storage unavailable")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:               http.StatusNotFound,
		ErrAlreadyExists:          http.StatusConflict,
		ErrValidation:             http.StatusBadRequest,
		ErrInvalidOperation:       http.StatusBadRequest,
		ErrDatabase:               http.StatusInternalServerError,
		ErrSystem:                 http.StatusInternalServerError,
		ErrMemberNotFound:         http.StatusNotFound,
		ErrRewardNotFound:         http.StatusNotFound,
		ErrRuleNotFound:           http.StatusNotFound,
		ErrMemberInactive:         http.StatusConflict,
		ErrRewardInactive:         http.StatusConflict,
		ErrInsufficientBalance:    http.StatusUnprocessableEntity,
		ErrOutOfStock:             http.StatusUnprocessableEntity,
		ErrTierNotEligible:        http.StatusUnprocessableEntity,
		ErrRedemptionLimitReached: http.StatusUnprocessableEntity,
		ErrStorageUnavailable:     http.StatusServiceUnavailable,
	}
)

const (
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeDatabase         = "database_error"

	ErrCodeMemberNotFound         = "member_not_found"
	ErrCodeRewardNotFound         = "reward_not_found"
	ErrCodeRuleNotFound           = "rule_not_found"
	ErrCodeMemberInactive         = "member_inactive"
	ErrCodeRewardInactive         = "reward_inactive"
	ErrCodeInsufficientBalance    = "insufficient_balance"
	ErrCodeOutOfStock             = "out_of_stock"
	ErrCodeTierNotEligible        = "tier_not_eligible"
	ErrCodeRedemptionLimitReached = "redemption_limit_reached"
	ErrCodeStorageUnavailable     = "storage_unavailable"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is reports whether err carries the given mark anywhere in its chain
func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// IsNotFound checks if an error is any of the not found kinds
func IsNotFound(err error) bool {
	return errors.IsAny(err, ErrNotFound, ErrMemberNotFound, ErrRewardNotFound, ErrRuleNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorageUnavailable checks if the storage layer could not be reached.
// Callers may retry these, all other kinds are final.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsBusinessRule reports whether err is a rejection of the operation by a loyalty rule
// (balance, stock, tier or cap) rather than malformed input or an infrastructure failure
func IsBusinessRule(err error) bool {
	return errors.IsAny(err,
		ErrMemberInactive,
		ErrRewardInactive,
		ErrInsufficientBalance,
		ErrOutOfStock,
		ErrTierNotEligible,
		ErrRedemptionLimitReached,
	)
}

// Code returns the machine readable code of the first kind err is marked with
func Code(err error) string {
	for e := range statusCodeMap {
		if errors.Is(err, e) {
			return e.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Hint returns the user facing hints of err, or its message when it carries none
func Hint(err error) string {
	if hint := errors.FlattenHints(err); hint != "" {
		return hint
	}
	return err.Error()
}
