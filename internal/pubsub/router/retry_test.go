package router

import (
	"context"
	"testing"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	log := logger.NewNoopLogger()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{
			name: "storage_unavailable",
			err:  ierr.NewError("connection refused").Mark(ierr.ErrStorageUnavailable),
			want: true,
		},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{
			name: "validation",
			err:  ierr.NewError("bad trigger").Mark(ierr.ErrValidation),
			want: false,
		},
		{
			name: "member_not_found",
			err:  ierr.NewError("no member").Mark(ierr.ErrMemberNotFound),
			want: false,
		},
		{
			name: "inactive_member",
			err:  ierr.NewError("suspended").Mark(ierr.ErrMemberInactive),
			want: false,
		},
		{
			name: "insufficient_balance",
			err:  ierr.NewError("poor").Mark(ierr.ErrInsufficientBalance),
			want: false,
		},
		{name: "unknown", err: errors.New("boom"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(log, tt.err))
		})
	}
}
