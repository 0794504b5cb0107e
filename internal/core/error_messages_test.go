package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "missing price column",
			err:      &FatalIngestError{Feed: "feed.csv", Reason: "missing required columns", Missing: []string{"price"}},
			wantCode: "FEED001",
		},
		{
			name:     "empty feed",
			err:      &FatalIngestError{Feed: "feed.csv", Reason: "empty feed"},
			wantCode: "FEED002",
		},
		{
			name:     "unreadable workbook",
			err:      &FatalIngestError{Reason: "unreadable workbook", Err: errors.New("zip: not a valid zip file")},
			wantCode: "FEED003",
		},
		{
			name:     "store conflict",
			err:      fmt.Errorf("save accepted: %w", ErrConflict),
			wantCode: "DB001",
		},
		{
			name:     "acquire with refused connection",
			err:      errors.New("acquire store: dial tcp 127.0.0.1:5432: connection refused"),
			wantCode: "DB002",
		},
		{
			name:     "acquire failure",
			err:      errors.New("acquire store: pool closed"),
			wantCode: "DB005",
		},
		{
			name:     "product not found",
			err:      fmt.Errorf("get product: %w", ErrNotFound),
			wantCode: "DB006",
		},
		{
			name:     "run limiter busy",
			err:      ErrTooManyRuns,
			wantCode: "RUN001",
		},
		{
			name:     "malformed run id",
			err:      fmt.Errorf("invalid run id %q", "abc"),
			wantCode: "RUN004",
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("acquire store: %w", context.DeadlineExceeded),
			wantCode: "RUN003",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("ERROR: DUPLICATE KEY value violates unique constraint"),
			wantCode: "DB001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := &FatalIngestError{Reason: "empty feed"}
	want := "The feed has no header row (Code: FEED002). Upload a feed with a header row and at least one product"
	if got := FormatUserError(err); got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"known error", ErrTooManyRuns, true},
		{"unknown error", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	techErr := fmt.Errorf("save accepted: %w", ErrConflict)
	userErr := NewUserError(techErr)
	if userErr.Error() != "A product with this id already exists" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrConflict) {
		t.Error("Unwrap() should reach the original error")
	}
}
