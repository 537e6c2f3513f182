package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  ExpiredToken(),
			want: "token expired",
		},
		{
			name: "error with cause",
			err:  IdentityFetch(errors.New("connection refused")),
			want: "fetch current identity: connection refused",
		},
		{
			name: "status error",
			err:  IdentityFetchStatus(401, "unauthorized"),
			want: "fetch current identity: unexpected status 401: unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Decode(cause)

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should reach the cause")
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("refresh: %w", IdentityFetch(errors.New("boom")))

	if !IsIdentityFetch(err) {
		t.Errorf("IsIdentityFetch() = false, want true")
	}
	if IsTokenExpired(err) {
		t.Errorf("IsTokenExpired() = true, want false")
	}
	if got := GetCode(err); got != ErrCodeIdentityFetch {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeIdentityFetch)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
	}{
		{"decode", Decode(errors.New("x")), IsTokenDecode},
		{"expired", ExpiredToken(), IsTokenExpired},
		{"missing", MissingToken(), IsTokenMissing},
		{"login", LoginStatus(403, "nope"), IsLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.fn(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			if tt.fn(errors.New("plain")) {
				t.Errorf("predicate returned true for a plain error")
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	if got := GetStatus(fmt.Errorf("wrap: %w", LoginStatus(401, ""))); got != 401 {
		t.Errorf("GetStatus() = %d, want 401", got)
	}
	if got := GetStatus(errors.New("plain")); got != 0 {
		t.Errorf("GetStatus() = %d, want 0", got)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
	err := Wrapf(errors.New("disk full"), ErrCodeInternal, "write %s", "token")
	if err.Error() != "write token: disk full" {
		t.Errorf("Wrapf().Error() = %q", err.Error())
	}
}
