package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/closetapp/closetd/internal/clients/closetapi"
)

func TestClassifyRefreshError_StatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   FailureClass
	}{
		{401, FailurePermanent},
		{403, FailurePermanent},
		{400, FailureTransient},
		{429, FailureTransient},
		{500, FailureTransient},
		{503, FailureTransient},
	}

	for _, tc := range cases {
		err := &closetapi.APIError{StatusCode: tc.status, Message: "x", Endpoint: "/v1/auth/refresh"}
		if got := ClassifyRefreshError(err); got != tc.want {
			t.Errorf("status %d classified %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestClassifyRefreshError_WrappedAPIError(t *testing.T) {
	err := fmt.Errorf("refresh failed: %w",
		&closetapi.APIError{StatusCode: 401, Message: "unauthorized"})
	if got := ClassifyRefreshError(err); got != FailurePermanent {
		t.Errorf("wrapped 401 classified %q, want permanent", got)
	}
}

func TestClassifyRefreshError_MessageMarkers(t *testing.T) {
	permanent := []error{
		errors.New("server said: Invalid_Grant"),
		errors.New("Invalid refresh token"),
		errors.New("the token is expired"),
		errors.New("request unauthorized"),
	}
	for _, err := range permanent {
		if got := ClassifyRefreshError(err); got != FailurePermanent {
			t.Errorf("%q classified %q, want permanent", err, got)
		}
	}
}

func TestClassifyRefreshError_DefaultsTransient(t *testing.T) {
	transient := []error{
		&net.DNSError{Err: "no such host", Name: "api.closetapp.io"},
		context.DeadlineExceeded,
		errors.New("connection reset by peer"),
		errors.New("something entirely novel"),
	}
	for _, err := range transient {
		if got := ClassifyRefreshError(err); got != FailureTransient {
			t.Errorf("%q classified %q, want transient", err, got)
		}
	}
}
