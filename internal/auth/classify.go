package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/closetapp/closetd/internal/clients/closetapi"
)

// FailureClass separates refresh failures that end a session from those
// that should not.
type FailureClass string

const (
	// FailurePermanent means the stored credentials were rejected: the
	// session is gone and must be cleared.
	FailurePermanent FailureClass = "permanent"

	// FailureTransient covers network faults, timeouts, and anything
	// unclassifiable. The conservative default: a false permanent verdict
	// destroys a valid session, a false transient one merely trusts a
	// stale session for a bounded window.
	FailureTransient FailureClass = "transient"
)

// permanentMarkers are message fragments that indicate the backend rejected
// the credentials even when no HTTP status is available.
var permanentMarkers = []string{
	"invalid token",
	"invalid refresh token",
	"token expired",
	"token is expired",
	"unauthorized",
	"invalid_grant",
}

// ClassifyRefreshError decides whether a refresh failure is permanent or
// transient. Ambiguity resolves to transient.
func ClassifyRefreshError(err error) FailureClass {
	if err == nil {
		return FailureTransient
	}

	var apiErr *closetapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return FailurePermanent
		}
		return FailureTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return FailurePermanent
		}
	}
	return FailureTransient
}
