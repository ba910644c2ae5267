package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable covers transport failures, timeouts and any
	// non-2xx answer after the single refresh retry.
	ErrRemoteUnavailable = errors.New("remote calendar unavailable")
	// ErrNoCredential means the principal never authorized calendar access.
	ErrNoCredential = errors.New("advisor has no calendar credential")
	// ErrRefreshUnavailable means the credential is stale and cannot be renewed.
	ErrRefreshUnavailable = errors.New("calendar credential cannot be refreshed")
)

func remoteErr(resource string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrRemoteUnavailable, resource, fmt.Sprintf(format, args...))
}
