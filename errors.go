package utsavAuth

import "errors"

var (
	// ErrServiceNotReady is returned when a Service method is called on a nil or closed Service.
	ErrServiceNotReady = errors.New("auth service not ready")
	// ErrInvalidCredentials is returned before any I/O when the username is empty.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRejected marks a sign-in response with a non-success status.
	ErrLoginRejected = errors.New("login rejected")
	// ErrTransport marks failures where no usable backend response was obtained.
	ErrTransport = errors.New("backend transport failure")
	// ErrSessionPersistFailed is returned when a successful login could not be stored.
	ErrSessionPersistFailed = errors.New("session persist failed")
	// ErrSessionClearFailed is reported in LogoutResult when storage cleanup fails.
	ErrSessionClearFailed = errors.New("session clear failed")
	// ErrRegistrationFailed wraps a rejected account-creation request.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrNoSession is returned by operations that need an authenticated session.
	ErrNoSession = errors.New("no authenticated session")
	// ErrPersonalInfoUnavailable is returned when personal information cannot be fetched or saved.
	ErrPersonalInfoUnavailable = errors.New("personal information unavailable")
)
