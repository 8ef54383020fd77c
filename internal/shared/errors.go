package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authorization flow errors
	ErrStateMismatch          = fmt.Errorf("authorization state mismatch")
	ErrProviderDenied         = fmt.Errorf("authorization denied by provider")
	ErrMissingCode            = fmt.Errorf("authorization code missing")
	ErrExchangeFailed         = fmt.Errorf("authorization code exchange failed")
	ErrNotAuthenticated       = fmt.Errorf("not authenticated")
	ErrRefreshFailed          = fmt.Errorf("token refresh failed")
	ErrTokenExpired           = fmt.Errorf("access token expired")
	ErrAuthenticationRejected = fmt.Errorf("authentication rejected by service")
	ErrTimeout                = fmt.Errorf("operation timed out")

	// Chart errors
	ErrChartUnavailable = fmt.Errorf("chart unavailable")
	ErrInvalidYear      = fmt.Errorf("invalid chart year")
	ErrNoChartData      = fmt.Errorf("no chart data")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrSearchFailed       = fmt.Errorf("track search failed")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrBuildCanceled      = fmt.Errorf("playlist build canceled")
	ErrBuildNotFound      = fmt.Errorf("build not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ProviderDeniedError carries the error code the provider sent back on the callback
// (e.g. "access_denied"). It matches [ErrProviderDenied] with errors.Is.
type ProviderDeniedError struct {
	Reason string
}

func (e *ProviderDeniedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrProviderDenied, e.Reason)
}

func (e *ProviderDeniedError) Unwrap() error { return ErrProviderDenied }

// ExchangeFailedError wraps the transport or provider error from the token endpoint.
type ExchangeFailedError struct {
	Cause error
}

func (e *ExchangeFailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrExchangeFailed, e.Cause)
}

func (e *ExchangeFailedError) Unwrap() []error { return []error{ErrExchangeFailed, e.Cause} }

// RefreshFailedError wraps the error returned by the refresh grant.
type RefreshFailedError struct {
	Cause error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRefreshFailed, e.Cause)
}

func (e *RefreshFailedError) Unwrap() []error { return []error{ErrRefreshFailed, e.Cause} }
