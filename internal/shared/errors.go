package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential source failures
	ErrInvalidCredentials   = fmt.Errorf("invalid account credentials")
	ErrSecondFactorRequired = fmt.Errorf("second factor required")
	ErrLoginThrottled       = fmt.Errorf("login throttled")
	ErrCodeExpiredOrInvalid = fmt.Errorf("one-time code expired or invalid")
	ErrUnsupportedAction    = fmt.Errorf("unsupported corrective action")
	ErrInvalidRefreshToken  = fmt.Errorf("invalid refresh token")
	ErrNoCredential         = fmt.Errorf("no credential installed")

	// Session lifecycle
	ErrSessionFailed = fmt.Errorf("session failed")
	ErrClientClosed  = fmt.Errorf("client closed")

	// Interactive flows
	ErrPromptUnavailable = fmt.Errorf("interactive prompt unavailable")

	// Storage errors
	ErrCredentialNotFound = fmt.Errorf("stored credential not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
