package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// Source produces a full credential from whatever login material its variant
// holds. Implementations are safe to call again after a recoverable failure.
type Source interface {
	Authenticate(ctx context.Context) (*Credential, error)
}

// PromptFunc collects one line of input from the user, shown the given
// message. Implementations must be safe for concurrent use; the prompt
// package serializes overlapping prompts.
type PromptFunc func(ctx context.Context, message string) (string, error)

// SecondFactorError reports a login rejected pending a second factor. It
// carries the verification methods the account accepts so an interactive
// caller can name them.
type SecondFactorError struct {
	Methods []string
}

func (e *SecondFactorError) Error() string {
	if len(e.Methods) == 0 {
		return "second factor required"
	}
	return fmt.Sprintf("second factor required via %s", strings.Join(e.Methods, ", "))
}

func (e *SecondFactorError) Unwrap() error {
	return shared.ErrSecondFactorRequired
}

// translateGrantError maps platform error codes surfaced by a grant onto the
// package's failure taxonomy. Errors without a recognized code pass through
// unchanged.
func translateGrantError(err error) error {
	if err == nil {
		return nil
	}
	switch transport.ErrorCode(err) {
	case transport.CodeInvalidAccountCredentials:
		return fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
	case transport.CodeExchangeCodeNotFound, transport.CodeAuthorizationCodeNotFound:
		return fmt.Errorf("%w: %w", shared.ErrCodeExpiredOrInvalid, err)
	case transport.CodeInvalidRefreshToken:
		return fmt.Errorf("%w: %w", shared.ErrInvalidRefreshToken, err)
	case transport.CodeThrottled:
		return fmt.Errorf("%w: %w", shared.ErrLoginThrottled, err)
	case transport.CodeTwoFactorRequired:
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) {
			return &SecondFactorError{Methods: apiErr.MessageVars}
		}
		return &SecondFactorError{}
	}
	return err
}
