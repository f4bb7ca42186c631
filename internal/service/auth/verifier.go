// Package auth verifies bearer credentials against the configured identity
// provider and normalizes them into a model.Principal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Verifier validates a bearer token and yields the caller's principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Principal, error)
}

func missingToken() error {
	return apperrors.Unauthorized("Authorization token required", ErrMissingToken)
}

func invalidToken(cause error) error {
	if cause == nil {
		cause = ErrInvalidToken
	} else {
		cause = fmt.Errorf("%w: %v", ErrInvalidToken, cause)
	}
	return apperrors.Unauthorized("Invalid or expired token", cause)
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", missingToken()
	}

	parts := strings.SplitN(header, " ", 2)
	if !strings.EqualFold(parts[0], "bearer") {
		return "", invalidToken(errors.New("invalid authorization format"))
	}
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", missingToken()
	}
	return strings.TrimSpace(parts[1]), nil
}

// NewVerifier builds the verifier for the configured provider.
func NewVerifier(cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Provider {
	case config.ProviderFirebase:
		return NewFirebaseVerifier(cfg.Firebase), nil
	case config.ProviderSupabase:
		return NewSupabaseVerifier(cfg.Supabase), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
