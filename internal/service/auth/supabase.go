package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
)

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	SessionID    string                 `json:"session_id"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// supabaseUser is the subset of GET /auth/v1/user we rely on.
type supabaseUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// SupabaseVerifier validates Supabase access tokens locally with the project
// JWT secret and, when enabled, asks the auth server whether the session is
// still live.
type SupabaseVerifier struct {
	secret       []byte
	audience     string
	introspect   bool
	appAdminOnly bool
	client       *resty.Client
	breaker      *gobreaker.CircuitBreaker
}

func NewSupabaseVerifier(cfg config.SupabaseConfig) *SupabaseVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "supabase-auth",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &SupabaseVerifier{
		secret:       []byte(cfg.JWTSecret),
		audience:     cfg.Audience,
		introspect:   cfg.Introspect,
		appAdminOnly: cfg.AppMetadataAdminOnly,
		client:       client,
		breaker:      breaker,
	}
}

func (v *SupabaseVerifier) isAdmin(appMeta, userMeta map[string]interface{}) bool {
	if v.appAdminOnly {
		return adminFrom(appMeta)
	}
	return adminFrom(appMeta, userMeta)
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, missingToken()
	}

	var principal *model.Principal
	if len(v.secret) > 0 {
		p, err := v.verifyLocal(token)
		if err != nil {
			return nil, err
		}
		principal = p
	}

	if !v.introspect {
		return principal, nil
	}

	user, err := v.fetchUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if principal != nil && principal.ID != user.ID {
		return nil, invalidToken(errors.New("session user does not match token subject"))
	}

	return &model.Principal{
		ID:       user.ID,
		Email:    user.Email,
		IsAdmin:  v.isAdmin(user.AppMetadata, user.UserMetadata),
		Provider: config.ProviderSupabase,
	}, nil
}

func (v *SupabaseVerifier) verifyLocal(token string) (*model.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &supabaseClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, invalidToken(err)
	}
	if claims.Subject == "" {
		return nil, invalidToken(errors.New("token has no subject"))
	}

	return &model.Principal{
		ID:       claims.Subject,
		Email:    claims.Email,
		IsAdmin:  v.isAdmin(claims.AppMetadata, claims.UserMetadata),
		Provider: config.ProviderSupabase,
	}, nil
}

func (v *SupabaseVerifier) fetchUser(ctx context.Context, token string) (*supabaseUser, error) {
	var user supabaseUser

	// Only transport errors and 5xx count against the breaker; a rejected
	// session is a normal answer.
	res, err := v.breaker.Execute(func() (interface{}, error) {
		resp, err := v.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetResult(&user).
			Get("/auth/v1/user")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("auth server returned status %d", resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session introspection failed: %w", err)
	}

	resp := res.(*resty.Response)
	switch {
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, invalidToken(errors.New("session rejected by auth server"))
	case !resp.IsSuccess():
		return nil, fmt.Errorf("session introspection returned status %d", resp.StatusCode())
	case user.ID == "":
		return nil, invalidToken(errors.New("auth server returned no user"))
	}
	return &user, nil
}
