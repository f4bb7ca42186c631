package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
)

const (
	defaultFirebaseCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
	firebaseIssuerPrefix    = "https://securetoken.google.com/"
	defaultCertTTL          = time.Hour
)

var maxAgePattern = regexp.MustCompile(`max-age=(\d+)`)

// errCertsUnavailable marks a failure to load signing keys from Google. It is
// reported as a server error, not as a bad credential.
var errCertsUnavailable = errors.New("signing certificates unavailable")

// FirebaseVerifier validates Firebase ID tokens. Signing certificates are
// fetched from Google and kept for as long as the response's max-age allows.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *resty.Client
	keys      *cache.Cache
	refreshMu sync.Mutex
}

func NewFirebaseVerifier(cfg config.FirebaseConfig) *FirebaseVerifier {
	certsURL := cfg.CertsURL
	if certsURL == "" {
		certsURL = defaultFirebaseCertsURL
	}
	return &FirebaseVerifier{
		projectID: cfg.ProjectID,
		certsURL:  certsURL,
		client: resty.New().
			SetTimeout(10*time.Second).
			SetRetryCount(2).
			SetHeader("Accept", "application/json"),
		keys: cache.New(defaultCertTTL, 10*time.Minute),
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, missingToken()
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return v.keyFor(ctx, t) },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(firebaseIssuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if errors.Is(err, errCertsUnavailable) {
		return nil, fmt.Errorf("verifying firebase token: %w", err)
	}
	if err != nil {
		return nil, invalidToken(err)
	}

	uid, err := claims.GetSubject()
	if err != nil || uid == "" {
		return nil, invalidToken(errors.New("token has no subject"))
	}

	return &model.Principal{
		ID:       uid,
		Email:    stringClaim(claims, "email"),
		IsAdmin:  adminFrom(claims),
		Provider: config.ProviderFirebase,
	}, nil
}

func (v *FirebaseVerifier) keyFor(ctx context.Context, t *jwt.Token) (interface{}, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token has no kid header")
	}

	if key, found := v.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	if err := v.refresh(ctx, kid); err != nil {
		return nil, err
	}

	key, found := v.keys.Get(kid)
	if !found {
		return nil, fmt.Errorf("key with kid %q not found", kid)
	}
	return key.(*rsa.PublicKey), nil
}

// refresh downloads the current certificate set unless another caller
// already loaded kid while we waited for the lock.
func (v *FirebaseVerifier) refresh(ctx context.Context, kid string) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	if _, found := v.keys.Get(kid); found {
		return nil
	}

	resp, err := v.client.R().SetContext(ctx).Get(v.certsURL)
	if err != nil {
		return fmt.Errorf("%w: %v", errCertsUnavailable, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: certificate endpoint returned status %d", errCertsUnavailable, resp.StatusCode())
	}

	var certs map[string]string
	if err := json.Unmarshal(resp.Body(), &certs); err != nil {
		return fmt.Errorf("%w: decoding: %v", errCertsUnavailable, err)
	}

	ttl := maxAge(resp.Header().Get("Cache-Control"))
	for id, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			continue
		}
		v.keys.Set(id, key, ttl)
	}
	return nil
}

func maxAge(cacheControl string) time.Duration {
	m := maxAgePattern.FindStringSubmatch(cacheControl)
	if len(m) != 2 {
		return defaultCertTTL
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return defaultCertTTL
	}
	return time.Duration(secs) * time.Second
}
