package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/beitak/beitak/internal/apperr"
)

// ProviderGoogle is the only identity provider the mobile client offers.
const ProviderGoogle = "google"

const (
	googleIssuer  = "https://accounts.google.com"
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// ErrInvalidIDToken signals an ID token that failed verification or carries
// no verified email.
var ErrInvalidIDToken = errors.New("invalid id token")

// Identity is what a verified ID token tells us about the user.
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// IDTokenVerifier checks a provider-issued ID token.
type IDTokenVerifier interface {
	Verify(ctx context.Context, provider, rawIDToken string) (Identity, error)
}

// OIDCVerifier verifies ID tokens of registered OpenID Connect providers.
type OIDCVerifier struct {
	mu        sync.RWMutex
	verifiers map[string]*oidc.IDTokenVerifier
}

// NewOIDCVerifier returns a verifier with no providers registered.
func NewOIDCVerifier() *OIDCVerifier {
	return &OIDCVerifier{verifiers: make(map[string]*oidc.IDTokenVerifier)}
}

// Register makes provider's tokens verifiable by v.
func (o *OIDCVerifier) Register(provider string, v *oidc.IDTokenVerifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verifiers[provider] = v
}

// NewGoogleVerifier verifies Google ID tokens issued to clientID. Signing keys
// are fetched lazily from Google and cached.
func NewGoogleVerifier(ctx context.Context, clientID string) *oidc.IDTokenVerifier {
	keys := oidc.NewRemoteKeySet(ctx, googleJWKSURL)
	return oidc.NewVerifier(googleIssuer, keys, &oidc.Config{ClientID: clientID})
}

// Verify checks rawIDToken against provider's keys, issuer and audience and
// requires a verified email claim.
func (o *OIDCVerifier) Verify(ctx context.Context, provider, rawIDToken string) (Identity, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	o.mu.RLock()
	v, ok := o.verifiers[provider]
	o.mu.RUnlock()
	if !ok {
		return Identity{}, apperr.Invalid("provider", "sign-in with %q is not available", provider)
	}

	tok, err := v.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := tok.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Identity{}, fmt.Errorf("%w: email not verified", ErrInvalidIDToken)
	}
	return Identity{Provider: provider, Subject: tok.Subject, Email: claims.Email}, nil
}
