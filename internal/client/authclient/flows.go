package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/models"
)

// CallbackURL is the deep link the server embeds in magic-link mails.
const CallbackURL = "beitak://auth/callback"

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type signUpRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
}

type confirmResetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// SendMagicLink asks the server to mail a sign-in link with a one-time code.
func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Invalid("email", "please enter your email")
	}
	return c.call(ctx, "send magic link", http.MethodPost, "/api/auth/otp", "", emailRequest{Email: email}, nil)
}

// VerifyCode redeems a one-time code and signs in.
func (c *Client) VerifyCode(ctx context.Context, email, code string) error {
	const op = "verify code"
	var tok models.AuthToken
	req := verifyRequest{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code)}
	if err := c.call(ctx, op, http.MethodPost, "/api/auth/verify", "", req, &tok); err != nil {
		return err
	}
	return c.signedIn(op, tok)
}

// SignUp creates a password account and signs in. confirm must repeat password.
func (c *Client) SignUp(ctx context.Context, fullName, email, password, confirm string) error {
	const op = "sign up"
	switch {
	case strings.TrimSpace(fullName) == "":
		return apperr.Invalid("full_name", "please enter your full name")
	case strings.TrimSpace(email) == "":
		return apperr.Invalid("email", "please enter your email")
	case password != confirm:
		return apperr.Invalid("confirm_password", "passwords do not match")
	}

	var tok models.AuthToken
	req := signUpRequest{FullName: strings.TrimSpace(fullName), Email: strings.TrimSpace(email), Password: password}
	if err := c.call(ctx, op, http.MethodPost, "/api/auth/signup", "", req, &tok); err != nil {
		return err
	}
	return c.signedIn(op, tok)
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	const op = "sign in"
	if strings.TrimSpace(email) == "" || password == "" {
		return apperr.Invalid("email", "please enter your email and password")
	}
	var tok models.AuthToken
	req := signInRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.call(ctx, op, http.MethodPost, "/api/auth/login", "", req, &tok); err != nil {
		return err
	}
	return c.signedIn(op, tok)
}

// SignInWithIDToken exchanges an ID token from an identity provider (the
// mobile app's "Continue with Google") for a session.
func (c *Client) SignInWithIDToken(ctx context.Context, provider, idToken string) error {
	const op = "provider sign in"
	provider = strings.ToLower(strings.TrimSpace(provider))
	idToken = strings.TrimSpace(idToken)
	switch {
	case provider == "":
		return apperr.Invalid("provider", "please choose a sign-in provider")
	case idToken == "":
		return apperr.Invalid("id_token", "no id token was returned by %s", provider)
	}
	var tok models.AuthToken
	req := oauthRequest{Provider: provider, IDToken: idToken}
	if err := c.call(ctx, op, http.MethodPost, "/api/auth/oauth", "", req, &tok); err != nil {
		return err
	}
	return c.signedIn(op, tok)
}

// ResetPassword requests a reset code for email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Invalid("email", "please enter your email")
	}
	return c.call(ctx, "reset password", http.MethodPost, "/api/auth/reset", "", emailRequest{Email: email}, nil)
}

// ConfirmReset sets a new password using a reset code. The session is not changed.
func (c *Client) ConfirmReset(ctx context.Context, email, code, password string) error {
	req := confirmResetRequest{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code), Password: password}
	return c.call(ctx, "confirm reset", http.MethodPost, "/api/auth/reset/confirm", "", req, nil)
}

// SignOut revokes the token on the server and forgets it locally. The local
// sign-out happens even when the server call fails; that error is returned.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.AccessToken()
	var err error
	if token != "" {
		err = c.call(ctx, "sign out", http.MethodPost, "/api/auth/logout", token, nil, nil)
		if errors.Is(err, apperr.ErrUnauthorized) {
			err = nil
		}
	}
	c.signedOut("user")
	return err
}

// HandleDeepLink completes a sign-in from the auth callback link. The link
// carries either an access token (query or fragment) or an email and code.
func (c *Client) HandleDeepLink(ctx context.Context, link string) error {
	const op = "auth callback"
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return &apperr.AuthError{Op: op, Err: err}
	}
	if u.Scheme != "beitak" || u.Host != "auth" || u.Path != "/callback" {
		return &apperr.AuthError{Op: op, Err: errors.New("not an auth callback link")}
	}

	params := u.Query()
	if frag, err := url.ParseQuery(u.Fragment); err == nil {
		for k, v := range frag {
			if _, ok := params[k]; !ok {
				params[k] = v
			}
		}
	}

	if msg := params.Get("error_description"); msg != "" {
		return &apperr.AuthError{Op: op, Err: errors.New(msg)}
	}
	if msg := params.Get("error"); msg != "" {
		return &apperr.AuthError{Op: op, Err: errors.New(msg)}
	}

	if token := params.Get("access_token"); token != "" {
		info, err := c.fetchSession(ctx, token)
		if err != nil {
			return err
		}
		return c.signedIn(op, models.AuthToken{AccessToken: token, UserID: info.UserID, ExpiresAt: info.ExpiresAt})
	}
	if email, code := params.Get("email"), params.Get("code"); email != "" && code != "" {
		return c.VerifyCode(ctx, email, code)
	}
	return &apperr.AuthError{Op: op, Err: errors.New("link carries no credentials")}
}

// CheckSession confirms the current token with the server and signs out
// locally when it expired or was revoked. Transport failures leave the
// session untouched.
func (c *Client) CheckSession(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if !cur.IsAuthenticated() {
		return nil
	}
	if !cur.ExpiresAt.IsZero() && !c.now().Before(cur.ExpiresAt) {
		c.signedOut("expired")
		return nil
	}

	_, err := c.fetchSession(ctx, cur.AccessToken)
	if errors.Is(err, apperr.ErrUnauthorized) {
		c.signedOut("revoked")
		return nil
	}
	return err
}

// StartSessionWatch checks the session every interval until ctx is done.
func (c *Client) StartSessionWatch(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.CheckSession(ctx); err != nil {
					c.log.Warn("session check failed", zap.Error(err))
				}
			}
		}
	}()
}
