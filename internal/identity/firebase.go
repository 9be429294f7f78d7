package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultFirebaseBaseURL is the hosted Identity Toolkit endpoint.
const DefaultFirebaseBaseURL = "https://identitytoolkit.googleapis.com"

// Firebase talks to the Identity Toolkit REST API with email and password
// accounts. Tokens are the provider's ID tokens.
type Firebase struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewFirebase creates a Firebase provider. An empty baseURL uses
// DefaultFirebaseBaseURL; a nil client uses http.DefaultClient.
func NewFirebase(apiKey, baseURL string, client *http.Client, logger *slog.Logger) *Firebase {
	if baseURL == "" {
		baseURL = DefaultFirebaseBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Firebase{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("component", "firebase_identity"),
	}
}

type credentialsRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenRequest struct {
	IDToken string `json:"idToken"`
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type lookupResponse struct {
	Users []accountResponse `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates an account and returns it signed in.
func (f *Firebase) SignUp(ctx context.Context, email, password string) (*User, error) {
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	var resp accountResponse
	if err := f.call(ctx, "accounts:signUp", credentialsRequest{email, password, true}, &resp); err != nil {
		return nil, err
	}
	return resp.user(resp.IDToken), nil
}

// SignIn checks credentials and returns the user with a fresh ID token.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*User, error) {
	var resp accountResponse
	if err := f.call(ctx, "accounts:signInWithPassword", credentialsRequest{email, password, true}, &resp); err != nil {
		return nil, err
	}
	return resp.user(resp.IDToken), nil
}

// Lookup resolves an ID token to its account.
func (f *Firebase) Lookup(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var resp lookupResponse
	if err := f.call(ctx, "accounts:lookup", tokenRequest{IDToken: token}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, ErrUnauthenticated
	}
	return resp.Users[0].user(token), nil
}

// UpdateProfile sets the display name of the token's account.
func (f *Firebase) UpdateProfile(ctx context.Context, token, displayName string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var resp accountResponse
	req := updateRequest{IDToken: token, DisplayName: strings.TrimSpace(displayName)}
	if err := f.call(ctx, "accounts:update", req, &resp); err != nil {
		return nil, err
	}
	return resp.user(token), nil
}

// SignOut checks that the token is still valid. ID tokens cannot be revoked
// individually; the caller discards it and it lapses at expiry.
func (f *Firebase) SignOut(ctx context.Context, token string) error {
	_, err := f.Lookup(ctx, token)
	return err
}

func (a accountResponse) user(token string) *User {
	return &User{ID: a.LocalID, Email: a.Email, DisplayName: a.DisplayName, Token: token}
}

func (f *Firebase) call(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("identity: encode %s: %w", method, err)
	}

	endpoint := f.baseURL + "/v1/" + method + "?key=" + url.QueryEscape(f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		// The request URL carries the API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("identity: %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("identity: read %s: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		f.logger.Debug("identity call rejected", "method", method, "status", resp.StatusCode, "code", e.Error.Message)
		return mapFirebaseError(resp.StatusCode, e.Error.Message)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("identity: decode %s: %w", method, err)
	}
	return nil
}

// mapFirebaseError converts the provider's error codes. Some codes carry a
// " : detail" suffix.
func mapFirebaseError(status int, message string) error {
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_EXISTS":
		return ErrEmailTaken
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "MISSING_PASSWORD":
		return ErrInvalidCredentials
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return ErrInvalidEmail
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return ErrUnauthenticated
	}
	if message == "" {
		return fmt.Errorf("identity: unexpected status %d", status)
	}
	return fmt.Errorf("identity: provider error %d: %s", status, message)
}
