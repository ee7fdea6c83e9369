package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/studyhub/studyfeed/pkg/backend/rest"
	"github.com/studyhub/studyfeed/pkg/credentials"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
)

// LocalTokenPrefix marks credentials minted for the offline drivers.
const LocalTokenPrefix = "local:"

// AuthUser is the identity returned by the auth endpoints.
type AuthUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int      `json:"expires_in"`
	User        AuthUser `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService signs the user in and out. Credentials persist through pkg/credentials.
type AuthService struct {
	http *resty.Client
	now  func() time.Time
}

func NewAuthService(http *resty.Client) *AuthService {
	return &AuthService{http: http, now: time.Now}
}

func (s *AuthService) credentialsFrom(resp *LoginResponse) *credentials.Credentials {
	creds := &credentials.Credentials{
		AccessToken: resp.AccessToken,
		UserID:      resp.User.UID,
		Email:       resp.User.Email,
		DisplayName: resp.User.DisplayName,
		PhotoURL:    resp.User.PhotoURL,
	}
	if resp.ExpiresIn > 0 {
		creds.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return creds
}

// Login exchanges email and password for an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*credentials.Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, clierrors.ValidationError("email", "email cannot be empty")
	}
	if password == "" {
		return nil, clierrors.ValidationError("password", "password cannot be empty")
	}

	logger.Debug("Logging in", "email", email)
	var out LoginResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/api/v1/auth/login")
	if err := rest.CheckResponse(resp, err); err != nil {
		return nil, authFailure(err)
	}
	return s.store(&out)
}

// LoginWithToken validates an existing token against the backend.
func (s *AuthService) LoginWithToken(ctx context.Context, token string) (*credentials.Credentials, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, clierrors.ValidationError("token", "token cannot be empty")
	}
	var user AuthUser
	resp, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/api/v1/auth/me")
	if err := rest.CheckResponse(resp, err); err != nil {
		return nil, authFailure(err)
	}
	return s.store(&LoginResponse{AccessToken: token, User: user})
}

// LoginLocal creates an identity for the offline drivers; no server is involved.
func (s *AuthService) LoginLocal(email, name string) (*credentials.Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, clierrors.ValidationError("email", "email cannot be empty")
	}
	uid := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	return s.store(&LoginResponse{
		AccessToken: LocalTokenPrefix + uid,
		User:        AuthUser{UID: uid, Email: email, DisplayName: strings.TrimSpace(name)},
	})
}

func (s *AuthService) store(resp *LoginResponse) (*credentials.Credentials, error) {
	if resp.AccessToken == "" || resp.User.UID == "" {
		return nil, clierrors.AuthError("Login response was missing the token or user")
	}
	creds := s.credentialsFrom(resp)
	if err := credentials.Save(creds); err != nil {
		return nil, clierrors.WriteError("save credentials", err)
	}
	if !strings.HasPrefix(creds.AccessToken, LocalTokenPrefix) {
		s.http.SetAuthToken(creds.AccessToken)
	}
	logger.Info("Logged in", "uid", creds.UserID)
	return creds, nil
}

func authFailure(err error) error {
	if cliErr := clierrors.CategorizeError(err); cliErr != nil && cliErr.Type != clierrors.ErrorTypeUnknown {
		return cliErr
	}
	return clierrors.AuthError("Login failed: " + err.Error())
}

// WhoAmI returns the stored credentials, or an auth error when signed out.
func (s *AuthService) WhoAmI() (*credentials.Credentials, error) {
	creds, err := credentials.Load()
	if err != nil {
		return nil, clierrors.ReadError("Failed to load credentials", err)
	}
	if creds == nil || !creds.IsValid() {
		return nil, clierrors.AuthError("Not logged in").WithSuggestion("Run 'studyfeed auth login' first")
	}
	return creds, nil
}

// Logout ends the session and drops the auth header.
func (s *AuthService) Logout(ctx context.Context, session *credentials.Session) error {
	if session != nil {
		if err := session.SignOut(ctx); err != nil {
			return clierrors.WriteError("delete credentials", err)
		}
	} else if err := credentials.Delete(); err != nil {
		return clierrors.WriteError("delete credentials", err)
	}
	s.http.SetAuthToken("")
	s.http.Header.Del("Authorization")
	logger.Info("Logged out")
	return nil
}
