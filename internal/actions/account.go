package actions

import (
	"context"
	"log/slog"
	"net/mail"
	"time"

	"github.com/tjfontaine/movegate/internal/auth"
	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/pipeline"
)

const minPasswordLength = 8

// RegisterInput is the input of the register action.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// Validate checks the email address and password length.
func (in RegisterInput) Validate() error {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return &domain.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if len(in.Password) < minPasswordLength {
		return &domain.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	return nil
}

// LogValue omits the password.
func (in RegisterInput) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", in.Email), slog.String("name", in.Name))
}

// NewRegisterAction creates the register action.
func NewRegisterAction(client *pipeline.Client, authn *auth.Authenticator) *pipeline.Action[RegisterInput, *domain.User] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "register"},
		func(ctx context.Context, ec domain.ExecutionContext, in RegisterInput) (*domain.User, error) {
			return authn.Register(ctx, auth.Registration{
				Email:    in.Email,
				Name:     in.Name,
				Password: in.Password,
			})
		})
}

// SignInInput is the input of the sign-in action. Bearer asks for the token
// in the response body instead of a session cookie.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Bearer   bool   `json:"bearer,omitempty"`
}

// Validate requires both fields.
func (in SignInInput) Validate() error {
	if in.Email == "" || in.Password == "" {
		return &domain.ValidationError{Message: "email and password are required"}
	}
	return nil
}

// LogValue omits the password.
func (in SignInInput) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", in.Email))
}

// SignInOutput is returned by a successful sign-in. Token is never encoded;
// the HTTP layer stores it in the session cookie. AccessToken carries the
// same token in the body only for bearer sign-ins.
type SignInOutput struct {
	User        *domain.User `json:"user"`
	Token       string       `json:"-"`
	AccessToken string       `json:"accessToken,omitempty"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// UsesCookie reports whether the session should be stored in a cookie.
func (out *SignInOutput) UsesCookie() bool {
	return out.AccessToken == ""
}

// LogValue omits the token.
func (out *SignInOutput) LogValue() slog.Value {
	if out == nil || out.User == nil {
		return slog.StringValue("")
	}
	return slog.GroupValue(
		slog.String("user_id", out.User.ID),
		slog.Time("expires_at", out.ExpiresAt),
	)
}

// NewSignInAction creates the sign-in action.
func NewSignInAction(client *pipeline.Client, authn *auth.Authenticator, sessions TokenIssuer) *pipeline.Action[SignInInput, *SignInOutput] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "sign-in"},
		func(ctx context.Context, ec domain.ExecutionContext, in SignInInput) (*SignInOutput, error) {
			user, err := authn.AuthenticateWithPassword(ctx, in.Email, in.Password)
			if err != nil {
				return nil, err
			}
			token, expires, err := sessions.Issue(user)
			if err != nil {
				return nil, err
			}
			out := &SignInOutput{User: user, Token: token, ExpiresAt: expires}
			if in.Bearer {
				out.AccessToken = token
			}
			return out, nil
		})
}
