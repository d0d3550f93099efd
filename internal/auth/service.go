// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/pkg/errutil"
)

// User-facing rejection messages.
const (
	MsgEmailRegistered    = "Email is already registered!"
	MsgUsernameRegistered = "Username is already registered!"
	MsgPasswordMismatch   = "The password and confirmation password do not match."
	MsgInvalidCredentials = "Email or password is incorrect."
	MsgInvalidUserOrRole  = "Invalid user ID or role."
	MsgAlreadyInRole      = "User is already assigned to this role."
	MsgAssignRoleFailed   = "Something went wrong while assigning the role."
)

// ResetEmailSubject is the subject line of the password reset message.
const ResetEmailSubject = "Reset your password"

// Issuer mints access tokens.
type Issuer interface {
	Issue(identity *Identity, roles []string, claims []Claim) (*AccessToken, error)
}

// Notifier delivers an HTML message to one address.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Service implements registration, login, role assignment and password
// recovery. It holds no per-identity state between calls.
type Service struct {
	store    CredentialStore
	issuer   Issuer
	notifier Notifier
	resetURL string
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service. resetURL is the absolute address of the
// reset-password page; the token and email are appended as query
// parameters.
func NewService(store CredentialStore, issuer Issuer, notifier Notifier, resetURL string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential store is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("notifier is required")
	}
	if _, err := url.Parse(resetURL); err != nil || resetURL == "" {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
			With("reset_url", resetURL).
			Errorf("reset URL must be a valid URL")
	}

	s := &Service{
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		resetURL: resetURL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an identity, grants it the default role and signs it in.
func (s *Service) Register(ctx context.Context, fullName, userName, email, password, confirmPassword string) (*Result, error) {
	if password != confirmPassword {
		return rejected(MsgPasswordMismatch), nil
	}

	identity, err := NewIdentity(fullName, userName, email)
	if err != nil {
		return rejected(validationMessage(err)), nil
	}

	taken, err := s.exists(ctx, s.store.FindByEmail, identity.Email)
	if err != nil {
		return nil, s.fail("register: email lookup failed", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find by email").
			Wrap(err))
	}
	if taken {
		return rejected(MsgEmailRegistered), nil
	}

	taken, err = s.exists(ctx, s.store.FindByUsername, identity.Username)
	if err != nil {
		return nil, s.fail("register: username lookup failed", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find by username").
			Wrap(err))
	}
	if taken {
		return rejected(MsgUsernameRegistered), nil
	}

	reasons, err := s.store.Create(ctx, identity, password, DefaultRole)
	if err != nil {
		return nil, s.fail("register: create identity failed", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create identity with default role").
			Wrap(err))
	}
	if len(reasons) > 0 {
		return rejected(strings.Join(reasons, ", ")), nil
	}

	s.logger.Info("identity registered",
		"identity_id", identity.ID.String(),
		"username", identity.Username)

	return s.signIn(ctx, identity)
}

// Authenticate verifies email and password and issues a token. Unknown
// email and wrong password produce the same rejection.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Result, error) {
	identity, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, s.fail("authenticate: lookup failed", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find by email").
				Wrap(err))
		}
		identity = nil
	}

	// A nil identity is still verified against a dummy hash.
	ok, err := s.store.VerifyPassword(ctx, identity, password)
	if err != nil {
		return nil, s.fail("authenticate: password verification failed", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(err))
	}
	if identity == nil || !ok {
		return rejected(MsgInvalidCredentials), nil
	}

	return s.signIn(ctx, identity)
}

func (s *Service) signIn(ctx context.Context, identity *Identity) (*Result, error) {
	roles, err := s.store.GetRoles(ctx, identity)
	if err != nil {
		return nil, s.fail("sign in: role lookup failed", oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "get roles").
			Wrap(err))
	}
	claims, err := s.store.GetClaims(ctx, identity)
	if err != nil {
		return nil, s.fail("sign in: claim lookup failed", oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "get claims").
			Wrap(err))
	}

	token, err := s.issuer.Issue(identity, roles, claims)
	if err != nil {
		return nil, s.fail("sign in: token issue failed", oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "issue token").
			With("identity_id", identity.ID.String()).
			Wrap(err))
	}
	return authenticated(identity, token), nil
}

// AssignRole grants roleName to the identity with the given ID. It returns
// an empty string on success and a rejection message otherwise. Only a
// failed lookup is reported as an error; a failed grant is logged and
// reported with a generic message.
func (s *Service) AssignRole(ctx context.Context, userID, roleName string) (string, error) {
	id, err := ulid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return MsgInvalidUserOrRole, nil
	}
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return MsgInvalidUserOrRole, nil
	}

	identity, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MsgInvalidUserOrRole, nil
		}
		return "", s.fail("assign role: identity lookup failed", oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "find by id").
			With("identity_id", userID).
			Wrap(err))
	}

	exists, err := s.store.RoleExists(ctx, roleName)
	if err != nil {
		return "", s.fail("assign role: role lookup failed", oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "role exists").
			With("role", roleName).
			Wrap(err))
	}
	if !exists {
		return MsgInvalidUserOrRole, nil
	}

	member, err := s.store.IsInRole(ctx, identity, roleName)
	if err != nil {
		return "", s.fail("assign role: membership lookup failed", oops.Code("AUTH_ASSIGN_ROLE_FAILED").
			With("operation", "is in role").
			With("role", roleName).
			Wrap(err))
	}
	if member {
		return MsgAlreadyInRole, nil
	}

	if err := s.store.AddRole(ctx, identity, roleName); err != nil {
		errutil.LogError(s.logger, "assign role: grant failed", err)
		return MsgAssignRoleFailed, nil
	}

	s.logger.Info("role assigned",
		"identity_id", identity.ID.String(),
		"role", roleName)
	return "", nil
}

// RequestPasswordReset mints a reset token for email and mails a link to
// it. It returns false, without sending anything, when no identity has that
// email. Store and delivery failures are returned as errors.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	identity, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, s.fail("password reset request: lookup failed", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "find by email").
			Wrap(err))
	}

	token, err := s.store.GeneratePasswordResetToken(ctx, identity)
	if err != nil {
		return false, s.fail("password reset request: token generation failed", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			With("identity_id", identity.ID.String()).
			Wrap(err))
	}

	link := ResetLink(s.resetURL, token, identity.Email)
	if err := s.notifier.Send(ctx, identity.Email, ResetEmailSubject, resetEmailBody(link)); err != nil {
		return false, s.fail("password reset request: delivery failed", oops.Code("RESET_DELIVERY_FAILED").
			With("operation", "send reset email").
			With("identity_id", identity.ID.String()).
			Wrap(err))
	}

	s.logger.Info("password reset requested", "identity_id", identity.ID.String())
	return true, nil
}

// CompletePasswordReset sets a new password when token is accepted by the
// store. An unknown email or a rejected token yields false.
func (s *Service) CompletePasswordReset(ctx context.Context, email, token, newPassword string) (bool, error) {
	identity, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, s.fail("password reset: lookup failed", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find by email").
			Wrap(err))
	}

	ok, err := s.store.ResetPassword(ctx, identity, token, newPassword)
	if err != nil {
		return false, s.fail("password reset: store failed", oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "reset password").
			With("identity_id", identity.ID.String()).
			Wrap(err))
	}
	if ok {
		s.logger.Info("password reset completed", "identity_id", identity.ID.String())
	}
	return ok, nil
}

// CurrentIdentity returns the identity of the principal on ctx, or nil when
// ctx carries no principal or the principal's account no longer exists.
func (s *Service) CurrentIdentity(ctx context.Context) (*Identity, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Email == "" {
		return nil, nil
	}
	identity, err := s.store.FindByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_CURRENT_IDENTITY_FAILED").
			With("operation", "find by email").
			Wrap(err)
	}
	return identity, nil
}

// ResetLink builds the reset-password URL carrying token and email.
func ResetLink(base, token, email string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stoken=%s&email=%s", base, sep, url.QueryEscape(token), url.QueryEscape(email))
}

func resetEmailBody(link string) string {
	escaped := html.EscapeString(link)
	return fmt.Sprintf(
		`<p>We received a request to reset your password.</p>`+
			`<p><a href="%s">Reset your password</a></p>`+
			`<p>If you did not ask for this, you can ignore this message. The link expires in one hour.</p>`,
		escaped)
}

func (s *Service) exists(ctx context.Context, find func(context.Context, string) (*Identity, error), key string) (bool, error) {
	_, err := find(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) fail(msg string, err error) error {
	errutil.LogError(s.logger, msg, err)
	return err
}

// validationMessage returns the human-readable part of a validation error.
func validationMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}
