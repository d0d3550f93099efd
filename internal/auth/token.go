// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MinSigningKeyBytes is the shortest HS256 key accepted.
const MinSigningKeyBytes = 32

// TokenConfig configures access-token signing. All fields are required.
type TokenConfig struct {
	SigningKey   []byte
	Issuer       string
	Audience     string
	DurationDays int
}

// Validate reports the first missing or malformed setting. The returned
// error wraps ErrConfiguration.
func (c TokenConfig) Validate() error {
	switch {
	case len(c.SigningKey) == 0:
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("field", "signing_key").
			Wrapf(ErrConfiguration, "signing key is required")
	case len(c.SigningKey) < MinSigningKeyBytes:
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("field", "signing_key").
			With("length", len(c.SigningKey)).
			Wrapf(ErrConfiguration, "signing key must be at least %d bytes", MinSigningKeyBytes)
	case c.Issuer == "":
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("field", "issuer").
			Wrapf(ErrConfiguration, "issuer is required")
	case c.Audience == "":
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("field", "audience").
			Wrapf(ErrConfiguration, "audience is required")
	case c.DurationDays < 1:
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("field", "duration_days").
			With("duration_days", c.DurationDays).
			Wrapf(ErrConfiguration, "token duration must be at least one day")
	}
	return nil
}

// Duration returns the configured token lifetime.
func (c TokenConfig) Duration() time.Duration {
	return time.Duration(c.DurationDays) * 24 * time.Hour
}

// AccessToken is a signed, time-bounded assertion of identity and roles.
type AccessToken struct {
	Token     string
	ID        string
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresOn time.Time
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	Subject   string
	TokenID   string
	Email     string
	UserID    string
	Roles     []string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Custom    map[string][]string
}

// HasRole reports whether the token carries the named role.
func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	cfg   TokenConfig
	now   func() time.Time
	newID func() string
}

// NewTokenIssuer creates a TokenIssuer. A missing or short signing key is a
// configuration error.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	cfg.SigningKey = key

	return &TokenIssuer{
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *t
	c.now = now
	return &c
}

// Issue builds and signs a token for identity.
//
// Claims are assembled in this order: sub, jti, email, uid, the identity's
// custom claims, then roles. Custom claims that use a registered name are
// dropped. A claim type with one value is encoded as a string and with
// several as an array; roles is always an array.
func (t *TokenIssuer) Issue(identity *Identity, roles []string, claims []Claim) (*AccessToken, error) {
	if identity == nil || identity.Username == "" || identity.Email == "" {
		return nil, oops.Code("TOKEN_INVALID_IDENTITY").
			Errorf("identity must have a username and email")
	}

	issuedAt := t.now().UTC().Truncate(time.Second)
	expiresOn := issuedAt.Add(t.cfg.Duration())
	tokenID := t.newID()

	set := NewClaimSet()
	set.Add(ClaimSubject, identity.Username)
	set.Add(ClaimTokenID, tokenID)
	set.Add(ClaimEmail, identity.Email)
	set.Add(ClaimUserID, identity.ID.String())
	set.Merge(claims)

	roleSet := NewClaimSet()
	for _, r := range roles {
		roleSet.Add(ClaimRoles, r)
	}
	roleValues := roleSet.Values(ClaimRoles)

	mapClaims := jwt.MapClaims{}
	for _, typ := range set.Types() {
		vals := set.Values(typ)
		if len(vals) == 1 {
			mapClaims[typ] = vals[0]
		} else {
			mapClaims[typ] = vals
		}
	}
	mapClaims[ClaimRoles] = roleValues
	mapClaims[ClaimIssuer] = t.cfg.Issuer
	mapClaims[ClaimAudience] = t.cfg.Audience
	mapClaims[ClaimIssuedAt] = jwt.NewNumericDate(issuedAt)
	mapClaims[ClaimExpiresAt] = jwt.NewNumericDate(expiresOn)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(t.cfg.SigningKey)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").
			With("subject", identity.Username).
			Wrap(err)
	}

	return &AccessToken{
		Token:     signed,
		ID:        tokenID,
		Subject:   identity.Username,
		Roles:     roleValues,
		IssuedAt:  issuedAt,
		ExpiresOn: expiresOn,
	}, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry, and
// returns the token's claims. There is no clock-skew allowance.
func (t *TokenIssuer) Parse(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_EMPTY").Errorf("access token cannot be empty")
	}

	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (any, error) { return t.cfg.SigningKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(t.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, oops.Code("TOKEN_INVALID").Errorf("unexpected claims type %T", parsed.Claims)
	}

	out := &AccessClaims{
		Subject: stringClaim(mapClaims, ClaimSubject),
		TokenID: stringClaim(mapClaims, ClaimTokenID),
		Email:   stringClaim(mapClaims, ClaimEmail),
		UserID:  stringClaim(mapClaims, ClaimUserID),
		Issuer:  stringClaim(mapClaims, ClaimIssuer),
		Roles:   stringsClaim(mapClaims, ClaimRoles),
		Custom:  make(map[string][]string),
	}
	if aud, err := mapClaims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	for typ := range mapClaims {
		if IsReservedClaim(typ) {
			continue
		}
		out.Custom[typ] = stringsClaim(mapClaims, typ)
	}

	if out.Subject == "" || out.Email == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token is missing subject or email")
	}
	return out, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

func stringsClaim(claims jwt.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}
