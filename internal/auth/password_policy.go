// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"fmt"
	"unicode"
)

// PasswordPolicy describes the composition rules a new password must meet.
type PasswordPolicy struct {
	MinLength              int  `koanf:"min_length" yaml:"min_length"`
	RequireDigit           bool `koanf:"require_digit" yaml:"require_digit"`
	RequireLower           bool `koanf:"require_lower" yaml:"require_lower"`
	RequireUpper           bool `koanf:"require_upper" yaml:"require_upper"`
	RequireNonAlphanumeric bool `koanf:"require_non_alphanumeric" yaml:"require_non_alphanumeric"`
}

// DefaultPasswordPolicy returns the policy applied when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              MinPasswordLength,
		RequireDigit:           true,
		RequireLower:           true,
		RequireUpper:           true,
		RequireNonAlphanumeric: true,
	}
}

// Check returns one human-readable reason per violated rule, in a stable
// order. An empty result means the password is acceptable.
func (p PasswordPolicy) Check(password string) []string {
	var reasons []string

	if len(password) < p.MinLength {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength))
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasOther = true
		}
	}

	if p.RequireNonAlphanumeric && !hasOther {
		reasons = append(reasons, "Passwords must have at least one non alphanumeric character.")
	}
	if p.RequireDigit && !hasDigit {
		reasons = append(reasons, "Passwords must have at least one digit ('0'-'9').")
	}
	if p.RequireLower && !hasLower {
		reasons = append(reasons, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.RequireUpper && !hasUpper {
		reasons = append(reasons, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	return reasons
}
