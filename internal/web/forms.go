// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import "github.com/coursekeep/coursekeep/internal/auth"

// Shape checks run before the service is called. Composition rules for
// passwords are the credential store's business, not the form's.

type registerForm struct {
	FullName        string
	UserName        string
	Email           string
	Password        string
	ConfirmPassword string
}

func (f registerForm) validate() []string {
	errs := collect(
		auth.ValidateFullName(f.FullName),
		auth.ValidateUsername(f.UserName),
		auth.ValidateEmail(f.Email),
		auth.ValidatePassword(f.Password),
	)
	if f.Password != f.ConfirmPassword {
		errs = append(errs, auth.MsgPasswordMismatch)
	}
	return errs
}

type loginForm struct {
	Email    string
	Password string
}

func (f loginForm) validate() []string {
	var errs []string
	if err := auth.ValidateEmail(f.Email); err != nil {
		errs = append(errs, err.Error())
	}
	if f.Password == "" {
		errs = append(errs, "password is required")
	}
	return errs
}

type resetForm struct {
	Email           string
	Token           string
	Password        string
	ConfirmPassword string
}

func (f resetForm) validate() []string {
	errs := collect(
		auth.ValidateEmail(f.Email),
		auth.ValidatePassword(f.Password),
	)
	if f.Token == "" {
		errs = append(errs, MsgTokenRequired)
	}
	if f.Password != f.ConfirmPassword {
		errs = append(errs, auth.MsgPasswordMismatch)
	}
	return errs
}

func collect(errs ...error) []string {
	var out []string
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}
