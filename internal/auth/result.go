// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import "time"

// Result is the outcome of Register and Authenticate.
//
// A rejected request has IsAuthenticated false and a human-readable Message;
// the remaining fields are only populated on success.
type Result struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	Message         string    `json:"message,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	Email           string    `json:"email,omitempty"`
	UserName        string    `json:"userName,omitempty"`
	Token           string    `json:"token,omitempty"`
	TokenID         string    `json:"-"`
	ExpiresOn       time.Time `json:"expiresOn,omitempty"`
	Roles           []string  `json:"roles,omitempty"`
}

func rejected(msg string) *Result {
	return &Result{Message: msg}
}

func authenticated(identity *Identity, token *AccessToken) *Result {
	return &Result{
		IsAuthenticated: true,
		UserID:          identity.ID.String(),
		Email:           identity.Email,
		UserName:        identity.Username,
		Token:           token.Token,
		TokenID:         token.ID,
		ExpiresOn:       token.ExpiresOn,
		Roles:           token.Roles,
	}
}
