// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/coursekeep/coursekeep/internal/auth"
)

// Cookie names.
const (
	TokenCookie   = "JWToken"
	SessionCookie = "session_id"
)

func (s *Server) setLoginCookies(w http.ResponseWriter, accessToken, sessionToken string) {
	maxAge := int(auth.SessionTokenExpiry.Seconds())
	http.SetCookie(w, s.cookie(TokenCookie, accessToken, maxAge))
	http.SetCookie(w, s.cookie(SessionCookie, sessionToken, maxAge))
}

func (s *Server) clearLoginCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(TokenCookie, "", -1))
	http.SetCookie(w, s.cookie(SessionCookie, "", -1))
}

func (s *Server) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// localRedirect returns target when it is a path on this site, else "/".
func localRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return target
}
