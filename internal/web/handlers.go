// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/internal/observability"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

// Messages shown by the boundary itself.
const (
	MsgGenericError     = "Something went wrong. Please try again later."
	MsgInvalidResetLink = "The password reset link is invalid or has expired."
	MsgTokenRequired    = "The reset token is required."
	MsgBadForm          = "The form could not be read."
)

// Auth event names for metrics.
const (
	eventRegister      = "register"
	eventLogin         = "login"
	eventLogout        = "logout"
	eventResetRequest  = "password_reset_request"
	eventResetComplete = "password_reset_complete"
	eventAssignRole    = "assign_role"
)

type errorBody struct {
	Error string `json:"error"`
}

type roleResponse struct {
	Succeeded bool   `json:"succeeded"`
	Message   string `json:"message,omitempty"`
}

type meResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	UserName string   `json:"userName"`
	FullName string   `json:"fullName"`
	Major    *string  `json:"major,omitempty"`
	Roles    []string `json:"roles"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect mid-write
	json.NewEncoder(w).Encode(body)
}

func principalPtr(r *http.Request) *auth.Principal {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return &p
	}
	return nil
}

func (s *Server) page(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	if data == nil {
		data = &pageData{}
	}
	data.Principal = principalPtr(r)
	if err := s.pages.render(w, status, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render page", errutil.Attrs(err)...)
		http.Error(w, MsgGenericError, http.StatusInternalServerError)
	}
}

// internalError logs err and answers with the generic message.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, name, event string, data *pageData, err error) {
	s.logger.ErrorContext(r.Context(), event+" failed", errutil.Attrs(err)...)
	s.metrics.RecordAuthEvent(event, observability.OutcomeError)
	data.Message = MsgGenericError
	s.page(w, r, http.StatusInternalServerError, name, data)
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageHome, nil)
}

func (s *Server) showRegister(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageRegister, nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageRegister, &pageData{Message: MsgBadForm})
		return
	}
	f := registerForm{
		FullName:        formValue(r, "FullName"),
		UserName:        formValue(r, "UserName"),
		Email:           formValue(r, "Email"),
		Password:        r.PostFormValue("Password"),
		ConfirmPassword: r.PostFormValue("ConfirmPassword"),
	}
	data := &pageData{Form: map[string]string{
		"FullName": f.FullName,
		"UserName": f.UserName,
		"Email":    f.Email,
	}}
	if errs := f.validate(); len(errs) > 0 {
		data.Errors = errs
		s.page(w, r, http.StatusBadRequest, pageRegister, data)
		return
	}

	result, err := s.auth.Register(r.Context(), f.FullName, f.UserName, f.Email, f.Password, f.ConfirmPassword)
	if err != nil {
		s.internalError(w, r, pageRegister, eventRegister, data, err)
		return
	}
	if !result.IsAuthenticated {
		s.metrics.RecordAuthEvent(eventRegister, observability.OutcomeRejected)
		data.Message = result.Message
		s.page(w, r, http.StatusOK, pageRegister, data)
		return
	}

	s.metrics.RecordAuthEvent(eventRegister, observability.OutcomeSuccess)
	s.signIn(w, r, pageRegister, data, result, "/")
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageLogin, &pageData{ReturnURL: localRedirect(r.URL.Query().Get("ReturnUrl"))})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageLogin, &pageData{Message: MsgBadForm})
		return
	}
	returnURL := r.PostFormValue("ReturnUrl")
	if returnURL == "" {
		returnURL = r.URL.Query().Get("ReturnUrl")
	}
	f := loginForm{Email: formValue(r, "Email"), Password: r.PostFormValue("Password")}
	data := &pageData{
		Form:      map[string]string{"Email": f.Email},
		ReturnURL: localRedirect(returnURL),
	}
	if errs := f.validate(); len(errs) > 0 {
		data.Errors = errs
		s.page(w, r, http.StatusBadRequest, pageLogin, data)
		return
	}

	result, err := s.auth.Authenticate(r.Context(), f.Email, f.Password)
	if err != nil {
		s.internalError(w, r, pageLogin, eventLogin, data, err)
		return
	}
	if !result.IsAuthenticated {
		s.metrics.RecordAuthEvent(eventLogin, observability.OutcomeRejected)
		data.Message = result.Message
		s.page(w, r, http.StatusOK, pageLogin, data)
		return
	}

	s.metrics.RecordAuthEvent(eventLogin, observability.OutcomeSuccess)
	s.signIn(w, r, pageLogin, data, result, data.ReturnURL)
}

// signIn starts the server-side session, sets the login cookies and
// redirects to target.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, name string, data *pageData, result *auth.Result, target string) {
	_, sessionToken, err := s.sessions.Start(r.Context(), result, r.UserAgent(), clientIP(r))
	if err != nil {
		s.internalError(w, r, name, eventLogin, data, err)
		return
	}
	s.setLoginCookies(w, result.Token, sessionToken)
	http.Redirect(w, r, localRedirect(target), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.sessions.End(r.Context(), c.Value); err != nil {
			s.logger.WarnContext(r.Context(), "logout: end session", errutil.Attrs(err)...)
		}
	}
	s.clearLoginCookies(w)
	s.metrics.RecordAuthEvent(eventLogout, observability.OutcomeSuccess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageForgotPassword, nil)
}

// forgotPassword answers the same way whether or not the address belongs to
// an account.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageForgotPassword, &pageData{Message: MsgBadForm})
		return
	}
	email := formValue(r, "Email")
	data := &pageData{Form: map[string]string{"Email": email}}
	if err := auth.ValidateEmail(email); err != nil {
		data.Errors = []string{err.Error()}
		s.page(w, r, http.StatusBadRequest, pageForgotPassword, data)
		return
	}

	sent, err := s.auth.RequestPasswordReset(r.Context(), email)
	if err != nil {
		s.internalError(w, r, pageForgotPassword, eventResetRequest, data, err)
		return
	}
	outcome := observability.OutcomeSuccess
	if !sent {
		outcome = observability.OutcomeRejected
	}
	s.metrics.RecordAuthEvent(eventResetRequest, outcome)
	s.page(w, r, http.StatusOK, pageForgotPasswordConfirmation, nil)
}

func (s *Server) showResetPassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.page(w, r, http.StatusOK, pageResetPassword, &pageData{Form: map[string]string{
		"Token": q.Get("token"),
		"Email": q.Get("email"),
	}})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageResetPassword, &pageData{Message: MsgBadForm})
		return
	}
	f := resetForm{
		Email:           formValue(r, "Email"),
		Token:           formValue(r, "Token"),
		Password:        r.PostFormValue("Password"),
		ConfirmPassword: r.PostFormValue("ConfirmPassword"),
	}
	data := &pageData{Form: map[string]string{"Email": f.Email, "Token": f.Token}}
	if errs := f.validate(); len(errs) > 0 {
		data.Errors = errs
		s.page(w, r, http.StatusBadRequest, pageResetPassword, data)
		return
	}

	ok, err := s.auth.CompletePasswordReset(r.Context(), f.Email, f.Token, f.Password)
	if err != nil {
		s.internalError(w, r, pageResetPassword, eventResetComplete, data, err)
		return
	}
	if !ok {
		s.metrics.RecordAuthEvent(eventResetComplete, observability.OutcomeRejected)
		data.Message = MsgInvalidResetLink
		s.page(w, r, http.StatusOK, pageResetPassword, data)
		return
	}
	s.metrics.RecordAuthEvent(eventResetComplete, observability.OutcomeSuccess)
	s.page(w, r, http.StatusOK, pageResetPasswordConfirmation, nil)
}

// assignRole is the admin-only JSON face of AuthService.AssignRole.
func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: MsgBadForm})
		return
	}
	msg, err := s.auth.AssignRole(r.Context(), formValue(r, "userId"), formValue(r, "roleName"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "assign role failed", errutil.Attrs(err)...)
		s.metrics.RecordAuthEvent(eventAssignRole, observability.OutcomeError)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: MsgGenericError})
		return
	}
	if msg != "" {
		s.metrics.RecordAuthEvent(eventAssignRole, observability.OutcomeRejected)
		writeJSON(w, http.StatusOK, roleResponse{Message: msg})
		return
	}
	s.metrics.RecordAuthEvent(eventAssignRole, observability.OutcomeSuccess)
	writeJSON(w, http.StatusOK, roleResponse{Succeeded: true})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.CurrentIdentity(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "current identity failed", errutil.Attrs(err)...)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: MsgGenericError})
		return
	}
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	roles := []string{}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && p.Roles != nil {
		roles = p.Roles
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:       identity.ID.String(),
		Email:    identity.Email,
		UserName: identity.Username,
		FullName: identity.FullName,
		Major:    identity.Major,
		Roles:    roles,
	})
}
