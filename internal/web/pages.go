// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names. Each is rendered inside templates/layout.html.
const (
	pageHome                       = "home"
	pageRegister                   = "register"
	pageLogin                      = "login"
	pageForgotPassword             = "forgot_password"
	pageForgotPasswordConfirmation = "forgot_password_confirmation"
	pageResetPassword              = "reset_password"
	pageResetPasswordConfirmation  = "reset_password_confirmation"
)

var pageTitles = map[string]string{
	pageHome:                       "Home",
	pageRegister:                   "Register",
	pageLogin:                      "Log in",
	pageForgotPassword:             "Forgot password",
	pageForgotPasswordConfirmation: "Check your email",
	pageResetPassword:              "Reset password",
	pageResetPasswordConfirmation:  "Password reset",
}

// pageData is the model every page template receives.
type pageData struct {
	Title     string
	Principal *auth.Principal
	Message   string
	Errors    []string
	Form      map[string]string
	ReturnURL string
}

type pages struct {
	templates map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{templates: make(map[string]*template.Template, len(pageTitles))}
	for name := range pageTitles {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_FAILED").With("page", name).Wrap(err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// render executes the page into a buffer so a template failure never
// leaves a half-written response.
func (p *pages) render(w http.ResponseWriter, status int, name string, data *pageData) error {
	tmpl, ok := p.templates[name]
	if !ok {
		return oops.Code("WEB_TEMPLATE_FAILED").With("page", name).Errorf("unknown page")
	}
	if data.Title == "" {
		data.Title = pageTitles[name]
	}
	if data.Form == nil {
		data.Form = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return oops.Code("WEB_RENDER_FAILED").With("page", name).Wrap(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect mid-write
	w.Write(buf.Bytes())
	return nil
}
