// ABOUTME: Login, registration, guest access and logout handlers
// ABOUTME: Login checks username, password and chosen role together

package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/2389/cultural-storyteller/internal/auth"
)

type loginView struct {
	Username string
	Role     string
	Roles    []auth.Role
}

type registerView struct {
	Username string
	Email    string
	Role     string
	Roles    []auth.Role
}

var registrableRoles = []auth.Role{auth.RoleStoryteller, auth.RoleAudience}

// handleLoginPage renders the login page
func (a *Web) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := a.page(w, r, "Login", loginView{Role: string(auth.RoleStoryteller), Roles: registrableRoles})
	a.renderPage(w, http.StatusOK, "login", data)
}

func (a *Web) renderLoginError(w http.ResponseWriter, r *http.Request, status int, view loginView, msg string) {
	view.Roles = registrableRoles
	data := a.page(w, r, "Login", view)
	data.Error = msg
	a.renderPage(w, status, "login", data)
}

// handleLogin processes login form submission
func (a *Web) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.renderLoginError(w, r, http.StatusBadRequest, loginView{}, "Invalid form data")
		return
	}

	view := loginView{
		Username: strings.TrimSpace(r.FormValue("username")),
		Role:     r.FormValue("role"),
	}

	if !a.validateCSRF(r) {
		a.renderLoginError(w, r, http.StatusForbidden, view, "Invalid request, please try again")
		return
	}

	password := r.FormValue("password")
	if view.Username == "" || password == "" {
		a.renderLoginError(w, r, http.StatusBadRequest, view, "Username and password required")
		return
	}
	role, err := auth.ParseRole(view.Role)
	if err != nil || role == auth.RoleGuest {
		a.renderLoginError(w, r, http.StatusBadRequest, view, "Choose storyteller or audience")
		return
	}

	sess, err := a.auth.Login(r.Context(), view.Username, password, role)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.metrics.RecordLogin("invalid")
		a.renderLoginError(w, r, http.StatusUnauthorized, view, "Invalid username, password or role")
		return
	}
	if err != nil {
		a.metrics.RecordLogin("error")
		a.logger.Error("login failed", "error", err)
		a.renderLoginError(w, r, http.StatusInternalServerError, view, "An error occurred")
		return
	}

	userID := sess.User.ID
	if err := a.createSession(w, r, &userID, sess.Role); err != nil {
		a.metrics.RecordLogin("error")
		a.logger.Error("failed to create session", "error", err)
		a.renderLoginError(w, r, http.StatusInternalServerError, view, "An error occurred")
		return
	}

	a.metrics.RecordLogin("success")
	a.logger.Info("login successful", "username", view.Username, "role", role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleGuestLogin starts a guest session with no account behind it
func (a *Web) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	if !a.checkForm(w, r) {
		return
	}

	guest := a.auth.Guest()
	if err := a.createSession(w, r, nil, guest.Role); err != nil {
		a.serverError(w, r, "failed to create guest session", err)
		return
	}
	a.metrics.RecordLogin("guest")
	http.Redirect(w, r, "/stories", http.StatusSeeOther)
}

// handleRegisterPage renders the registration form
func (a *Web) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	data := a.page(w, r, "Create Account", registerView{Role: string(auth.RoleStoryteller), Roles: registrableRoles})
	a.renderPage(w, http.StatusOK, "register", data)
}

func (a *Web) renderRegisterError(w http.ResponseWriter, r *http.Request, status int, view registerView, msg string) {
	view.Roles = registrableRoles
	data := a.page(w, r, "Create Account", view)
	data.Error = msg
	a.renderPage(w, status, "register", data)
}

// handleRegister processes the registration form
func (a *Web) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.renderRegisterError(w, r, http.StatusBadRequest, registerView{}, "Invalid form data")
		return
	}

	view := registerView{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Role:     r.FormValue("role"),
	}

	if !a.validateCSRF(r) {
		a.renderRegisterError(w, r, http.StatusForbidden, view, "Invalid request, please try again")
		return
	}

	password := r.FormValue("password")
	if password != r.FormValue("confirm_password") {
		a.renderRegisterError(w, r, http.StatusBadRequest, view, "Passwords do not match")
		return
	}
	role, err := auth.ParseRole(view.Role)
	if err != nil || role == auth.RoleGuest {
		a.renderRegisterError(w, r, http.StatusBadRequest, view, "Choose storyteller or audience")
		return
	}

	_, err = a.auth.Register(r.Context(), view.Username, password, role, view.Email)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAlreadyExists):
		a.metrics.RecordRegistration("exists")
		a.renderRegisterError(w, r, http.StatusConflict, view, "Username already taken")
		return
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
		a.metrics.RecordRegistration("invalid")
		a.renderRegisterError(w, r, http.StatusBadRequest, view, validationMessage(err))
		return
	default:
		a.metrics.RecordRegistration("error")
		a.logger.Error("registration failed", "error", err)
		a.renderRegisterError(w, r, http.StatusInternalServerError, view, "An error occurred")
		return
	}

	a.metrics.RecordRegistration("success")
	http.Redirect(w, r, "/login?notice=registered", http.StatusSeeOther)
}

// handleLogout logs out the current session
func (a *Web) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil && !a.validateCSRF(r) {
		a.logger.Warn("logout request with invalid CSRF token")
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		_ = a.store.DeleteSession(r.Context(), cookie.Value)
	}
	a.clearCookie(w, SessionCookieName)
	a.clearCookie(w, CSRFCookieName)

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// validationMessage strips the sentinel prefix from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
