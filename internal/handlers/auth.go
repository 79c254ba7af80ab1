package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/logging"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/validation"
)

// AuthHandler implements signup, login and logout for browser sessions.
type AuthHandler struct {
	Users        UserStore
	Sessions     SessionManager
	Validator    *validation.Validator
	Renderer     Renderer
	CookieSecure bool
	SessionTTL   time.Duration
	NowFunc      func() time.Time
}

type signUpForm struct {
	Username        string `form:"username" validate:"required,max=150,username"`
	Password        string `form:"password1" validate:"required,min=8,max=128"`
	PasswordConfirm string `form:"password2" validate:"required,eqfield=Password"`
}

type loginForm struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required"`
}

type formContent struct {
	Username string
	Next     string
	Errors   map[string]string
	Message  string
}

// SignUpPage handles GET /signup/.
func (h AuthHandler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	render(r.Context(), w, h.Renderer, http.StatusOK, "signup", "Sign up", formContent{})
}

// SignUp handles POST /signup/.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		renderError(ctx, w, h.Renderer, http.StatusBadRequest)
		return
	}
	form := signUpForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Password:        r.PostFormValue("password1"),
		PasswordConfirm: r.PostFormValue("password2"),
	}
	content := formContent{Username: form.Username}

	if err := h.validate(form); err != nil {
		logger.Warn("signup rejected", "username", form.Username, "error", err)
		content.Errors = fieldErrors(err)
		render(ctx, w, h.Renderer, http.StatusBadRequest, "signup", "Sign up", content)
		return
	}

	hashed, err := auth.HashPassword(form.Password)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  form.Username,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "username", form.Username)
			content.Errors = map[string]string{"username": "is already taken"}
			render(ctx, w, h.Renderer, http.StatusConflict, "signup", "Sign up", content)
			return
		}
		logger.Error("signup failed to create user", "error", err, "username", form.Username)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	logger.Info("user signed up", "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LoginPage handles GET /login/.
func (h AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(r.Context(), w, h.Renderer, http.StatusOK, "login", "Log in", formContent{
		Next: safeNext(r.URL.Query().Get("next")),
	})
}

// Login handles POST /login/.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		renderError(ctx, w, h.Renderer, http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	content := formContent{Username: form.Username, Next: safeNext(r.PostFormValue("next"))}

	if err := h.validate(form); err != nil {
		content.Errors = fieldErrors(err)
		render(ctx, w, h.Renderer, http.StatusBadRequest, "login", "Log in", content)
		return
	}

	user, err := h.Users.FindByUsername(ctx, form.Username)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("login user lookup failed", "error", err)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return
	}
	if err != nil || auth.CheckPassword(user.Password, form.Password) != nil {
		logger.Warn("login rejected", "username", form.Username)
		content.Message = "Invalid username or password."
		render(ctx, w, h.Renderer, http.StatusUnauthorized, "login", "Log in", content)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	target := content.Next
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout handles POST /logout/.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && h.Sessions != nil {
		h.Sessions.Revoke(r.Context(), cookie.Value)
	}
	h.setCookie(w, "", -1)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user models.User) bool {
	ctx := r.Context()
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Sessions.Revoke(ctx, cookie.Value)
	}

	session, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "userId", user.ID)
		renderError(ctx, w, h.Renderer, http.StatusInternalServerError)
		return false
	}

	maxAge := int(session.ExpiresAt.Sub(h.now()).Seconds())
	if h.SessionTTL > 0 {
		maxAge = int(h.SessionTTL.Seconds())
	}
	h.setCookie(w, session.Token, maxAge)
	return true
}

func (h AuthHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h AuthHandler) validate(form any) error {
	v := h.Validator
	if v == nil {
		v = validation.New()
	}
	return v.Validate(form)
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func fieldErrors(err error) map[string]string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return map[string]string{"form": "is invalid"}
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
