package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	checker     CredentialChecker
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	now         func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, checker CredentialChecker, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger.With(slog.String("component", "auth")),
		checker:     checker,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		now:         time.Now,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

var fieldMessages = map[string]string{
	"Email":    "Enter a valid email address",
	"Password": "Password must be at least 8 characters",
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	viewData := PageData(r, h.csrfManager, "Sign in", data)
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if FromContext(r.Context()).LoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, loginPageData{Next: safeNext(r.URL.Query().Get("next"))})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	actx := FromContext(r.Context())
	next := safeNext(r.PostFormValue("next"))
	if actx.LoggedIn() {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessages[fieldErr.Field()]
			}
		}
	}

	if len(errs) == 0 {
		err := actx.Login(r.Context(), h.checker, form.Email, form.Password, h.now())
		if err == nil {
			if sess != nil {
				sess.Renew()
				actx.Save(sess)
				sess.AddFlash(shared.FlashSuccess, "Welcome back, "+actx.DisplayName())
			}
			h.logger.Info("login", slog.String("user", actx.UserID()))
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		h.logger.Warn("login rejected", slog.String("email", form.Email))
		errs["general"] = "Invalid email or password"
	}

	form.Password = ""
	h.render(w, r, http.StatusBadRequest, loginPageData{Form: form, Next: next, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	actx := FromContext(r.Context())
	if err := actx.Logout(); err == nil {
		h.logger.Info("logout")
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Destroy()
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
