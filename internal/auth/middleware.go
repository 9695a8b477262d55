package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/httprate"

	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/view"
)

// Middleware restores the login context from the request session.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := FromSession(shared.SessionFromContext(r.Context()))
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), c)))
	})
}

// RequireLogin rejects requests that are not LoggedIn. API callers get a 401
// problem; browsers are sent to the login form with a return path.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).LoggedIn() {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		target := "/login"
		if r.Method == http.MethodGet && r.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// safeNext accepts only local absolute paths as a post-login destination.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// PageData assembles the layout data of a page for the signed-in user: the
// CSRF token, the pending flash and the header name.
func PageData(r *http.Request, csrf *shared.CSRFManager, title string, data any) view.TemplateData {
	td := view.TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if c := FromContext(r.Context()); c.LoggedIn() {
		td.User = c.DisplayName()
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if csrf != nil {
			td.CSRFToken = csrf.EnsureToken(sess)
		}
		td.Flash = sess.PopFlash()
	}
	return td
}

// RateKey keys rate limits by the signed-in user, falling back to the client
// IP for anonymous requests.
func RateKey(r *http.Request) (string, error) {
	if c := FromContext(r.Context()); c.LoggedIn() {
		return "user:" + c.UserID(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
