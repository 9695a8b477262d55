package app

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/kmrl/opsboard/internal/auth"
	"github.com/kmrl/opsboard/internal/observability"
	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/shared"
)

// Request rate ceilings.
const (
	GlobalRateLimit = 60
	WriteRateLimit  = 30
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
}

// MiddlewareStack is the chain of session-aware routes: sessions, login
// state, security headers, rate limiting and CSRF.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	var uploadLimit int64 = 10 << 20
	if cfg.Config != nil && cfg.Config.UploadMaxBytes > 0 {
		uploadLimit = cfg.Config.UploadMaxBytes
	}

	return []func(http.Handler) http.Handler{
		cfg.SessionManager.Middleware(logger),
		auth.Middleware,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(GlobalRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		CSRFMiddleware(cfg.CSRFManager, uploadLimit, logger),
	}
}

// BaseStack is the chain every request passes, static assets and probes
// included.
func BaseStack(metrics *observability.Metrics) []func(http.Handler) http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
	}
	if metrics != nil {
		middlewares = append(middlewares, metrics.Middleware)
	}
	return append(middlewares, middleware.Recoverer)
}

// CSRFMiddleware verifies the session token on unsafe form requests. JSON
// endpoints under /api/ are exempt; they authenticate by session and never
// read form bodies. Multipart bodies are capped at maxBody before the token
// is read, and an oversized upload is bounced back with a flash.
func CSRFMiddleware(csrf *shared.CSRFManager, maxBody int64, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			token := r.Header.Get(shared.CSRFHeader)
			if token == "" {
				if isMultipart(r) {
					r.Body = http.MaxBytesReader(w, r.Body, maxBody)
					if err := r.ParseMultipartForm(maxBody); err != nil {
						var tooLarge *http.MaxBytesError
						if errors.As(err, &tooLarge) {
							sess.AddFlash(shared.FlashError, "The file is larger than the upload limit")
							http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
							return
						}
						httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form body")
						return
					}
				}
				token = r.PostFormValue(shared.CSRFFormField)
			}
			if err := csrf.Verify(sess, token); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeLimiter throttles mutating endpoints per signed-in user.
func writeLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		WriteRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(auth.RateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "write limit reached, try again shortly")
		}),
	)
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
