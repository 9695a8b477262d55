package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmrl/opsboard/internal/auth"
	fleethttp "github.com/kmrl/opsboard/internal/fleet/http"
	"github.com/kmrl/opsboard/internal/ingest"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/observability"
	"github.com/kmrl/opsboard/internal/shared"
	"github.com/kmrl/opsboard/internal/simulation"
	"github.com/kmrl/opsboard/internal/view"
)

func validConfig() *Config {
	return &Config{
		AppEnv:                 "development",
		SessionSecret:          "session-secret",
		CSRFSecret:             "csrf-secret",
		SessionTTL:             time.Hour,
		CacheTTL:               time.Minute,
		PollOverviewInterval:   time.Hour,
		PollCollectionInterval: time.Hour,
		UploadMaxBytes:         1 << 20,
		FixturesFallback:       true,
		BootstrapEmail:         "ops@kmrl.test",
		BootstrapPassword:      "correct-horse",
		BootstrapName:          "Depot Ops",
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.SessionSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.UpstreamURL = "ops.internal:8000"
	assert.ErrorContains(t, cfg.Validate(), "UPSTREAM_URL")

	cfg = validConfig()
	cfg.MLServiceURL = "http://ml.internal:5000"
	cfg.GotenbergURL = "http://gotenberg:3000"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.UploadMaxBytes = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("APP_ENV", "production")
	t.Setenv("POLL_OVERVIEW_INTERVAL", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.PollOverviewInterval)
	assert.Equal(t, 5*time.Minute, cfg.PollCollectionInterval)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.True(t, cfg.FixturesFallback)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoggerLevelAndFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("component", "test"))
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"component":"test"`)

	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerWithRedis(t)
	return srv
}

func newTestServerWithRedis(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := validConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &Backend{Config: cfg, Logger: logger, Redis: client}

	ctx := context.Background()
	services, err := NewServices(ctx, backend, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, services.Repository)
	assert.Equal(t, "rules", services.ML.EngineName())

	metrics := observability.NewMetrics()
	feeds, err := NewFeeds(cfg, services.Fleet, metrics.Poll(), logger)
	require.NoError(t, err)
	require.NoError(t, feeds.Start(ctx))
	t.Cleanup(feeds.Stop)
	require.Eventually(t, func() bool {
		return feeds.Overview.Snapshot().Loaded && feeds.Trainsets.Snapshot().Loaded
	}, 2*time.Second, 10*time.Millisecond)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)

	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: shared.NewSessionManager(client, "opsboard_session", cfg.SessionTTL, false),
		CSRFManager:    csrf,
		Metrics:        metrics,
		AuthHandler:    auth.NewHandler(logger, services.Auth, templates, csrf),
		FleetHandler: fleethttp.NewHandler(fleethttp.Config{
			Service: services.Fleet, Feeds: feeds, Templates: templates, CSRF: csrf, Logger: logger,
		}),
		IngestHandler:     ingest.NewHandler(services.Ingest, templates, csrf, cfg.UploadMaxBytes, logger),
		MLHandler:         mlsched.NewHandler(services.ML, templates, csrf, logger),
		SimulationHandler: simulation.NewHandler(simulation.NewService(logger), templates, csrf, logger),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mr
}

func sessionKeys(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "session:") {
			keys = append(keys, k)
		}
	}
	return keys
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func login(t *testing.T, srv *httptest.Server, client *http.Client) {
	t.Helper()
	resp, err := client.Get(srv.URL + "/login")
	require.NoError(t, err)
	page := body(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := csrfField.FindStringSubmatch(page)
	require.Len(t, m, 2, "login form carries a csrf token")

	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email": {"ops@kmrl.test"}, "password": {"correct-horse"}, "csrf_token": {m[1]},
	})
	require.NoError(t, err)
	_ = body(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestRouterProbesAndAssets(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, body(t, resp))

	resp, err = client.Get(srv.URL + "/static/css/app.css")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, err = client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "opsboard_http_requests_total")
}

func TestRouterPublicAPIAndLoginGate(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/api/stats/overview/")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), `"totalTrains"`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/fitness")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, "/login?next=%2Ffitness", resp.Header.Get("Location"))

	resp, err = client.Post(srv.URL+"/api/simulations/run/", "application/json", strings.NewReader(`{"description":"signal failure"}`))
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/api/nothing-here/")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")
}

func TestRouterAnonymousPollsLeaveNoSessions(t *testing.T) {
	srv, mr := newTestServerWithRedis(t)
	client := newClient(t)

	for range 25 {
		resp, err := client.Get(srv.URL + "/api/stats/overview/")
		require.NoError(t, err)
		_ = body(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Cookies())
	}
	assert.Empty(t, sessionKeys(mr))

	login(t, srv, client)
	assert.Len(t, sessionKeys(mr), 1)
}

func TestRouterRejectsFormWithoutCSRF(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)

	resp, err := client.PostForm(srv.URL+"/login", url.Values{"email": {"ops@kmrl.test"}, "password": {"correct-horse"}})
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouterLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	client := newClient(t)
	login(t, srv, client)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	page := body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Trains Ready")
	assert.Contains(t, page, "Welcome back, Depot Ops")

	resp, err = client.Get(srv.URL + "/fitness?status=Valid")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(srv.URL+"/api/simulations/run/", "application/json", strings.NewReader(`{"description":"signal failure at Aluva"}`))
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "signal failure at Aluva")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/no-such-page")
	require.NoError(t, err)
	_ = body(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestCSRFMiddlewareBouncesOversizedUpload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "s", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")

	reached := false
	h := sessions.Middleware(nil)(CSRFMiddleware(csrf, 64, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	payload := "--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"x.csv\"\r\n\r\n" + strings.Repeat("x", 512) + "\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(payload))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/upload", rr.Header().Get("Location"))
}
