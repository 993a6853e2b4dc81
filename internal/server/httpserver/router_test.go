package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type fakeService struct {
	registerErr error
	loginPair   *models.TokenPair
	loginErr    error
	refreshPair *models.TokenPair
	refreshErr  error
	logoutErr   error
	user        *models.User
	authErr     error

	loginCalls  int
	logoutToken string
	refreshTok  string
	authToken   string
}

func (f *fakeService) Register(_ context.Context, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: 1, Email: email}, nil
}

func (f *fakeService) Login(context.Context, string, string) (*models.TokenPair, error) {
	f.loginCalls++
	return f.loginPair, f.loginErr
}

func (f *fakeService) Refresh(_ context.Context, token string) (*models.TokenPair, error) {
	f.refreshTok = token
	return f.refreshPair, f.refreshErr
}

func (f *fakeService) Logout(_ context.Context, token string) error {
	f.logoutToken = token
	return f.logoutErr
}

func (f *fakeService) Authenticate(_ context.Context, token string) (*models.User, error) {
	f.authToken = token
	return f.user, f.authErr
}

func newRouter(svc AuthService, opts ...func(*RouterOptions)) http.Handler {
	o := RouterOptions{Service: svc}
	for _, fn := range opts {
		fn(&o)
	}
	return Router(o)
}

func do(t *testing.T, h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

const creds = `{"email":"a@example.com","password":"pw"}`

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"ok", creds, nil, http.StatusOK},
		{"duplicate", creds, common.ErrDuplicateEmail, http.StatusConflict},
		{"bad json", `{"email":`, nil, http.StatusBadRequest},
		{"unknown field", `{"email":"a@example.com","password":"pw","admin":true}`, nil, http.StatusBadRequest},
		{"missing password", `{"email":"a@example.com"}`, nil, http.StatusBadRequest},
		{"password too long", creds, common.ErrInvalidInput, http.StatusBadRequest},
		{"storage", creds, fmt.Errorf("%w: conn refused", common.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"other", creds, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newRouter(&fakeService{registerErr: tt.err}), http.MethodPost, "/users/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestRegister_NoInternalDetails(t *testing.T) {
	rec := do(t, newRouter(&fakeService{registerErr: fmt.Errorf("%w: dial tcp 10.0.0.1:5432", common.ErrStorageUnavailable)}),
		http.MethodPost, "/users/register", creds)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service unavailable", errorBody(t, rec))
}

func TestLogin_Success(t *testing.T) {
	svc := &fakeService{loginPair: &models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}
	rec := do(t, newRouter(svc, func(o *RouterOptions) { o.CookieSecure = true }), http.MethodPost, "/users/login", creds)

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, body)

	c := cookiesByName(rec)
	require.Contains(t, c, "access_token")
	require.Contains(t, c, "refresh_token")
	assert.Equal(t, "acc", c["access_token"].Value)
	assert.Equal(t, "ref", c["refresh_token"].Value)
	assert.True(t, c["access_token"].HttpOnly)
	assert.True(t, c["refresh_token"].Secure)
	assert.Equal(t, "/", c["refresh_token"].Path)
}

func TestLogin_AlreadyLoggedIn(t *testing.T) {
	for _, name := range []string{"access_token", "refresh_token"} {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{}
			rec := do(t, newRouter(svc), http.MethodPost, "/users/login", creds, &http.Cookie{Name: name, Value: "x"})

			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, "You already logged in", errorBody(t, rec))
			assert.Zero(t, svc.loginCalls, "credentials are not checked")
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{common.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{common.ErrRateLimited, http.StatusTooManyRequests, "too many login attempts"},
		{common.ErrStorageUnavailable, http.StatusServiceUnavailable, "service unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			rec := do(t, newRouter(&fakeService{loginErr: tt.err}), http.MethodPost, "/users/login", creds)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, errorBody(t, rec))
			assert.Empty(t, rec.Result().Cookies())
		})
	}

	rec := do(t, newRouter(&fakeService{}), http.MethodPost, "/users/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	svc := &fakeService{refreshPair: &models.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}}
	rec := do(t, newRouter(svc), http.MethodPost, "/users/refresh", "", &http.Cookie{Name: "refresh_token", Value: "ref1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ref1", svc.refreshTok)

	c := cookiesByName(rec)
	assert.Equal(t, "acc2", c["access_token"].Value)
	assert.Equal(t, "ref2", c["refresh_token"].Value)
}

func TestRefresh_Unauthorized(t *testing.T) {
	rec := do(t, newRouter(&fakeService{}), http.MethodPost, "/users/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, err := range []error{common.ErrInvalidToken, common.ErrTokenExpired} {
		rec := do(t, newRouter(&fakeService{refreshErr: err}), http.MethodPost, "/users/refresh", "",
			&http.Cookie{Name: "refresh_token", Value: "r"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	}
}

func TestLogout_AlwaysClearsCookies(t *testing.T) {
	tests := []struct {
		name    string
		svc     *fakeService
		cookies []*http.Cookie
		token   string
	}{
		{"with session", &fakeService{}, []*http.Cookie{{Name: "refresh_token", Value: "r"}, {Name: "access_token", Value: "a"}}, "r"},
		{"no cookies", &fakeService{}, nil, ""},
		{"storage failure", &fakeService{logoutErr: common.ErrStorageUnavailable}, []*http.Cookie{{Name: "refresh_token", Value: "r"}}, "r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newRouter(tt.svc), http.MethodPost, "/users/logout", "", tt.cookies...)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.token, tt.svc.logoutToken)

			c := cookiesByName(rec)
			for _, name := range []string{"access_token", "refresh_token"} {
				require.Contains(t, c, name)
				assert.Empty(t, c[name].Value)
				assert.Less(t, c[name].MaxAge, 0)
			}
		})
	}
}

func TestMe(t *testing.T) {
	svc := &fakeService{user: &models.User{ID: 9, Email: "me@example.com", PasswordHash: "secret"}}
	rec := do(t, newRouter(svc), http.MethodGet, "/users/me", "", &http.Cookie{Name: "access_token", Value: "acc"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc", svc.authToken)
	assert.JSONEq(t, `{"id":9,"email":"me@example.com"}`, rec.Body.String())
}

func TestMe_Unauthorized(t *testing.T) {
	rec := do(t, newRouter(&fakeService{}), http.MethodGet, "/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, newRouter(&fakeService{authErr: common.ErrTokenExpired}), http.MethodGet, "/users/me", "",
		&http.Cookie{Name: "access_token", Value: "old"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token expired", errorBody(t, rec))
}

func TestHealthAndReady(t *testing.T) {
	rec := do(t, newRouter(&fakeService{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newRouter(&fakeService{}), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := newRouter(&fakeService{}, func(o *RouterOptions) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})
	rec = do(t, notReady, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, newRouter(&fakeService{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	withMetrics := newRouter(&fakeService{}, func(o *RouterOptions) {
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m")) })
	})
	rec = do(t, withMetrics, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m", rec.Body.String())
}

func TestAuthRateLimit(t *testing.T) {
	h := newRouter(&fakeService{}, func(o *RouterOptions) { o.AuthLimit = 2 })

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/users/register", creds)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/users/register", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "other routes use the global limit")
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(&fakeService{}, func(o *RouterOptions) { o.AllowedOrigins = []string{"https://app.example"} })

	req := httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
