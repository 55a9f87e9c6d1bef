package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/NordCoder/pixelpages/internal/domain"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cookieName = "refresh_token"

func newHTTP(t *testing.T) (*env, http.Handler) {
	t.Helper()
	e := newEnv(t)
	s := NewServer(e.uc, Opts{
		Logger:       zap.NewNop(),
		CookieName:   cookieName,
		CookieSecure: true,
		RefreshTTL:   refreshTTL,
	})
	mux := runtime.NewServeMux()
	require.NoError(t, s.Mount(mux))
	return e, mux
}

type call struct {
	method, path, body string
	header             http.Header
	cookie             *http.Cookie
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearerHeader(tok string) http.Header {
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

func TestHTTP_RegisterLoginMe(t *testing.T) {
	t.Parallel()
	_, h := newHTTP(t)

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/register",
		body: `{"email":"a@x.com","password":"pw1","full_name":"Ada"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[userResponse](t, rec)
	require.Equal(t, "a@x.com", reg.Email)
	require.Equal(t, "Ada", *reg.FullName)
	require.True(t, reg.IsActive)
	require.NotContains(t, rec.Body.String(), "password")

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/register",
		body: `{"email":"A@x.com","password":"pw2"}`})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Email already registered", decode[errorResponse](t, rec).Detail)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/login",
		body: `{"email":"a@x.com","password":"pw1"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tr := decode[tokenResponse](t, rec)
	require.Equal(t, "bearer", tr.TokenType)
	require.Equal(t, reg.ID, tr.User.ID)

	c := refreshCookie(t, rec)
	require.NotEmpty(t, c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.Equal(t, int(refreshTTL.Seconds()), c.MaxAge)
	require.Equal(t, "/", c.Path)

	rec = do(t, h, call{method: http.MethodGet, path: "/v1/auth/me", header: bearerHeader(tr.AccessToken)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, reg, decode[userResponse](t, rec))
}

func TestHTTP_LoginForm(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")

	form := url.Values{"username": {"a@x.com"}, "password": {"pw1"}}
	rec := do(t, h, call{
		method: http.MethodPost,
		path:   "/v1/auth/login",
		body:   form.Encode(),
		header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decode[tokenResponse](t, rec).AccessToken)
}

func TestHTTP_AuthenticationFailures(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/login",
		body: `{"email":"a@x.com","password":"bad"}`})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Incorrect email or password", decode[errorResponse](t, rec).Detail)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	for _, c := range []call{
		{method: http.MethodGet, path: "/v1/auth/me"},
		{method: http.MethodGet, path: "/v1/auth/me", header: bearerHeader("garbage")},
		{method: http.MethodPost, path: "/v1/auth/refresh"},
		{method: http.MethodPost, path: "/v1/auth/logout", cookie: &http.Cookie{Name: cookieName, Value: "x"}},
		{method: http.MethodPost, path: "/v1/auth/logout-all"},
	} {
		rec := do(t, h, c)
		require.Equal(t, http.StatusUnauthorized, rec.Code, c.path)
		require.Equal(t, "Could not validate credentials", decode[errorResponse](t, rec).Detail, c.path)
	}
}

func TestHTTP_RefreshAndLogout(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/login",
		body: `{"email":"a@x.com","password":"pw1"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	c := refreshCookie(t, rec)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: c})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rr := decode[tokenRefreshResponse](t, rec)
	require.NotEmpty(t, rr.AccessToken)
	require.Equal(t, "bearer", rr.TokenType)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh",
		header: http.Header{refreshTokenHeader: {c.Value}}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/logout", cookie: c})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Successfully logged out", decode[messageResponse](t, rec).Message)
	require.Less(t, refreshCookie(t, rec).MaxAge, 0)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: c})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_LogoutAll(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")
	s := e.login(t, "a@x.com", "pw1")
	e.login(t, "a@x.com", "pw1")

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/logout-all", header: bearerHeader(s.AccessToken)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logged out from all devices. Revoked 2 tokens.", decode[messageResponse](t, rec).Message)
	require.Less(t, refreshCookie(t, rec).MaxAge, 0)
}

func TestHTTP_ChangePassword(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")
	s := e.login(t, "a@x.com", "pw1")

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/change-password",
		header: bearerHeader(s.AccessToken), body: `{"old_password":"nope","new_password":"pw2"}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Incorrect current password", decode[errorResponse](t, rec).Detail)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/change-password",
		header: bearerHeader(s.AccessToken), body: `{"old_password":"pw1","new_password":"pw2"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Password changed successfully. Please log in again.", decode[messageResponse](t, rec).Message)
}

func TestHTTP_ValidationDetail(t *testing.T) {
	t.Parallel()
	_, h := newHTTP(t)

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/register", body: `{"email":"nope","password":"pw"}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email: is not a valid address", decode[errorResponse](t, rec).Detail)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/register", body: `{"email":`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "body: malformed JSON", decode[errorResponse](t, rec).Detail)
}

func TestHTTP_SetActive(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	admin := e.register(t, "root@x.com", "pw1")
	require.NoError(t, e.store.Users().Promote(t.Context(), admin))
	target := e.register(t, "a@x.com", "pw1")
	as := e.login(t, "root@x.com", "pw1")
	ts := e.login(t, "a@x.com", "pw1")

	path := "/v1/users/" + target.String() + "/active"

	rec := do(t, h, call{method: http.MethodPut, path: path, header: bearerHeader(ts.AccessToken), body: `{"is_active":false}`})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, call{method: http.MethodPut, path: "/v1/users/nope/active", header: bearerHeader(as.AccessToken), body: `{"is_active":false}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, call{method: http.MethodPut, path: path, header: bearerHeader(as.AccessToken), body: `{}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, call{method: http.MethodPut, path: path, header: bearerHeader(as.AccessToken), body: `{"is_active":false}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, decode[userResponse](t, rec).IsActive)

	rec = do(t, h, call{method: http.MethodGet, path: "/v1/auth/me", header: bearerHeader(ts.AccessToken)})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_StoreUnavailable(t *testing.T) {
	t.Parallel()
	e, h := newHTTP(t)
	e.register(t, "a@x.com", "pw1")
	e.store.SetFailure(domain.ErrUnavailable)

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/login", body: `{"email":"a@x.com","password":"pw1"}`})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
