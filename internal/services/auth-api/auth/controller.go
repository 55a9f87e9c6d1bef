package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/pixelpages/internal/domain/user"
	"github.com/NordCoder/pixelpages/internal/obs"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const (
	maxBodyBytes       = 1 << 20
	refreshTokenHeader = "X-Refresh-Token"
	tokenTypeBearer    = "bearer"
)

type Server struct {
	log          *zap.Logger
	uc           *Usecase
	cookieName   string
	cookieDomain string
	cookiePath   string
	cookieSecure bool
	refreshTTL   time.Duration
}

type Opts struct {
	Logger       *zap.Logger
	CookieName   string
	CookieDomain string
	CookiePath   string
	CookieSecure bool
	RefreshTTL   time.Duration
}

func NewServer(uc *Usecase, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log, _ = zap.NewProduction()
	}
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
	return &Server{
		log:          log,
		uc:           uc,
		cookieName:   o.CookieName,
		cookieDomain: o.CookieDomain,
		cookiePath:   o.CookiePath,
		cookieSecure: o.CookieSecure,
		refreshTTL:   o.RefreshTTL,
	}
}

// Mount registers every auth route on mux.
func (s *Server) Mount(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/auth/register", s.register},
		{http.MethodPost, "/v1/auth/login", s.login},
		{http.MethodPost, "/v1/auth/refresh", s.refresh},
		{http.MethodPost, "/v1/auth/logout", s.logout},
		{http.MethodPost, "/v1/auth/logout-all", s.logoutAll},
		{http.MethodGet, "/v1/auth/me", s.me},
		{http.MethodPost, "/v1/auth/change-password", s.changePassword},
		{http.MethodPut, "/v1/users/{id}/active", s.setActive},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, instrument(rt.path, rt.h)); err != nil {
			return fmt.Errorf("mount %s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}

func instrument(route string, h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		obs.InstrumentHTTP(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h(w, r, params)
		})).ServeHTTP(w, r)
	}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type tokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}

	u, err := s.uc.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// login accepts JSON {email,password} and the OAuth2 password form
// (username, password).
func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req loginRequest
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			s.writeErr(w, r, invalid("body", "malformed form"))
			return
		}
		req.Email, req.Password = r.PostForm.Get("username"), r.PostForm.Get("password")
	} else if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}

	sess, err := s.uc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.setRefreshCookie(w, sess.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: sess.AccessToken,
		TokenType:   tokenTypeBearer,
		User:        toUserResponse(sess.User),
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	grant, err := s.uc.Refresh(r.Context(), s.refreshFromRequest(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenRefreshResponse{AccessToken: grant.AccessToken, TokenType: tokenTypeBearer})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := s.uc.Logout(r.Context(), s.refreshFromRequest(r)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out"})
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	n, err := s.uc.LogoutAll(r.Context(), bearer(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Logged out from all devices. Revoked %d tokens.", n),
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	u, err := s.uc.Me(r.Context(), bearer(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}

	if _, err := s.uc.ChangePassword(r.Context(), bearer(r), req.OldPassword, req.NewPassword); err != nil {
		s.writeErr(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully. Please log in again."})
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := uuid.Parse(params["id"])
	if err != nil {
		s.writeErr(w, r, invalid("id", "must be a UUID"))
		return
	}
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.IsActive == nil {
		s.writeErr(w, r, invalid("is_active", "required"))
		return
	}

	u, err := s.uc.SetActive(r.Context(), bearer(r), id, *req.IsActive)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, detail := httpStatus(err)
	log := obs.WithTrace(r.Context(), s.log).With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", code),
	)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Info("request rejected", zap.Error(err))
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, code, errorResponse{Detail: detail})
}

// httpStatus maps the failure taxonomy onto a status code and a public
// message. Authentication failures share a single message.
func httpStatus(err error) (int, string) {
	switch KindOf(err) {
	case KindValidation:
		var ve *ValidationError
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return http.StatusConflict, "Email already registered"
		case errors.Is(err, ErrIncorrectPassword):
			return http.StatusBadRequest, "Incorrect current password"
		case errors.As(err, &ve):
			return http.StatusBadRequest, ve.Error()
		default:
			return http.StatusBadRequest, err.Error()
		}
	case KindAuthentication:
		if errors.Is(err, ErrInvalidCredentials) {
			return http.StatusUnauthorized, "Incorrect email or password"
		}
		return http.StatusUnauthorized, "Could not validate credentials"
	case KindAuthorization:
		return http.StatusForbidden, "Not enough privileges"
	case KindNotFound:
		return http.StatusNotFound, "User not found"
	case KindTransient:
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    raw,
		Path:     s.cookiePath,
		Domain:   s.cookieDomain,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.refreshTTL.Seconds()),
		Expires:  time.Now().Add(s.refreshTTL).UTC(),
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     s.cookiePath,
		Domain:   s.cookieDomain,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

func (s *Server) refreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get(refreshTokenHeader))
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return invalid("body", "malformed JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
