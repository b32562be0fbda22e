package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/storyhub/storyhub/internal/auth"
	"github.com/storyhub/storyhub/internal/middleware"
	"github.com/storyhub/storyhub/internal/model"
)

type mockAuthService struct {
	registerFunc       func(ctx context.Context, email, password, fullName string) (*auth.AuthResult, error)
	loginFunc          func(ctx context.Context, email, password string) (*auth.AuthResult, error)
	logoutFunc         func(ctx context.Context, sessionID string) error
	getCurrentUserFunc func(ctx context.Context, sessionID string) (*model.User, error)
	verifyTokenFunc    func(ctx context.Context, token string) (*model.Session, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, fullName string) (*auth.AuthResult, error) {
	return m.registerFunc(ctx, email, password, fullName)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.logoutFunc(ctx, sessionID)
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.getCurrentUserFunc(ctx, sessionID)
}

func (m *mockAuthService) VerifyToken(ctx context.Context, token string) (*model.Session, error) {
	return m.verifyTokenFunc(ctx, token)
}

func testAuthResult() *auth.AuthResult {
	expires := time.Now().Add(24 * time.Hour)
	return &auth.AuthResult{
		User:      &model.User{ID: "user-1", Email: "hanako@example.com"},
		Session:   &model.Session{ID: "session-abc", UserID: "user-1", ExpiresAt: expires},
		Token:     "jwt-token",
		ExpiresAt: expires,
	}
}

func newAuthHandler(service *mockAuthService) *AuthHandler {
	return NewAuthHandler(service, nil, AuthHandlerConfig{
		SessionMaxAge:   24 * time.Hour,
		WSAllowedOrigin: "http://localhost:3000",
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	var gotEmail, gotFullName string
	service := &mockAuthService{
		registerFunc: func(ctx context.Context, email, password, fullName string) (*auth.AuthResult, error) {
			gotEmail, gotFullName = email, fullName
			return testAuthResult(), nil
		},
	}
	h := newAuthHandler(service)

	body := strings.NewReader(`{"email":"hanako@example.com","password":"secret123","full_name":"花子"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if gotEmail != "hanako@example.com" || gotFullName != "花子" {
		t.Errorf("register called with (%q, %q)", gotEmail, gotFullName)
	}

	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "session-abc" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.User.ID != "user-1" || resp.Token != "jwt-token" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRegisterEmailTaken(t *testing.T) {
	service := &mockAuthService{
		registerFunc: func(ctx context.Context, email, password, fullName string) (*auth.AuthResult, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := newAuthHandler(service)

	body := strings.NewReader(`{"email":"taken@example.com","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterInvalidBody(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, email, password string) (*auth.AuthResult, error) {
			return testAuthResult(), nil
		},
	}
	h := newAuthHandler(service)

	body := strings.NewReader(`{"email":"hanako@example.com","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cookie := sessionCookie(t, rec); cookie == nil || cookie.Value != "session-abc" {
		t.Errorf("session cookie = %+v", cookie)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, email, password string) (*auth.AuthResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := newAuthHandler(service)

	body := strings.NewReader(`{"email":"hanako@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if cookie := sessionCookie(t, rec); cookie != nil {
		t.Error("session cookie should not be set on failed login")
	}
}

func TestLogout(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		logoutFunc: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := newAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if loggedOut != "session-abc" {
		t.Errorf("logged out session = %q", loggedOut)
	}

	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("clearing cookie not set")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", cookie.MaxAge)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	// セッションが無くてもログアウトは成功として扱う
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestMeWithCookie(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFunc: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "session-abc" {
				t.Errorf("session id = %q", sessionID)
			}
			return &model.User{ID: "user-1", Email: "hanako@example.com"}, nil
		},
	}
	h := newAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp userResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "user-1" || resp.Email != "hanako@example.com" {
		t.Errorf("response = %+v", resp)
	}
}

func TestMeWithBearerToken(t *testing.T) {
	service := &mockAuthService{
		verifyTokenFunc: func(ctx context.Context, token string) (*model.Session, error) {
			if token != "jwt-token" {
				t.Errorf("token = %q", token)
			}
			return &model.Session{ID: "session-abc", UserID: "user-1"}, nil
		},
		getCurrentUserFunc: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: "hanako@example.com"}, nil
		},
	}
	h := newAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer jwt-token")
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMeUnauthenticated(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var errBody apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q", errBody.Code)
	}
}

func TestMeExpiredSession(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFunc: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, nil
		},
	}
	h := newAuthHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "expired-session"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestEventsUnauthenticated(t *testing.T) {
	h := newAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/events", nil)
	rec := httptest.NewRecorder()
	h.Events(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
