package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storyhub/storyhub/internal/model"
)

type mockResolver struct {
	resolveSessionFunc func(ctx context.Context, sessionID string) (*model.Session, error)
	verifyTokenFunc    func(ctx context.Context, token string) (*model.Session, error)
}

func (m *mockResolver) ResolveSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return m.resolveSessionFunc(ctx, sessionID)
}

func (m *mockResolver) VerifyToken(ctx context.Context, token string) (*model.Session, error) {
	return m.verifyTokenFunc(ctx, token)
}

func okHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext() error = %v", err)
		}
		if userID != wantUserID {
			t.Errorf("user id = %q, want %q", userID, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddlewareWithCookie(t *testing.T) {
	resolver := &mockResolver{
		resolveSessionFunc: func(ctx context.Context, sessionID string) (*model.Session, error) {
			if sessionID != "sess-1" {
				t.Errorf("session id = %q, want sess-1", sessionID)
			}
			return &model.Session{ID: sessionID, UserID: "user-1"}, nil
		},
	}

	handler := NewSessionMiddleware(resolver)(okHandler(t, "user-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSessionMiddlewareWithBearerToken(t *testing.T) {
	resolver := &mockResolver{
		verifyTokenFunc: func(ctx context.Context, token string) (*model.Session, error) {
			if token != "jwt-token" {
				t.Errorf("token = %q, want jwt-token", token)
			}
			return &model.Session{ID: "sess-1", UserID: "user-1"}, nil
		},
	}

	handler := NewSessionMiddleware(resolver)(okHandler(t, "user-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.Header.Set("Authorization", "Bearer jwt-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSessionMiddlewareNoCredentials(t *testing.T) {
	resolver := &mockResolver{}
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestSessionMiddlewareExpiredSession(t *testing.T) {
	resolver := &mockResolver{
		resolveSessionFunc: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, nil
		},
	}
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with expired session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddlewareResolverError(t *testing.T) {
	resolver := &mockResolver{
		resolveSessionFunc: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached despite resolver error")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUserIDFromContextMissing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("UserIDFromContext() = nil error for empty context")
	}
}

func TestContextWithUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-1")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("user id = %q, want user-1", userID)
	}
}

func TestContextWithSessionID(t *testing.T) {
	ctx := ContextWithSessionID(context.Background(), "sess-1")
	sessionID, err := SessionIDFromContext(ctx)
	if err != nil {
		t.Fatalf("SessionIDFromContext() error = %v", err)
	}
	if sessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", sessionID)
	}
}
