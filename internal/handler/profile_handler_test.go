package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storyhub/storyhub/internal/model"
)

type mockProfileService struct {
	getFunc            func(ctx context.Context, userID string) (*model.Profile, error)
	updateFullNameFunc func(ctx context.Context, userID, fullName string) (*model.Profile, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return m.getFunc(ctx, userID)
}

func (m *mockProfileService) UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error) {
	return m.updateFullNameFunc(ctx, userID, fullName)
}

func TestGetMe(t *testing.T) {
	avatar := "https://example.com/avatar.png"
	service := &mockProfileService{
		getFunc: func(ctx context.Context, userID string) (*model.Profile, error) {
			if userID != "user-1" {
				t.Errorf("user id = %q", userID)
			}
			return &model.Profile{ID: "user-1", FullName: "花子", AvatarURL: &avatar}, nil
		},
	}
	h := NewProfileHandler(service)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil), "user-1")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.FullName != "花子" || resp.AvatarURL != avatar {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetMeUnauthenticated(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil)
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGetMeNotFound(t *testing.T) {
	service := &mockProfileService{
		getFunc: func(ctx context.Context, userID string) (*model.Profile, error) {
			return nil, model.NewProfileNotFoundError()
		},
	}
	h := NewProfileHandler(service)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil), "user-1")
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	service := &mockProfileService{
		updateFullNameFunc: func(ctx context.Context, userID, fullName string) (*model.Profile, error) {
			if fullName != "新しい名前" {
				t.Errorf("full name = %q", fullName)
			}
			return &model.Profile{ID: userID, FullName: fullName}, nil
		},
	}
	h := NewProfileHandler(service)

	body := strings.NewReader(`{"full_name":"新しい名前"}`)
	req := withUserID(httptest.NewRequest(http.MethodPatch, "/api/profiles/me", body), "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.FullName != "新しい名前" {
		t.Errorf("response = %+v", resp)
	}
}

func TestUpdateMeInvalidBody(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := withUserID(httptest.NewRequest(http.MethodPatch, "/api/profiles/me", strings.NewReader("not-json")), "user-1")
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
