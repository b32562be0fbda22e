package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/security"
)

type mockProfileRepo struct {
	findByIDFunc       func(ctx context.Context, id string) (*model.Profile, error)
	updateFullNameFunc func(ctx context.Context, id, fullName string) error
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockProfileRepo) UpdateFullName(ctx context.Context, id, fullName string) error {
	return m.updateFullNameFunc(ctx, id, fullName)
}

func newTestService(repo *mockProfileRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, security.NewContentSanitizer(), logger)
}

func TestGet(t *testing.T) {
	repo := &mockProfileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Profile, error) {
			return &model.Profile{ID: id, FullName: "花子"}, nil
		},
	}
	svc := newTestService(repo)

	p, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.FullName != "花子" {
		t.Errorf("full name = %q, want 花子", p.FullName)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := &mockProfileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Profile, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Get(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "PROFILE_NOT_FOUND" {
		t.Errorf("error = %v, want PROFILE_NOT_FOUND", err)
	}
}

func TestUpdateFullNameSanitizes(t *testing.T) {
	var savedName string
	repo := &mockProfileRepo{
		updateFullNameFunc: func(ctx context.Context, id, fullName string) error {
			savedName = fullName
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Profile, error) {
			return &model.Profile{ID: id, FullName: savedName}, nil
		},
	}
	svc := newTestService(repo)

	p, err := svc.UpdateFullName(context.Background(), "user-1", `<b>花子</b>  `)
	if err != nil {
		t.Fatalf("UpdateFullName() error = %v", err)
	}
	if savedName != "花子" {
		t.Errorf("saved name = %q, want tags and whitespace stripped", savedName)
	}
	if p.FullName != "花子" {
		t.Errorf("returned name = %q, want 花子", p.FullName)
	}
}

func TestUpdateFullNameAllowsEmpty(t *testing.T) {
	var savedName string
	repo := &mockProfileRepo{
		updateFullNameFunc: func(ctx context.Context, id, fullName string) error {
			savedName = fullName
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Profile, error) {
			return &model.Profile{ID: id, FullName: savedName}, nil
		},
	}
	svc := newTestService(repo)

	if _, err := svc.UpdateFullName(context.Background(), "user-1", ""); err != nil {
		t.Fatalf("UpdateFullName() error = %v", err)
	}
	if savedName != "" {
		t.Errorf("saved name = %q, want empty", savedName)
	}
}

func TestUpdateFullNamePropagatesNotFound(t *testing.T) {
	repo := &mockProfileRepo{
		updateFullNameFunc: func(ctx context.Context, id, fullName string) error {
			return model.NewProfileNotFoundError()
		},
	}
	svc := newTestService(repo)

	_, err := svc.UpdateFullName(context.Background(), "ghost", "名前")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "PROFILE_NOT_FOUND" {
		t.Errorf("error = %v, want PROFILE_NOT_FOUND", err)
	}
}
