// Package profile はプロフィールの取得・更新のユースケースを実装する。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/repository"
	"github.com/storyhub/storyhub/internal/security"
)

// Service はプロフィールまわりのユースケースを実装する。
type Service struct {
	profiles  repository.ProfileRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	profiles repository.ProfileRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		profiles:  profiles,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Get は指定ユーザーのプロフィールを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// UpdateFullName は本人のプロフィール表示名を更新する。
// 空の表示名も許可する（著者名は表示時に匿名へフォールバックする）。
func (s *Service) UpdateFullName(ctx context.Context, userID, fullName string) (*model.Profile, error) {
	cleaned := s.sanitizer.SanitizeText(fullName)

	if err := s.profiles.UpdateFullName(ctx, userID, cleaned); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "user_id", userID)
	return s.Get(ctx, userID)
}
