// Package story はストーリーの投稿・閲覧・削除のユースケースを実装する。
package story

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyhub/storyhub/internal/metrics"
	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/repository"
	"github.com/storyhub/storyhub/internal/security"
	"github.com/storyhub/storyhub/internal/storage"
)

// Service はストーリーまわりのユースケースを実装する。
type Service struct {
	stories   repository.StoryRepository
	store     storage.ObjectStore
	sanitizer security.ContentSanitizerService
	cover     *CoverFetcher
	maxSize   int64
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	stories repository.StoryRepository,
	store storage.ObjectStore,
	sanitizer security.ContentSanitizerService,
	cover *CoverFetcher,
	maxAttachmentSize int64,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		stories:   stories,
		store:     store,
		sanitizer: sanitizer,
		cover:     cover,
		maxSize:   maxAttachmentSize,
		metrics:   m,
		logger:    logger,
	}
}

// ListFeed は全ストーリーを新着順に返す。
func (s *Service) ListFeed(ctx context.Context) ([]*model.StoryWithAuthor, error) {
	return s.stories.ListAll(ctx)
}

// ListByAuthor は指定投稿者のストーリーを新着順に返す。
func (s *Service) ListByAuthor(ctx context.Context, authorID string) ([]*model.StoryWithAuthor, error) {
	return s.stories.ListByAuthor(ctx, authorID)
}

// GetDetail はストーリー詳細を返し、閲覧数を加算する。
// 閲覧数の加算に失敗しても詳細表示は成功させる。
func (s *Service) GetDetail(ctx context.Context, id string) (*model.StoryWithAuthor, error) {
	sw, err := s.stories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	if sw == nil {
		return nil, model.NewStoryNotFoundError(id)
	}

	if err := s.stories.IncrementViewCount(ctx, id); err != nil {
		s.logger.Warn("failed to increment view count", "story_id", id, "error", err)
	} else {
		sw.ViewCount++
		s.metrics.RecordStoryView()
	}

	return sw, nil
}

// SubmitInput はストーリー投稿の入力。
type SubmitInput struct {
	Title         string
	Description   string
	Content       string
	CoverImageURL string
	// Attachment は任意の添付ファイル。nilの場合は添付なし。
	Attachment *AttachmentInput
}

// AttachmentInput は添付ファイルの入力。
type AttachmentInput struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Submit はストーリーを投稿する。
//
// 入力検証はストレージへの書き込みより前にすべて完了させ、検証に失敗した
// 投稿がオブジェクトを残さないようにする。レコードの作成はアップロードより
// 先に行い、アップロードに失敗した場合はレコードを削除して巻き戻す。
// 巻き戻しにも失敗したレコードは掃除ワーカーの対象にはならないが、
// 添付なしストーリーとして閲覧可能なまま残る。
func (s *Service) Submit(ctx context.Context, authorID string, input SubmitInput) (*model.Story, error) {
	title := s.sanitizer.SanitizeText(input.Title)
	content := s.sanitizer.SanitizeText(input.Content)
	description := s.sanitizer.SanitizeText(input.Description)

	if title == "" {
		return nil, model.NewEmptyRequiredFieldError("title")
	}
	if content == "" {
		return nil, model.NewEmptyRequiredFieldError("content")
	}
	if input.Attachment != nil && input.Attachment.Size > s.maxSize {
		return nil, model.NewFileTooLargeError(s.maxSize)
	}
	if input.CoverImageURL != "" {
		if err := s.cover.Validate(input.CoverImageURL); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	story := &model.Story{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Content:     content,
		AudioStatus: model.AudioStatusPending,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.CoverImageURL != "" {
		coverURL, err := s.cover.FetchAndStore(ctx, authorID, input.CoverImageURL)
		if err != nil {
			return nil, err
		}
		story.CoverImageURL = coverURL
	}

	if err := s.stories.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	if input.Attachment != nil {
		key := storage.AttachmentKey(authorID, input.Attachment.Filename, now)
		uploadStart := time.Now()
		err := s.store.Upload(ctx, key, input.Attachment.ContentType, input.Attachment.Reader, input.Attachment.Size)
		s.metrics.RecordUploadLatency(time.Since(uploadStart))
		if err != nil {
			s.metrics.RecordUploadFailure()
			s.logger.Error("attachment upload failed, rolling back story",
				"story_id", story.ID, "error", err)
			if _, delErr := s.stories.DeleteByIDAndAuthor(ctx, story.ID, authorID); delErr != nil {
				s.logger.Error("failed to roll back story after upload failure",
					"story_id", story.ID, "error", delErr)
			}
			return nil, model.NewUploadFailedError()
		}

		if err := s.stories.AttachFile(ctx, story.ID, key, input.Attachment.ContentType); err != nil {
			return nil, fmt.Errorf("failed to record attachment: %w", err)
		}
		story.FilePath = key
		story.FileType = input.Attachment.ContentType
	}

	s.metrics.RecordStorySubmission()
	s.logger.Info("story submitted", "story_id", story.ID, "author_id", authorID)
	return story, nil
}

// Delete は投稿者本人のストーリーを削除する。
// IDと投稿者IDの両方を削除条件に含めるため、他人のストーリーを
// 指定しても存在しないものとして扱われる。
// 添付オブジェクトの削除はベストエフォートで行い、失敗しても
// 掃除ワーカーが後から回収する。
func (s *Service) Delete(ctx context.Context, id, authorID string) error {
	sw, err := s.stories.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find story: %w", err)
	}

	deleted, err := s.stories.DeleteByIDAndAuthor(ctx, id, authorID)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if !deleted {
		return model.NewStoryNotFoundError(id)
	}

	if sw != nil {
		for _, key := range []string{sw.FilePath, sw.CoverImageURL, sw.AudioURL} {
			if key == "" {
				continue
			}
			if err := s.store.Delete(ctx, key); err != nil {
				s.logger.Warn("failed to delete object, sweep worker will collect it",
					"key", key, "error", err)
			}
		}
	}

	s.logger.Info("story deleted", "story_id", id, "author_id", authorID)
	return nil
}
