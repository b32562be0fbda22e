package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storyhub/storyhub/internal/middleware"
	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/story"
)

// anonymousAuthorName はプロフィール未設定の著者の表示名。
const anonymousAuthorName = "匿名"

// StoryServiceInterface はストーリーハンドラーが必要とするサービスインターフェース。
type StoryServiceInterface interface {
	// ListFeed は全ストーリーを新着順に返す。
	ListFeed(ctx context.Context) ([]*model.StoryWithAuthor, error)
	// ListByAuthor は指定投稿者のストーリーを新着順に返す。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.StoryWithAuthor, error)
	// GetDetail はストーリー詳細を返し、閲覧数を加算する。
	GetDetail(ctx context.Context, id string) (*model.StoryWithAuthor, error)
	// Submit はストーリーを投稿する。
	Submit(ctx context.Context, authorID string, input story.SubmitInput) (*model.Story, error)
	// Delete は投稿者本人のストーリーを削除する。
	Delete(ctx context.Context, id, authorID string) error
}

// URLResolver はストレージキーを公開URLへ変換するインターフェース。
// storage.ObjectStoreの部分集合として定義する。
type URLResolver interface {
	PublicURL(key string) string
}

// StoryHandler はストーリー管理のHTTPハンドラー。
type StoryHandler struct {
	service  StoryServiceInterface
	urls     URLResolver
	maxBytes int64
}

// NewStoryHandler はStoryHandlerを生成する。
// maxAttachmentSizeは添付ファイルの上限バイト数。
func NewStoryHandler(service StoryServiceInterface, urls URLResolver, maxAttachmentSize int64) *StoryHandler {
	return &StoryHandler{
		service:  service,
		urls:     urls,
		maxBytes: maxAttachmentSize,
	}
}

// storySummaryResponse はフィード一覧用のAPIレスポンス。
type storySummaryResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	AuthorName    string    `json:"author_name"`
	ViewCount     int       `json:"view_count"`
	HasAudio      bool      `json:"has_audio"`
	CreatedAt     time.Time `json:"created_at"`
}

// storyDetailResponse はストーリー詳細用のAPIレスポンス。
// 本文は段落単位に分割して返す。
type storyDetailResponse struct {
	storySummaryResponse
	Content    string   `json:"content"`
	Paragraphs []string `json:"paragraphs"`
	FileURL    string   `json:"file_url,omitempty"`
	FileType   string   `json:"file_type,omitempty"`
	AudioURL   string   `json:"audio_url,omitempty"`
}

// ListStories はフィード（全ストーリーの新着順一覧）を返す。
// GET /api/stories
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.service.ListFeed(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toSummaryResponses(stories))
}

// ListMyStories はログインユーザー自身のストーリー一覧を返す。
// GET /api/users/me/stories
func (h *StoryHandler) ListMyStories(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	stories, err := h.service.ListByAuthor(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toSummaryResponses(stories))
}

// GetStory はストーリー詳細を返す。閲覧のたびに閲覧数が加算される。
// GET /api/stories/:id
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sw, err := h.service.GetDetail(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toDetailResponse(sw))
}

// SubmitStory はストーリー投稿を処理する。multipart/form-data を受け付ける。
// フォームフィールド: title, description, content, cover_image_url, file（添付、任意）
// POST /api/stories
func (h *StoryHandler) SubmitStory(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	// フォームのメモリ使用量を抑えるため、添付上限+メタデータ分でボディを制限する
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewFileTooLargeError(h.maxBytes))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	input := story.SubmitInput{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		Content:       r.FormValue("content"),
		CoverImageURL: r.FormValue("cover_image_url"),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		input.Attachment = &story.AttachmentInput{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      file,
		}
	} else if err != http.ErrMissingFile {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	created, err := h.service.Submit(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, h.toDetailResponse(&model.StoryWithAuthor{Story: *created}))
}

// DeleteStory はログインユーザー自身のストーリーを削除する。
// 他人のストーリーを指定した場合は404を返す。
// DELETE /api/stories/:id
func (h *StoryHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *StoryHandler) toSummaryResponses(stories []*model.StoryWithAuthor) []storySummaryResponse {
	// 空一覧でもJSONでnullではなく[]を返す
	responses := make([]storySummaryResponse, 0, len(stories))
	for _, sw := range stories {
		responses = append(responses, h.toSummaryResponse(sw))
	}
	return responses
}

func (h *StoryHandler) toSummaryResponse(sw *model.StoryWithAuthor) storySummaryResponse {
	authorName := sw.AuthorName
	if authorName == "" {
		authorName = anonymousAuthorName
	}

	resp := storySummaryResponse{
		ID:          sw.ID,
		Title:       sw.Title,
		Description: sw.Description,
		AuthorName:  authorName,
		ViewCount:   sw.ViewCount,
		HasAudio:    sw.HasPlayableAudio(),
		CreatedAt:   sw.CreatedAt,
	}
	if sw.CoverImageURL != "" {
		resp.CoverImageURL = h.urls.PublicURL(sw.CoverImageURL)
	}
	return resp
}

func (h *StoryHandler) toDetailResponse(sw *model.StoryWithAuthor) storyDetailResponse {
	resp := storyDetailResponse{
		storySummaryResponse: h.toSummaryResponse(sw),
		Content:              sw.Content,
		Paragraphs:           splitParagraphs(sw.Content),
	}
	if sw.FilePath != "" {
		resp.FileURL = h.urls.PublicURL(sw.FilePath)
		resp.FileType = sw.FileType
	}
	// 生成が完了するまで音声URLは公開しない
	if sw.HasPlayableAudio() {
		resp.AudioURL = h.urls.PublicURL(sw.AudioURL)
	}
	return resp
}

// splitParagraphs は本文を改行区切りの段落に分割する。
// 空行および前後空白のみの行は除外する。
func splitParagraphs(content string) []string {
	lines := strings.Split(content, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
