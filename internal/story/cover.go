package story

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/security"
	"github.com/storyhub/storyhub/internal/storage"
)

// CoverFetcher はユーザー指定URLからカバー画像を取得し、自前の
// ストレージへ保存し直す。外部URLをそのまま保持すると画像の差し替えや
// 内部ネットワークへの到達に悪用されるため、取得は常にSSRF防止付き
// クライアントで行い、保存後はストレージのキーのみを参照する。
type CoverFetcher struct {
	guard   security.SSRFGuardService
	client  *http.Client
	store   storage.ObjectStore
	maxSize int64
	logger  *slog.Logger
}

// NewCoverFetcher はCoverFetcherを生成する。
func NewCoverFetcher(
	guard security.SSRFGuardService,
	store storage.ObjectStore,
	timeout time.Duration,
	maxSize int64,
	logger *slog.Logger,
) *CoverFetcher {
	return &CoverFetcher{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		store:   store,
		maxSize: maxSize,
		logger:  logger,
	}
}

// allowedImageTypes はカバー画像として受け付けるMIMEタイプと拡張子の対応。
var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Validate はカバー画像URLを事前検証する。HTTPリクエストは送信しない。
func (f *CoverFetcher) Validate(rawURL string) error {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	return nil
}

// FetchAndStore はカバー画像を取得してストレージへ保存し、キーを返す。
func (f *CoverFetcher) FetchAndStore(ctx context.Context, authorID, rawURL string) (string, error) {
	if err := f.Validate(rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// safeurlがDNS解決後にブロックした場合もここに到達する
		f.logger.Warn("cover image fetch blocked or failed", "url", rawURL, "error", err)
		return "", model.NewCoverFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewCoverFetchFailedError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return "", model.NewCoverFetchFailedError("missing content type")
	}
	ext, ok := allowedImageTypes[strings.ToLower(contentType)]
	if !ok {
		return "", model.NewCoverFetchFailedError(fmt.Sprintf("unsupported content type %s", contentType))
	}

	// maxSizeを1バイト超えて読めた場合はサイズ超過
	limited := io.LimitReader(resp.Body, f.maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", model.NewCoverFetchFailedError(err.Error())
	}
	if int64(len(data)) > f.maxSize {
		return "", model.NewFileTooLargeError(f.maxSize)
	}

	key := fmt.Sprintf("%s/cover/%d.%s", authorID, time.Now().UnixMilli(), ext)
	if err := f.store.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("failed to store cover image: %w", err)
	}

	return key, nil
}
