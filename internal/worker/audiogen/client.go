// Package audiogen はストーリー本文からの音声生成をバックグラウンドで実行する。
// スケジューラ、音声合成クライアントを含む。
package audiogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TTSService は音声合成の実行インターフェース。
type TTSService interface {
	// Synthesize はテキストをMP3音声に変換する。
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ttsClient は外部音声合成サービスのHTTPクライアント。
type ttsClient struct {
	endpoint string
	client   *http.Client
}

// NewTTSClient はTTSServiceの新しいインスタンスを生成する。
func NewTTSClient(endpoint string, timeout time.Duration) *ttsClient {
	return &ttsClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

// Synthesize はテキストをMP3音声に変換する。
func (c *ttsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Format: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("failed to encode synthesize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tts service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts service returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts service returned empty audio")
	}

	return audio, nil
}

// compile-time interface check
var _ TTSService = (*ttsClient)(nil)
