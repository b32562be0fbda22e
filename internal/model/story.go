// Package model はドメインモデルを定義する。
package model

import "time"

// Story は投稿された物語を表す。
// 添付ファイル・カバー画像・生成音声はオブジェクトストレージに保存され、
// FilePath・CoverImageURL・AudioURLにはいずれもストレージのキーを保持する。
// 公開URLへの変換はAPIの応答組み立て時に行う。
type Story struct {
	ID            string
	Title         string
	Description   string
	Content       string
	CoverImageURL string
	AudioURL      string
	AudioStatus   AudioStatus
	ViewCount     int
	FilePath      string // オブジェクトストレージのキー（{author_id}/{timestamp}.{ext}）
	FileType      string // 添付ファイルのMIMEタイプ
	AuthorID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AudioStatus は音声生成パイプラインの処理状態を表す。
type AudioStatus string

const (
	// AudioStatusPending は音声生成待ちの状態。投稿直後の初期値。
	AudioStatusPending AudioStatus = "pending"
	// AudioStatusProcessing はワーカーが音声を生成中の状態。
	AudioStatusProcessing AudioStatus = "processing"
	// AudioStatusCompleted は音声生成が完了しaudio_urlが有効な状態。
	AudioStatusCompleted AudioStatus = "completed"
	// AudioStatusFailed は音声生成に失敗した状態。
	AudioStatusFailed AudioStatus = "failed"
)

// HasPlayableAudio は音声再生コントロールを提示してよいかを返す。
// audio_urlが存在してもステータスがcompleted以外の場合は再生不可とする。
func (s *Story) HasPlayableAudio() bool {
	return s.AudioURL != "" && s.AudioStatus == AudioStatusCompleted
}

// StoryWithAuthor は物語と著者プロフィールの表示名を結合したモデル。
// profilesテーブルとJOINして取得される。表示名は非正規化せず読み取り時に解決する。
type StoryWithAuthor struct {
	Story
	AuthorName string
}
