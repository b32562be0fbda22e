// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/storyhub/storyhub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	// 「1ユーザーにつき必ず1プロフィール」の不変条件はここで保証される。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// UpdateFullName は所有者IDで絞り込んでfull_nameのみを部分更新する。
	// 該当行がない場合はエラーを返す。
	UpdateFullName(ctx context.Context, id, fullName string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// StoryRepository は物語データの永続化インターフェース。
type StoryRepository interface {
	// FindByID は指定IDの物語を著者表示名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.StoryWithAuthor, error)

	// ListAll は全物語を著者表示名付きで作成日時降順に取得する。
	ListAll(ctx context.Context) ([]*model.StoryWithAuthor, error)

	// ListByAuthor は指定著者の物語を著者表示名付きで作成日時降順に取得する。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.StoryWithAuthor, error)

	// Create は物語を作成する。
	Create(ctx context.Context, story *model.Story) error

	// AttachFile は物語に添付ファイルの参照を設定する。
	AttachFile(ctx context.Context, id, filePath, fileType string) error

	// IncrementViewCount は閲覧数を原子的に1加算する。
	// 同時アクセス下でも加算が失われないよう、読み取り-書き戻しではなく
	// 単一のUPDATE文で加算する。
	IncrementViewCount(ctx context.Context, id string) error

	// DeleteByIDAndAuthor はIDと著者IDの両方で絞り込んで物語を削除する。
	// 著者以外からの削除はここで拒否される。削除された場合はtrueを返す。
	DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (bool, error)

	// ListFilePaths は全物語が参照するオブジェクトストレージのキーを返す。
	// 孤児ブロブの掃除ジョブが参照集合の構築に使用する。
	ListFilePaths(ctx context.Context) ([]string, error)

	// ClaimPendingForAudio はaudio_statusがpendingの物語をFOR UPDATE SKIP LOCKEDで
	// 排他的に取得し、processingに遷移させた上で返す。
	ClaimPendingForAudio(ctx context.Context, limit int) ([]*model.Story, error)

	// SetAudioResult は音声生成の結果を記録する。
	// 成功時はaudio_urlとcompleted、失敗時は空URLとfailedを書き込む。
	SetAudioResult(ctx context.Context, id, audioURL string, status model.AudioStatus) error
}
