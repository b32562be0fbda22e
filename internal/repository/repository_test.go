package repository

import (
	"testing"
)

func TestNewPostgresUserRepo(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("NewPostgresUserRepo() returned nil")
	}
}

func TestNewPostgresProfileRepo(t *testing.T) {
	repo := NewPostgresProfileRepo(nil)
	if repo == nil {
		t.Fatal("NewPostgresProfileRepo() returned nil")
	}
}

func TestNewPostgresSessionRepo(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("NewPostgresSessionRepo() returned nil")
	}
}

func TestNewPostgresStoryRepo(t *testing.T) {
	repo := NewPostgresStoryRepo(nil)
	if repo == nil {
		t.Fatal("NewPostgresStoryRepo() returned nil")
	}
}

// インターフェース実装の静的検証。実装がシグネチャから外れた場合は
// コンパイルエラーとして検出される。
var (
	_ UserRepository    = (*PostgresUserRepo)(nil)
	_ ProfileRepository = (*PostgresProfileRepo)(nil)
	_ SessionRepository = (*PostgresSessionRepo)(nil)
	_ StoryRepository   = (*PostgresStoryRepo)(nil)
)
