// Package storage は添付ファイル・音声ファイルの保存先を抽象化する。
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ObjectInfo は保存済みオブジェクトの情報。
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore はオブジェクトストレージへの操作を定義する。
type ObjectStore interface {
	// Upload はオブジェクトを保存する。同じキーへの再保存は上書きになる。
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	// PublicURL はオブジェクトの公開URLを返す。
	PublicURL(key string) string
	// Delete はオブジェクトを削除する。存在しないキーでもエラーにしない。
	Delete(ctx context.Context, key string) error
	// List はバケット内の全オブジェクトを列挙する。
	List(ctx context.Context) ([]ObjectInfo, error)
}

// AttachmentKey は添付ファイルの保存キーを生成する。
// 投稿者IDをプレフィックスにすることで、誰のファイルかをキーだけで
// 判別でき、同名ファイルの衝突もタイムスタンプで避けられる。
func AttachmentKey(authorID, filename string, now time.Time) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d.%s", authorID, now.UnixMilli(), strings.ToLower(ext))
}

// AudioKey は生成音声の保存キーを生成する。
func AudioKey(authorID, storyID string) string {
	return fmt.Sprintf("%s/audio/%s.mp3", authorID, storyID)
}
