// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが投稿したストーリーの本文・タイトル等を
// サニタイズし、XSS攻撃からユーザーを保護する。ストーリーの各フィールドは
// プレーンテキストとして扱うため、HTMLタグはすべて除去される。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// ストーリー投稿時およびプロフィール更新時に使用される。
type ContentSanitizerService interface {
	// SanitizeText は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(input string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ストーリーのタイトル・説明・本文・プロフィール名はいずれもプレーンテキスト
// として表示されるため、許可タグを一切持たないStrictPolicyを使用する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
// タグ除去後の前後空白も取り除く。
func (s *contentSanitizer) SanitizeText(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
