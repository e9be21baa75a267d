// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ResultSanitizer は外部プロバイダーから受け取った検索結果を応答用に正規化する。
// 応答はJSONでありプロバイダーの値はプレーンテキストのため、文字列は
// 制御文字と不正なUTF-8のみを取り除き、マークアップとしては解釈しない。
// URLはhttp/httpsの絶対URLのみを通す。
package security

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/hitoshi/unisearch/internal/model"
)

// ResultSanitizerService は検索結果のサニタイズ機能のインターフェースを定義する。
type ResultSanitizerService interface {
	// Text は制御文字（改行・タブを除く）と不正なUTF-8を除去し、前後の空白を落とす。
	// "<" などの記号はそのまま残す。同一入力に対して常に同一出力を返す（冪等）。
	Text(raw string) string

	// URL はhttp/httpsの絶対URLのみを通過させる。スキーム省略形（//host/path）はhttpsとして扱う。
	// それ以外は空文字列を返す。
	URL(raw string) string

	// Result はNormalizedResultの表示用フィールドをまとめてサニタイズする。
	Result(r model.NormalizedResult) model.NormalizedResult
}

// resultSanitizer はResultSanitizerServiceの実装。状態を持たない。
type resultSanitizer struct{}

// NewResultSanitizer はサニタイザーを生成する。
func NewResultSanitizer() *resultSanitizer {
	return &resultSanitizer{}
}

// Text は制御文字を除いたテキストを返す。
func (s *resultSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, strings.ToValidUTF8(raw, ""))
	return strings.TrimSpace(cleaned)
}

// URL はhttp/httpsの絶対URLのみを返す。
func (s *resultSanitizer) URL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		u.Scheme = "https"
		return u.String()
	case "http", "https":
		return u.String()
	default:
		return ""
	}
}

// Result はNormalizedResultのテキスト系フィールドとURL系フィールドをサニタイズする。
// URLが不正な場合は "#" に、アイコンが不正な場合は空文字列になる。
// タイトルやアイコンの既定値は各アダプターがこの後で補う。
func (s *resultSanitizer) Result(r model.NormalizedResult) model.NormalizedResult {
	r.Title = s.Text(r.Title)
	r.Text = s.Text(r.Text)
	r.User = s.Text(r.User)
	r.Channel = s.Text(r.Channel)
	if u := s.URL(r.URL); u != "" {
		r.URL = u
	} else {
		r.URL = "#"
	}
	if r.Icon != "" {
		r.Icon = s.URL(r.Icon)
	}
	return r
}
