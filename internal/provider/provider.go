// Package provider は外部サービス（Slack / Notion / Google Drive）の検索アダプターを提供する。
//
// 各アダプターはユーザーのアクセストークンで1回だけ検索APIを呼び出し、
// 結果を model.NormalizedResult に正規化する。失敗時は空スライスと
// model.ErrProviderSearchFailed をラップしたエラーを返し、呼び出し元は
// これを「結果0件」として扱う。
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/unisearch/internal/model"
)

// resultLimit は1プロバイダーあたりの取得件数。
const resultLimit = 10

// Searcher はプロバイダー1つ分の検索アダプター。
type Searcher interface {
	// Provider はアダプターが担当するプロバイダーを返す。
	Provider() model.Provider

	// Search はクエリを実行して正規化済みの結果を返す。
	// エラー時も戻り値のスライスはnilではなく空スライスである。
	Search(ctx context.Context, query string, cred *model.ProviderCredential) ([]model.NormalizedResult, error)
}

// Verifier は保存済みの認可情報がプロバイダー側でまだ有効かを確認する。
// 検索アダプターがそれぞれ実装する。
type Verifier interface {
	Provider() model.Provider
	Verify(ctx context.Context, cred *model.ProviderCredential) error
}

// Sanitizer は正規化済み結果を応答前に無害化する。
// security.ResultSanitizerService が満たす。
type Sanitizer interface {
	Result(r model.NormalizedResult) model.NormalizedResult
}

// defaults はサニタイズ後に空になったフィールドへ補う既定値。
type defaults struct {
	title string
	icon  string
}

// sanitize は結果をサニタイズし、その後で既定値を補う。
func sanitize(sanitizer Sanitizer, r model.NormalizedResult, d defaults) model.NormalizedResult {
	r = sanitizer.Result(r)
	if r.Title == "" && d.title != "" {
		r.Title = d.title
	}
	if r.Icon == "" && d.icon != "" {
		r.Icon = d.icon
	}
	return r
}

// errCredentialMismatch は別プロバイダーの認可情報が渡されたことを示す。
var errCredentialMismatch = errors.New("credential belongs to another provider")

// checkCredential はアクセストークンの有無と発行元プロバイダーを検証する。
func checkCredential(p model.Provider, cred *model.ProviderCredential) error {
	if !cred.Valid() {
		return errors.New("access token is empty")
	}
	if cred.Provider != p {
		return fmt.Errorf("%w: got %s", errCredentialMismatch, cred.Provider)
	}
	return nil
}

// failed は失敗をログに残し、空スライスとラップ済みエラーを返す。
func failed(logger *slog.Logger, p model.Provider, err error) ([]model.NormalizedResult, error) {
	logger.Warn("プロバイダー検索に失敗しました",
		slog.String("provider", string(p)),
		slog.String("error", err.Error()),
	)
	return []model.NormalizedResult{}, fmt.Errorf("%w: %s: %w", model.ErrProviderSearchFailed, p, err)
}
