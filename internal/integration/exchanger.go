// Package integration は外部プロバイダーとのOAuth連携（認可コードの交換と保存）を提供する。
package integration

import (
	"context"
	"net/http"

	"github.com/hitoshi/unisearch/internal/config"
	"github.com/hitoshi/unisearch/internal/model"
)

// Exchanger はプロバイダー1つ分のOAuth認可フローを担う。
type Exchanger interface {
	// Provider は担当プロバイダーを返す。
	Provider() model.Provider

	// Config はOAuthクライアント設定を返す。
	Config() config.ProviderConfig

	// AuthURL は同意画面のURLを生成する。
	AuthURL(state string) string

	// Exchange は認可コードをトークンに交換する。
	// 戻り値のUserIDは未設定で、呼び出し元が設定する。
	Exchange(ctx context.Context, code string) (*model.ProviderCredential, error)
}

// httpDoer はHTTPリクエストを送信するクライアント。*http.Clientが満たす。
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
