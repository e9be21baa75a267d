// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Provider は検索対象の外部サービスを表す。
type Provider string

const (
	// ProviderSlack はSlackを表す。
	ProviderSlack Provider = "slack"
	// ProviderNotion はNotionを表す。
	ProviderNotion Provider = "notion"
	// ProviderGoogleDrive はGoogle Driveを表す。
	ProviderGoogleDrive Provider = "google_drive"
)

// AllProviders はマージ時の優先順位（Slack → Notion → Google Drive）で並べたプロバイダー一覧。
var AllProviders = []Provider{ProviderSlack, ProviderNotion, ProviderGoogleDrive}

// ParseProvider は文字列をProviderに変換する。
// URLパスでは "google-drive" / "google" も受け付ける。
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "slack":
		return ProviderSlack, nil
	case "notion":
		return ProviderNotion, nil
	case "google_drive", "google-drive", "google":
		return ProviderGoogleDrive, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", s)
	}
}

// ProviderCredential は1ユーザー・1プロバイダーに紐づくOAuthトークン。
// 発行元プロバイダー以外では意味を持たない。再認可時は上書きされる。
type ProviderCredential struct {
	UserID       string
	Provider     Provider
	AccessToken  string
	RefreshToken string     // Google のみ
	ExternalID   string     // Slack: authed_user.id / Notion: bot_id
	Expiry       *time.Time // Google のみ
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid はアクセストークンが設定されているかを返す。
func (c *ProviderCredential) Valid() bool {
	return c != nil && c.AccessToken != ""
}

// Credentials はユーザーが保持するプロバイダーごとの認証情報。
type Credentials map[Provider]*ProviderCredential

// Get は指定プロバイダーの有効な認証情報を返す。無い場合はnilを返す。
func (c Credentials) Get(p Provider) *ProviderCredential {
	cred, ok := c[p]
	if !ok || !cred.Valid() || cred.Provider != p {
		return nil
	}
	return cred
}

// Connected は有効な認証情報を持つプロバイダーを優先順位順に返す。
func (c Credentials) Connected() []Provider {
	var ps []Provider
	for _, p := range AllProviders {
		if c.Get(p) != nil {
			ps = append(ps, p)
		}
	}
	return ps
}
