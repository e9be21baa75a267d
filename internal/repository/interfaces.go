// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/unisearch/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合はmodel.ErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error
}

// CredentialRepository はプロバイダーごとのOAuth認可情報の永続化インターフェース。
// (user_id, provider) ごとに1件のみ保持し、再認可時は後勝ちで上書きする。
type CredentialRepository interface {
	// Get は指定ユーザー・プロバイダーの認可情報を取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, userID string, provider model.Provider) (*model.ProviderCredential, error)

	// Upsert は認可情報を1文で挿入または上書きする。
	Upsert(ctx context.Context, cred *model.ProviderCredential) error

	// ListByUserID は指定ユーザーの全認可情報をプロバイダーをキーとするマップで返す。
	ListByUserID(ctx context.Context, userID string) (model.Credentials, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
