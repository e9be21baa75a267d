// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, integration, search, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラー分類。サービス層はこれらをラップして返し、ハンドラーはerrors.Isで判定する。
var (
	// ErrConfiguration はプロバイダーのクライアント設定が不足していることを示す。
	ErrConfiguration = errors.New("provider configuration error")
	// ErrOAuthExchangeFailed は認可コードのトークン交換が拒否されたことを示す。
	ErrOAuthExchangeFailed = errors.New("oauth exchange failed")
	// ErrProviderSearchFailed は1プロバイダーの検索が失敗したことを示す。
	// 横断検索では空の結果として扱われ、呼び出し元には伝播しない。
	ErrProviderSearchFailed = errors.New("provider search failed")
	// ErrUnauthenticated はセッションが存在しないことを示す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っていることを示す。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken は既に登録済みのメールアドレスであることを示す。
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput はリクエストの入力値が不正であることを示す。
	ErrInvalidInput = errors.New("invalid input")
)

// 定義済みエラーコード
const (
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeOAuthExchangeFailed = "OAUTH_EXCHANGE_FAILED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrCodeSearchFailed        = "SEARCH_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeCSRFTokenInvalid    = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewConfigurationError はプロバイダー設定不足エラーを生成する。
func NewConfigurationError(provider Provider) *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf("%s 連携のクライアント設定がありません。", provider),
		Category: "system",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewOAuthExchangeFailedError はトークン交換失敗エラーを生成する。
func NewOAuthExchangeFailedError(provider Provider) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthExchangeFailed,
		Message:  fmt.Sprintf("%s との連携に失敗しました。", provider),
		Category: "integration",
		Action:   "もう一度連携をやり直してください。",
	}
}

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidInputError は入力値エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnknownProviderError は未対応プロバイダーエラーを生成する。
func NewUnknownProviderError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未対応の連携先です: %s", name),
		Category: "validation",
		Action:   "slack、notion、google-drive のいずれかを指定してください。",
	}
}

// NewSearchFailedError は検索全体の失敗エラーを生成する。
func NewSearchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSearchFailed,
		Message:  "検索に失敗しました。",
		Category: "search",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト過多エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
