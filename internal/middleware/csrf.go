package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unisearch/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 24 * 60 * 60

	// OAuthStateCookieName はプロバイダー連携中のstate値を保持するCookieの名前。
	OAuthStateCookieName = "oauth_state"

	// oauthStatePath はstate Cookieを送信する範囲。連携フロー以外には送らない。
	oauthStatePath   = "/integrations"
	oauthStateMaxAge = 10 * 60

	tokenBytes = 32
)

var (
	errCSRFCookieMissing = errors.New("missing cookie token")
	errCSRFHeaderMissing = errors.New("missing header token")
	errCSRFTokenMismatch = errors.New("token mismatch")
)

// CSRFConfig はCSRFトークンとOAuth state Cookieの属性。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

func (c CSRFConfig) cookie(name, value, path string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証せず、トークンCookieが無ければ発行する。
// 状態変更メソッドはCookieとX-CSRF-Tokenヘッダーの一致を必須とし、不一致は403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					// 発行に失敗しても安全なメソッドは通す
					_, _ = issueCSRFCookie(w, config)
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := verifyDoubleSubmit(r); err != nil {
				slog.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFTokenInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規発行する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = issueCSRFCookie(w, config)
			if err != nil {
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

// SetOAuthStateCookie はプロバイダー連携用のstate値をHttpOnlyのCookieに保存する。
// Cookieは /integrations 配下にのみ送信され、10分で失効する。
func SetOAuthStateCookie(w http.ResponseWriter, state string, config CSRFConfig) {
	http.SetCookie(w, config.cookie(OAuthStateCookieName, state, oauthStatePath, oauthStateMaxAge, true))
}

// ConsumeOAuthState はコールバックのstateをCookieと照合する。
// 一致した場合のみCookieを破棄してtrueを返す。state値は1回しか使えない。
func ConsumeOAuthState(w http.ResponseWriter, r *http.Request, config CSRFConfig) bool {
	got := r.URL.Query().Get("state")
	cookie, err := r.Cookie(OAuthStateCookieName)
	if err != nil || !tokensEqual(cookie.Value, got) {
		return false
	}
	http.SetCookie(w, config.cookie(OAuthStateCookieName, "", oauthStatePath, -1, true))
	return true
}

// GenerateToken は暗号的に安全な64文字の16進トークンを生成する。
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return "", err
	}
	http.SetCookie(w, config.cookie(csrfCookieName, token, "/", csrfCookieMaxAge, false))
	return token, nil
}

func verifyDoubleSubmit(r *http.Request) error {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return errCSRFCookieMissing
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return errCSRFHeaderMissing
	}
	if !tokensEqual(cookie.Value, header) {
		return errCSRFTokenMismatch
	}
	return nil
}

// tokensEqual は空でない2つのトークンを定数時間で比較する。
func tokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
