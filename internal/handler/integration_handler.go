package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/unisearch/internal/middleware"
	"github.com/hitoshi/unisearch/internal/model"
)

// IntegrationServiceInterface はプロバイダー連携ハンドラーが必要とするサービスインターフェース。
type IntegrationServiceInterface interface {
	AuthURL(provider model.Provider, state string) (string, error)
	CompleteOAuth(ctx context.Context, provider model.Provider, code, userID string) (model.Credentials, error)
}

// IntegrationHandlerConfig はプロバイダー連携ハンドラーの設定。
type IntegrationHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// IntegrationHandler はSlack・Notion・Google Driveの連携フローを扱う。
type IntegrationHandler struct {
	service IntegrationServiceInterface
	config  IntegrationHandlerConfig
}

// NewIntegrationHandler はIntegrationHandlerを生成する。
func NewIntegrationHandler(service IntegrationServiceInterface, config IntegrationHandlerConfig) *IntegrationHandler {
	return &IntegrationHandler{service: service, config: config}
}

// Connect はプロバイダーの同意画面へリダイレクトする。
// GET /integrations/{provider}/connect
func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := model.ParseProvider(name)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownProviderError(name))
		return
	}

	state, err := middleware.GenerateToken()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	authURL, err := h.service.AuthURL(provider, state)
	if err != nil {
		handleServiceError(w, err, provider)
		return
	}

	middleware.SetOAuthStateCookie(w, state, h.cookieConfig())
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback は認可コードをトークンに交換して保存する。
// GET /integrations/{provider}/callback?code=xxx&state=yyy
func (h *IntegrationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := model.ParseProvider(name)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownProviderError(name))
		return
	}

	if !middleware.ConsumeOAuthState(w, r, h.cookieConfig()) {
		slog.Warn("oauth state mismatch",
			slog.String("provider", string(provider)),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("invalid state parameter"))
		return
	}

	// 同意画面で拒否された場合はcodeの代わりにerrorが返る
	if denied := r.URL.Query().Get("error"); denied != "" {
		slog.Info("provider authorization denied",
			slog.String("provider", string(provider)),
			slog.String("reason", denied),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewOAuthExchangeFailedError(provider))
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	code := r.URL.Query().Get("code")
	if _, err := h.service.CompleteOAuth(r.Context(), provider, code, userID); err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusSeeOther)
			return
		}
		handleServiceError(w, err, provider)
		return
	}

	q := url.Values{}
	q.Set("connected", string(provider))
	http.Redirect(w, r, h.config.BaseURL+"/account?"+q.Encode(), http.StatusSeeOther)
}

func (h *IntegrationHandler) cookieConfig() middleware.CSRFConfig {
	return middleware.CSRFConfig{CookieSecure: h.config.CookieSecure}
}
