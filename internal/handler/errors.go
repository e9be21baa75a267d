package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unisearch/internal/middleware"
	"github.com/hitoshi/unisearch/internal/model"
)

// apiErrorResponse は統一エラーレスポンスのJSON形式。
type apiErrorResponse = middleware.ErrorResponseBody

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// providerは連携系のエラーメッセージにのみ使う。
func handleServiceError(w http.ResponseWriter, err error, provider model.Provider) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrConfiguration):
		slog.Error("provider configuration error",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewConfigurationError(provider))
		return
	case errors.Is(err, model.ErrOAuthExchangeFailed):
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewOAuthExchangeFailedError(provider))
		return
	case errors.Is(err, model.ErrUnauthenticated):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	case errors.Is(err, model.ErrEmailTaken):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewEmailTakenError())
		return
	case errors.Is(err, model.ErrInvalidInput):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(err.Error()))
		return
	}

	// 分類できないエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
