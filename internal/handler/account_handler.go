package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/unisearch/internal/middleware"
	"github.com/hitoshi/unisearch/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Account(ctx context.Context, userID string) (*accountResponse, error)
	VerifiedAccount(ctx context.Context, userID string) (*accountResponse, error)
}

type providerStatusResponse struct {
	Provider    string     `json:"provider"`
	Connected   bool       `json:"connected"`
	ExternalID  string     `json:"external_id,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Verified    *bool      `json:"verified,omitempty"`
}

type accountResponse struct {
	User      userResponse             `json:"user"`
	Providers []providerStatusResponse `json:"providers"`
}

// AccountHandler はアカウント情報のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// Get はユーザー情報と各プロバイダーの連携状態を返す。
// GET /api/account
// verify=true のとき、連携済みプロバイダーに認可情報がまだ有効かを問い合わせる。
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	verify := false
	if v := r.URL.Query().Get("verify"); v != "" {
		verify, err = strconv.ParseBool(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("verify must be true or false"))
			return
		}
	}

	var resp *accountResponse
	if verify {
		resp, err = h.service.VerifiedAccount(r.Context(), userID)
	} else {
		resp, err = h.service.Account(r.Context(), userID)
	}
	if err != nil {
		handleServiceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
