package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/unisearch/internal/middleware"
	"github.com/hitoshi/unisearch/internal/model"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, userID, query string) (*searchResponse, error)
	Recent(ctx context.Context, userID string) (*searchResponse, error)
}

// resultResponse は検索ヒット1件のレスポンス形式。
type resultResponse struct {
	Provider   string     `json:"provider"`
	Kind       string     `json:"kind"`
	Title      string     `json:"title"`
	Text       string     `json:"text,omitempty"`
	User       string     `json:"user,omitempty"`
	Channel    string     `json:"channel,omitempty"`
	ObjectType string     `json:"object_type,omitempty"`
	URL        string     `json:"url"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Icon       string     `json:"icon,omitempty"`
}

// providerResultsResponse はプロバイダーごとの結果。未連携のプロバイダーは空配列になる。
type providerResultsResponse struct {
	Slack       []resultResponse `json:"slack"`
	Notion      []resultResponse `json:"notion"`
	GoogleDrive []resultResponse `json:"google_drive"`
}

// searchResponse は横断検索のレスポンス形式。
type searchResponse struct {
	Query   string                  `json:"query"`
	Results providerResultsResponse `json:"results"`
	Merged  []resultResponse        `json:"merged"`
}

// searchFailedResponse は検索全体が失敗した場合のレスポンス形式。
type searchFailedResponse struct {
	Error string `json:"error"`
	Query string `json:"query"`
}

// SearchHandler は横断検索のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search は連携済みの全プロバイダーを横断検索する。
// GET /api/search?q=xxx
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	resp, err := h.service.Search(r.Context(), userID, query)
	if err != nil {
		h.writeSearchError(w, userID, query, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Recent はSlackの最近のメッセージを返す。
// GET /api/recent
func (h *SearchHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	resp, err := h.service.Recent(r.Context(), userID)
	if err != nil {
		h.writeSearchError(w, userID, "", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SearchHandler) writeSearchError(w http.ResponseWriter, userID, query string, err error) {
	if errors.Is(err, model.ErrUnauthenticated) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}
	slog.Error("search failed",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, searchFailedResponse{
		Error: "search failed",
		Query: query,
	})
}

// toSearchResponse はドメインの検索結果をレスポンス形式に変換する。
func toSearchResponse(resp *model.SearchResponse) *searchResponse {
	return &searchResponse{
		Query: resp.Query,
		Results: providerResultsResponse{
			Slack:       toResultResponses(resp.Results.Slack),
			Notion:      toResultResponses(resp.Results.Notion),
			GoogleDrive: toResultResponses(resp.Results.GoogleDrive),
		},
		Merged: toResultResponses(resp.Merged),
	}
}

func toResultResponses(results []model.NormalizedResult) []resultResponse {
	out := make([]resultResponse, len(results))
	for i, r := range results {
		out[i] = resultResponse{
			Provider:   string(r.Provider),
			Kind:       string(r.Kind),
			Title:      r.Title,
			Text:       r.Text,
			User:       r.User,
			Channel:    r.Channel,
			ObjectType: r.ObjectType,
			URL:        r.URL,
			Timestamp:  r.Timestamp,
			Icon:       r.Icon,
		}
	}
	return out
}
