package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/unisearch/internal/model"
)

const (
	// defaultNotionEndpoint はNotion APIのベースURL。
	defaultNotionEndpoint = "https://api.notion.com/v1"
	// untitled はタイトルが取得できない場合の表示名。
	untitled = "Untitled"
	// maxNotionResponseSize はレスポンスボディの読み取り上限。
	maxNotionResponseSize = 4 << 20
)

// NotionSearcher はNotionの /v1/search を呼び出すアダプター。
type NotionSearcher struct {
	httpClient *http.Client
	endpoint   string // テスト用にエンドポイントを差し替え可能
	version    string
	sanitizer  Sanitizer
	logger     *slog.Logger
}

// NewNotionSearcher はNotionSearcherを生成する。
// versionはNotion-Versionヘッダーに設定する値。
func NewNotionSearcher(httpClient *http.Client, version string, sanitizer Sanitizer, logger *slog.Logger) *NotionSearcher {
	return &NotionSearcher{
		httpClient: httpClient,
		endpoint:   defaultNotionEndpoint,
		version:    version,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Provider はmodel.ProviderNotionを返す。
func (s *NotionSearcher) Provider() model.Provider {
	return model.ProviderNotion
}

type notionSearchRequest struct {
	Query    string `json:"query"`
	PageSize int    `json:"page_size"`
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
}

// notionProperty はページ・データベースのプロパティ。
// データベースのtitleはスキーマ定義（オブジェクト）のため生のまま保持する。
type notionProperty struct {
	Type  string          `json:"type"`
	Title json.RawMessage `json:"title"`
}

type notionFileRef struct {
	URL string `json:"url"`
}

type notionIcon struct {
	Type     string         `json:"type"`
	External *notionFileRef `json:"external"`
	File     *notionFileRef `json:"file"`
}

type notionObject struct {
	Object         string                    `json:"object"`
	ID             string                    `json:"id"`
	URL            string                    `json:"url"`
	LastEditedTime time.Time                 `json:"last_edited_time"`
	Icon           *notionIcon               `json:"icon"`
	Title          []notionRichText          `json:"title"`
	Properties     map[string]notionProperty `json:"properties"`
}

type notionSearchResponse struct {
	Results []notionObject `json:"results"`
}

// notionError はNotion APIのエラーレスポンス。
type notionError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Search はページ・データベースを最大10件検索する。
func (s *NotionSearcher) Search(ctx context.Context, query string, cred *model.ProviderCredential) ([]model.NormalizedResult, error) {
	if err := checkCredential(model.ProviderNotion, cred); err != nil {
		return failed(s.logger, model.ProviderNotion, err)
	}

	body, err := json.Marshal(notionSearchRequest{Query: query, PageSize: resultLimit})
	if err != nil {
		return failed(s.logger, model.ProviderNotion, err)
	}

	raw, err := s.call(ctx, http.MethodPost, "/search", cred, body)
	if err != nil {
		return failed(s.logger, model.ProviderNotion, err)
	}

	var parsed notionSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failed(s.logger, model.ProviderNotion, fmt.Errorf("failed to decode response: %w", err))
	}

	results := make([]model.NormalizedResult, 0, len(parsed.Results))
	for _, obj := range parsed.Results {
		results = append(results, sanitize(s.sanitizer, notionObjectToResult(obj), defaults{title: untitled}))
	}
	return results, nil
}

// Verify は /v1/users/me でトークンがまだ有効かを確認する。
func (s *NotionSearcher) Verify(ctx context.Context, cred *model.ProviderCredential) error {
	if err := checkCredential(model.ProviderNotion, cred); err != nil {
		return err
	}
	_, err := s.call(ctx, http.MethodGet, "/users/me", cred, nil)
	return err
}

// call はNotion APIを呼び出し、200のときレスポンスボディを返す。
func (s *NotionSearcher) call(ctx context.Context, method, path string, cred *model.ProviderCredential, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Notion-Version", s.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxNotionResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr notionError
		_ = json.Unmarshal(raw, &apiErr)
		return nil, fmt.Errorf("notion %s returned status %d: %s %s", path, resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	return raw, nil
}

func notionObjectToResult(obj notionObject) model.NormalizedResult {
	kind := model.ResultKindPage
	if obj.Object == "database" {
		kind = model.ResultKindDatabase
	}
	r := model.NormalizedResult{
		Provider:   model.ProviderNotion,
		Kind:       kind,
		Title:      notionTitle(obj),
		ObjectType: obj.Object,
		URL:        obj.URL,
	}
	if !obj.LastEditedTime.IsZero() {
		t := obj.LastEditedTime
		r.Timestamp = &t
	}
	if obj.Icon != nil {
		switch {
		case obj.Icon.External != nil:
			r.Icon = obj.Icon.External.URL
		case obj.Icon.File != nil:
			r.Icon = obj.Icon.File.URL
		}
	}
	return r
}

// notionTitle はtype=titleのプロパティのplain_textを連結して返す。
// 見つからない場合はデータベースのトップレベルtitleを使い、それも無ければ "Untitled"。
func notionTitle(obj notionObject) string {
	for _, prop := range obj.Properties {
		if prop.Type != "title" {
			continue
		}
		var texts []notionRichText
		if err := json.Unmarshal(prop.Title, &texts); err != nil {
			// データベースのスキーマ定義では配列ではない
			break
		}
		if title := joinPlainText(texts); title != "" {
			return title
		}
		break
	}
	if title := joinPlainText(obj.Title); title != "" {
		return title
	}
	return untitled
}

func joinPlainText(texts []notionRichText) string {
	var b strings.Builder
	for _, t := range texts {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// compile-time interface check
var (
	_ Searcher = (*NotionSearcher)(nil)
	_ Verifier = (*NotionSearcher)(nil)
)
