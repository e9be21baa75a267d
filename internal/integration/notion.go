package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hitoshi/unisearch/internal/config"
	"github.com/hitoshi/unisearch/internal/model"
)

const (
	defaultNotionAuthURL  = "https://api.notion.com/v1/oauth/authorize"
	defaultNotionTokenURL = "https://api.notion.com/v1/oauth/token"
)

// NotionExchanger はNotionのパブリックインテグレーションのトークンを取得する。
type NotionExchanger struct {
	config     config.ProviderConfig
	version    string
	httpClient httpDoer

	// テスト用にオーバーライド可能なURL
	authURL  string
	tokenURL string
}

// NewNotionExchanger はNotionExchangerを生成する。
func NewNotionExchanger(cfg config.ProviderConfig, version string, httpClient httpDoer) *NotionExchanger {
	return &NotionExchanger{
		config:     cfg,
		version:    version,
		httpClient: httpClient,
		authURL:    defaultNotionAuthURL,
		tokenURL:   defaultNotionTokenURL,
	}
}

// Provider はmodel.ProviderNotionを返す。
func (e *NotionExchanger) Provider() model.Provider { return model.ProviderNotion }

// Config はクライアント設定を返す。
func (e *NotionExchanger) Config() config.ProviderConfig { return e.config }

// AuthURL はNotionの同意画面URLを生成する。
func (e *NotionExchanger) AuthURL(state string) string {
	params := url.Values{
		"client_id":     {e.config.ClientID},
		"response_type": {"code"},
		"owner":         {"user"},
		"redirect_uri":  {e.config.RedirectURL},
		"state":         {state},
	}
	return e.authURL + "?" + params.Encode()
}

type notionTokenRequest struct {
	GrantType   string `json:"grant_type"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// notionTokenResponse はトークンエンドポイントのレスポンス。
type notionTokenResponse struct {
	AccessToken   string `json:"access_token"`
	BotID         string `json:"bot_id"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange は認可コードをアクセストークンに交換する。
// access_tokenとbot_idの両方が揃った場合のみ成功とする。
func (e *NotionExchanger) Exchange(ctx context.Context, code string) (*model.ProviderCredential, error) {
	body, err := json.Marshal(notionTokenRequest{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: e.config.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(e.config.ClientID, e.config.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", e.version)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenResp notionTokenResponse
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s %s",
			resp.StatusCode, tokenResp.Error, tokenResp.ErrorDescription)
	}
	if tokenResp.AccessToken == "" || tokenResp.BotID == "" {
		return nil, errors.New("notion response is missing access_token or bot_id")
	}

	return &model.ProviderCredential{
		Provider:    model.ProviderNotion,
		AccessToken: tokenResp.AccessToken,
		ExternalID:  tokenResp.BotID,
	}, nil
}

// compile-time interface check
var _ Exchanger = (*NotionExchanger)(nil)
