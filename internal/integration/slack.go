package integration

import (
	"context"
	"errors"
	"net/url"

	"github.com/slack-go/slack"

	"github.com/hitoshi/unisearch/internal/config"
	"github.com/hitoshi/unisearch/internal/model"
)

const (
	slackAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	// slackUserScope はユーザートークンで要求するスコープ。
	slackUserScope = "search:read"
)

// SlackExchanger はSlack OAuth v2のユーザートークンを取得する。
type SlackExchanger struct {
	config     config.ProviderConfig
	httpClient httpDoer
}

// NewSlackExchanger はSlackExchangerを生成する。
func NewSlackExchanger(cfg config.ProviderConfig, httpClient httpDoer) *SlackExchanger {
	return &SlackExchanger{config: cfg, httpClient: httpClient}
}

// Provider はmodel.ProviderSlackを返す。
func (e *SlackExchanger) Provider() model.Provider { return model.ProviderSlack }

// Config はクライアント設定を返す。
func (e *SlackExchanger) Config() config.ProviderConfig { return e.config }

// AuthURL はSlackの同意画面URLを生成する。
func (e *SlackExchanger) AuthURL(state string) string {
	params := url.Values{
		"client_id":    {e.config.ClientID},
		"user_scope":   {slackUserScope},
		"redirect_uri": {e.config.RedirectURL},
		"state":        {state},
	}
	return slackAuthorizeURL + "?" + params.Encode()
}

// Exchange は oauth.v2.access を呼び出し、authed_userのトークンを返す。
// ok:false の場合はSlackのエラーコード（invalid_code等）を含むエラーを返す。
func (e *SlackExchanger) Exchange(ctx context.Context, code string) (*model.ProviderCredential, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, e.httpClient,
		e.config.ClientID, e.config.ClientSecret, code, e.config.RedirectURL)
	if err != nil {
		return nil, err
	}
	if resp.AuthedUser.AccessToken == "" {
		return nil, errors.New("slack response has no authed_user access token")
	}
	return &model.ProviderCredential{
		Provider:    model.ProviderSlack,
		AccessToken: resp.AuthedUser.AccessToken,
		ExternalID:  resp.AuthedUser.ID,
	}, nil
}

// compile-time interface check
var _ Exchanger = (*SlackExchanger)(nil)
