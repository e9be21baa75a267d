package integration

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/hitoshi/unisearch/internal/config"
	"github.com/hitoshi/unisearch/internal/model"
)

// GoogleExchanger はGoogle Drive読み取り用のトークンを取得する。
type GoogleExchanger struct {
	config      config.ProviderConfig
	oauthConfig *oauth2.Config
	httpClient  *http.Client
}

// NewGoogleExchanger はGoogleExchangerを生成する。
func NewGoogleExchanger(cfg config.ProviderConfig, httpClient *http.Client) *GoogleExchanger {
	return &GoogleExchanger{
		config: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{drive.DriveReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		httpClient: httpClient,
	}
}

// Provider はmodel.ProviderGoogleDriveを返す。
func (e *GoogleExchanger) Provider() model.Provider { return model.ProviderGoogleDrive }

// Config はクライアント設定を返す。
func (e *GoogleExchanger) Config() config.ProviderConfig { return e.config }

// OAuthConfig は検索時のトークンリフレッシュに使うoauth2設定を返す。
func (e *GoogleExchanger) OAuthConfig() *oauth2.Config { return e.oauthConfig }

// AuthURL はリフレッシュトークンを得るためofflineかつ毎回同意を求めるURLを生成する。
func (e *GoogleExchanger) AuthURL(state string) string {
	return e.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange は認可コードをトークンに交換する。
func (e *GoogleExchanger) Exchange(ctx context.Context, code string) (*model.ProviderCredential, error) {
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	tok, err := e.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("google response has no access token")
	}

	cred := &model.ProviderCredential{
		Provider:     model.ProviderGoogleDrive,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		cred.Expiry = &expiry
	}
	return cred, nil
}

// compile-time interface check
var _ Exchanger = (*GoogleExchanger)(nil)
