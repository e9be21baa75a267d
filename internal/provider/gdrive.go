package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/hitoshi/unisearch/internal/model"
)

const (
	// driveFields は files.list で取得するフィールド。
	driveFields = "files(id, name, webViewLink, iconLink, mimeType)"
	// driveFallbackIcon はiconLinkが無い場合の汎用アイコン。
	driveFallbackIcon = "https://ssl.gstatic.com/docs/doclist/images/icon_10_generic_list.png"
)

// driveQueryEscaper はDriveクエリ文字列リテラル用のエスケープ。
var driveQueryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// GoogleDriveSearcher はGoogle Drive files.list を呼び出すアダプター。
type GoogleDriveSearcher struct {
	httpClient  *http.Client
	oauthConfig *oauth2.Config // nilでなければリフレッシュトークンで自動更新する
	endpoint    string         // テスト用。空ならライブラリの既定値
	sanitizer   Sanitizer
	logger      *slog.Logger
}

// NewGoogleDriveSearcher はGoogleDriveSearcherを生成する。
// oauthConfigはアクセストークン期限切れ時のリフレッシュに使用する（nil可）。
func NewGoogleDriveSearcher(httpClient *http.Client, oauthConfig *oauth2.Config, sanitizer Sanitizer, logger *slog.Logger) *GoogleDriveSearcher {
	return &GoogleDriveSearcher{
		httpClient:  httpClient,
		oauthConfig: oauthConfig,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// Provider はmodel.ProviderGoogleDriveを返す。
func (s *GoogleDriveSearcher) Provider() model.Provider {
	return model.ProviderGoogleDrive
}

// Search はファイル名にクエリを含むゴミ箱以外のファイルを最大10件検索する。
func (s *GoogleDriveSearcher) Search(ctx context.Context, query string, cred *model.ProviderCredential) ([]model.NormalizedResult, error) {
	if err := checkCredential(model.ProviderGoogleDrive, cred); err != nil {
		return failed(s.logger, model.ProviderGoogleDrive, err)
	}

	srv, err := s.service(ctx, cred)
	if err != nil {
		return failed(s.logger, model.ProviderGoogleDrive, err)
	}

	list, err := srv.Files.List().
		Q(driveQuery(query)).
		Fields(driveFields).
		PageSize(resultLimit).
		Context(ctx).
		Do()
	if err != nil {
		return failed(s.logger, model.ProviderGoogleDrive, err)
	}

	results := make([]model.NormalizedResult, 0, len(list.Files))
	for _, f := range list.Files {
		results = append(results, sanitize(s.sanitizer, driveFileToResult(f), defaults{title: untitled, icon: driveFallbackIcon}))
	}
	return results, nil
}

// Verify はabout.getでトークンがまだ有効かを確認する。期限切れならリフレッシュを試みる。
func (s *GoogleDriveSearcher) Verify(ctx context.Context, cred *model.ProviderCredential) error {
	if err := checkCredential(model.ProviderGoogleDrive, cred); err != nil {
		return err
	}
	srv, err := s.service(ctx, cred)
	if err != nil {
		return err
	}
	if _, err := srv.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive about.get: %w", err)
	}
	return nil
}

func (s *GoogleDriveSearcher) service(ctx context.Context, cred *model.ProviderCredential) (*drive.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(s.authorizedClient(ctx, cred))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return srv, nil
}

// authorizedClient はBearerトークンを付与するHTTPクライアントを返す。
func (s *GoogleDriveSearcher) authorizedClient(ctx context.Context, cred *model.ProviderCredential) *http.Client {
	tok := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
	}
	if cred.Expiry != nil {
		tok.Expiry = *cred.Expiry
	}

	base := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	if s.oauthConfig != nil && tok.RefreshToken != "" {
		return s.oauthConfig.Client(base, tok)
	}
	return oauth2.NewClient(base, oauth2.StaticTokenSource(tok))
}

// driveQuery はDrive検索クエリを組み立てる。
func driveQuery(query string) string {
	return fmt.Sprintf("name contains '%s' and trashed = false", driveQueryEscaper.Replace(query))
}

// driveFileToResult はファイルを結果へ写す。空のタイトルとアイコンはsanitizeが補う。
func driveFileToResult(f *drive.File) model.NormalizedResult {
	return model.NormalizedResult{
		Provider:   model.ProviderGoogleDrive,
		Kind:       model.ResultKindFile,
		Title:      f.Name,
		ObjectType: f.MimeType,
		URL:        f.WebViewLink,
		Icon:       f.IconLink,
	}
}

// compile-time interface check
var (
	_ Searcher = (*GoogleDriveSearcher)(nil)
	_ Verifier = (*GoogleDriveSearcher)(nil)
)
