package handler

import (
	"context"

	"github.com/hitoshi/unisearch/internal/integration"
	"github.com/hitoshi/unisearch/internal/search"
	"github.com/hitoshi/unisearch/internal/user"
)

// SearchServiceAdapter は search.Aggregator を SearchServiceInterface に適合させるアダプタ。
type SearchServiceAdapter struct {
	agg *search.Aggregator
}

// NewSearchServiceAdapter はSearchServiceAdapterを生成する。
func NewSearchServiceAdapter(agg *search.Aggregator) *SearchServiceAdapter {
	return &SearchServiceAdapter{agg: agg}
}

// Search はユーザーの認証情報で横断検索しhandlerレスポンス型で返す。
func (a *SearchServiceAdapter) Search(ctx context.Context, userID, query string) (*searchResponse, error) {
	resp, err := a.agg.SearchForUser(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	return toSearchResponse(resp), nil
}

// Recent はSlackの最近のメッセージをhandlerレスポンス型で返す。
func (a *SearchServiceAdapter) Recent(ctx context.Context, userID string) (*searchResponse, error) {
	resp, err := a.agg.RecentForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toSearchResponse(resp), nil
}

// AccountServiceAdapter は user.Service を AccountServiceInterface に適合させるアダプタ。
type AccountServiceAdapter struct {
	svc *user.Service
}

// NewAccountServiceAdapter はAccountServiceAdapterを生成する。
func NewAccountServiceAdapter(svc *user.Service) *AccountServiceAdapter {
	return &AccountServiceAdapter{svc: svc}
}

// Account はユーザー情報と連携状態をhandlerレスポンス型で返す。
func (a *AccountServiceAdapter) Account(ctx context.Context, userID string) (*accountResponse, error) {
	acct, err := a.svc.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toAccountResponse(acct), nil
}

// VerifiedAccount は認可情報の確認結果を含めて返す。
func (a *AccountServiceAdapter) VerifiedAccount(ctx context.Context, userID string) (*accountResponse, error) {
	acct, err := a.svc.VerifiedAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toAccountResponse(acct), nil
}

func toAccountResponse(acct *user.Account) *accountResponse {
	providers := make([]providerStatusResponse, len(acct.Providers))
	for i, p := range acct.Providers {
		providers[i] = providerStatusResponse{
			Provider:    string(p.Provider),
			Connected:   p.Connected,
			ExternalID:  p.ExternalID,
			ConnectedAt: p.ConnectedAt,
			Verified:    p.Verified,
		}
	}
	return &accountResponse{
		User:      toUserResponse(acct.User),
		Providers: providers,
	}
}

// --- compile-time interface checks ---

var _ SearchServiceInterface = (*SearchServiceAdapter)(nil)
var _ AccountServiceInterface = (*AccountServiceAdapter)(nil)
var _ IntegrationServiceInterface = (*integration.Service)(nil)
