// Package user はユーザーのアカウント情報を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/unisearch/internal/model"
	"github.com/hitoshi/unisearch/internal/repository"
)

// CredentialLister はユーザーの認可情報一覧を取得するインターフェース。
type CredentialLister interface {
	ListByUserID(ctx context.Context, userID string) (model.Credentials, error)
}

// ConnectionVerifier は保存済みの認可情報がまだ有効かをプロバイダーに問い合わせる。
// provider.SlackSearcher などが満たす。
type ConnectionVerifier interface {
	Provider() model.Provider
	Verify(ctx context.Context, cred *model.ProviderCredential) error
}

// ProviderStatus は1プロバイダー分の連携状態。トークン自体は含めない。
type ProviderStatus struct {
	Provider    model.Provider
	Connected   bool
	ExternalID  string
	ConnectedAt *time.Time
	// Verified は確認を行った場合のみ設定される。未連携のプロバイダーは常にnil。
	Verified *bool
}

// Account はユーザーと各プロバイダーの連携状態。
// Providersは Slack → Notion → Google Drive の順に並ぶ。
type Account struct {
	User      *model.User
	Providers []ProviderStatus
}

// Service はアカウント情報のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	creds     CredentialLister
	logger    *slog.Logger
	verifiers map[model.Provider]ConnectionVerifier
}

// NewService はServiceの新しいインスタンスを生成する。
// verifiersはVerifiedAccountでのみ使う。
func NewService(userRepo repository.UserRepository, creds CredentialLister, logger *slog.Logger, verifiers ...ConnectionVerifier) *Service {
	m := make(map[model.Provider]ConnectionVerifier, len(verifiers))
	for _, v := range verifiers {
		m[v.Provider()] = v
	}
	return &Service{
		userRepo:  userRepo,
		creds:     creds,
		logger:    logger,
		verifiers: m,
	}
}

// Account はユーザー情報と連携状態を返す。
// 認可情報は毎回ストアから読み直す。
func (s *Service) Account(ctx context.Context, userID string) (*Account, error) {
	acct, _, err := s.account(ctx, userID)
	return acct, err
}

// VerifiedAccount はAccountに加え、連携済みプロバイダーごとに認可情報が
// まだ有効かを並行して問い合わせる。問い合わせの失敗はVerified=falseとして返し、
// エラーにはしない。
func (s *Service) VerifiedAccount(ctx context.Context, userID string) (*Account, error) {
	acct, creds, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	for i := range acct.Providers {
		st := &acct.Providers[i]
		v, ok := s.verifiers[st.Provider]
		if !st.Connected || !ok {
			continue
		}
		cred := creds.Get(st.Provider)
		g.Go(func() error {
			verified := true
			if err := v.Verify(ctx, cred); err != nil {
				verified = false
				s.logger.Warn("認可情報の確認に失敗しました",
					slog.String("provider", string(st.Provider)),
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			st.Verified = &verified
			return nil
		})
	}
	_ = g.Wait()

	return acct, nil
}

func (s *Service) account(ctx context.Context, userID string) (*Account, model.Credentials, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	creds, err := s.creds.ListByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("認可情報の取得に失敗しました: %w", err)
	}

	statuses := make([]ProviderStatus, 0, len(model.AllProviders))
	for _, p := range model.AllProviders {
		st := ProviderStatus{Provider: p}
		if cred := creds.Get(p); cred != nil {
			st.Connected = true
			st.ExternalID = cred.ExternalID
			if !cred.UpdatedAt.IsZero() {
				t := cred.UpdatedAt
				st.ConnectedAt = &t
			}
		}
		statuses = append(statuses, st)
	}

	return &Account{User: user, Providers: statuses}, creds, nil
}
